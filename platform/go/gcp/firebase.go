package gcp

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// GetApp creates a Firebase App instance. An empty credentialsFile falls back to
// application default credentials.
func GetApp(ctx context.Context, credentialsFile string) (*firebase.App, error) {
	if strings.TrimSpace(credentialsFile) != "" {
		return firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	}
	return firebase.NewApp(ctx, nil)
}

// InitFirebaseAuth initializes the Firebase App and returns an Auth client used to verify ID tokens.
func InitFirebaseAuth(ctx context.Context, credentialsFile string) (*firebase.App, *firebaseauth.Client, error) {
	firebaseApp, err := GetApp(ctx, credentialsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing firebase app [%w]", err)
	}

	fbAuth, err := firebaseApp.Auth(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing firebase auth [%w]", err)
	}

	return firebaseApp, fbAuth, nil
}
