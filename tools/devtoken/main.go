package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/voxcampus/voxcampus-platform/platform/go/auth/devtoken"
)

func main() {
	projectID := flag.String("project-id", "", "Firebase project ID (used for iss/aud)")
	userID := flag.String("user-id", "", "user_id/sub/uid claim")
	email := flag.String("email", "", "email claim; its domain decides the institution")
	name := flag.String("name", "", "display name")
	emailVerified := flag.Bool("email-verified", true, "email_verified claim")
	signInProvider := flag.String("sign-in-provider", "password", "firebase.sign_in_provider claim")
	expiresIn := flag.Duration("expires-in", time.Hour, "token lifetime (duration, e.g. 30m, 2h)")

	flag.Parse()

	params := devtoken.Params{
		ProjectID:              strings.TrimSpace(*projectID),
		UserID:                 strings.TrimSpace(*userID),
		Email:                  strings.TrimSpace(*email),
		Name:                   strings.TrimSpace(*name),
		EmailVerified:          *emailVerified,
		FirebaseSignInProvider: strings.TrimSpace(*signInProvider),
		ExpiresIn:              *expiresIn,
	}

	token, err := devtoken.BuildUnsignedFirebaseToken(params, time.Now().UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
