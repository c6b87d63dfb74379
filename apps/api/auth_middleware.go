package main

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	platformauth "github.com/voxcampus/voxcampus-platform/platform/go/auth"
	"github.com/voxcampus/voxcampus-platform/platform/go/gcp"
)

// buildAuthMiddleware constructs the JWT middleware. The institution is resolved later from
// the email claim, so tokens without an email are refused here.
func buildAuthMiddleware(ctx context.Context, cfg config, logger *zap.Logger) func(http.Handler) http.Handler {
	var verify platformauth.VerifyFunc
	switch cfg.AuthProvider {
	case "firebase":
		_, fbAuth, err := gcp.InitFirebaseAuth(ctx, cfg.FirebaseCreds)
		if err != nil {
			logger.Fatal("init firebase auth", zap.Error(err))
		}
		verify = platformauth.FirebaseTokenVerifier(fbAuth)
	case "dev":
		logger.Warn("using dev auth middleware; do not use in production")
		verify = platformauth.UnsignedTokenVerifier()
	default:
		logger.Fatal("unsupported auth provider", zap.String("provider", cfg.AuthProvider))
	}

	extract := func(claims map[string]interface{}) (*platformauth.UserCredentials, error) {
		creds, err := platformauth.DefaultCredentialExtractor(claims)
		if err != nil {
			return nil, err
		}
		if creds.Email == "" {
			return nil, errors.New("email claim required")
		}
		return creds, nil
	}

	return platformauth.JWT(verify, extract)
}
