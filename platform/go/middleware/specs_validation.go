package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"
	"go.uber.org/zap"
)

// ValidateAuthenticationViaSwagger satisfies operations that declare bearerAuth.
// Operations marked `security: []` never reach this function.
func ValidateAuthenticationViaSwagger(ctx context.Context, input *openapi3filter.AuthenticationInput) error {
	if input != nil && input.SecuritySchemeName == "bearerAuth" {
		r := input.RequestValidationInput.Request
		if r == nil {
			return fmt.Errorf("no request in validation input")
		}
		authz := r.Header.Get("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fmt.Errorf("missing or invalid Authorization header")
		}
	}
	return nil
}

// SpecValidator builds request validation middleware for spec. Every route behind it must be declared in spec.
func SpecValidator(logger *zap.Logger, spec *openapi3.T) func(http.Handler) http.Handler {
	names := make([]string, 0, len(spec.Components.SecuritySchemes))
	for name := range spec.Components.SecuritySchemes {
		names = append(names, name)
	}
	logger.Info("loaded security schemes", zap.Strings("names", names))

	return oapimiddleware.OapiRequestValidatorWithOptions(spec, &oapimiddleware.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: ValidateAuthenticationViaSwagger,
		},
	})
}
