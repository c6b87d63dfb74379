package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultCredentialExtractor(t *testing.T) {
	creds, err := DefaultCredentialExtractor(map[string]interface{}{
		"uid":            "user-123",
		"email":          " demo@voxcampus.app ",
		"email_verified": true,
		"name":           "Demo",
	})
	require.NoError(t, err)
	require.Equal(t, "user-123", creds.ID)
	require.Equal(t, "demo@voxcampus.app", creds.Email)
	require.True(t, creds.EmailVerified)
	require.NotNil(t, creds.Name)
	require.Nil(t, creds.PictureURL)
}

func TestDefaultCredentialExtractorRequiresSubject(t *testing.T) {
	_, err := DefaultCredentialExtractor(map[string]interface{}{"email": "a@b.edu"})
	require.Error(t, err)

	_, err = DefaultCredentialExtractor(nil)
	require.Error(t, err)
}

func TestJWTMiddlewareAttachesCredentials(t *testing.T) {
	payload, err := json.Marshal(map[string]any{"sub": "u-1", "email": "student@campus.edu"})
	require.NoError(t, err)
	token := "eyJhbGciOiJub25lIn0." + base64.RawURLEncoding.EncodeToString(payload)

	var got *UserCredentials
	handler := JWT(UnsignedTokenVerifier(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = UserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, got)
	require.Equal(t, "u-1", got.ID)
	require.Equal(t, "student@campus.edu", got.Email)
}

func TestJWTMiddlewareRejectsInvalidToken(t *testing.T) {
	verify := func(context.Context, string) (map[string]interface{}, error) {
		return nil, errors.New("signature mismatch")
	}
	handler := JWT(verify, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
}

func TestRequireUser(t *testing.T) {
	handler := RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUser(req.Context(), &UserCredentials{ID: "u-1"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
