package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/voxcampus/voxcampus-platform/contracts"
)

func TestSpecValidator(t *testing.T) {
	spec, err := contracts.Load()
	require.NoError(t, err)

	h := SpecValidator(zaptest.NewLogger(t), spec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		auth   bool
		status int
	}{
		{"public guest validate", http.MethodPost, "/api/v1/guest/validate", `{"sessionToken":"t","guestKey":"k"}`, false, http.StatusNoContent},
		{"guest validate missing field", http.MethodPost, "/api/v1/guest/validate", `{"sessionToken":"t"}`, false, http.StatusBadRequest},
		{"protected without bearer", http.MethodGet, "/api/v1/profiles/me", "", false, http.StatusUnauthorized},
		{"protected with bearer", http.MethodGet, "/api/v1/profiles/me", "", true, http.StatusNoContent},
		{"bad collection name", http.MethodGet, "/api/v1/collections/Bad%20Name/documents", "", true, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var req *http.Request
			if tc.body != "" {
				req = httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
				req.Header.Set("Content-Type", "application/json")
			} else {
				req = httptest.NewRequest(tc.method, tc.path, nil)
			}
			if tc.auth {
				req.Header.Set("Authorization", "Bearer token")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}
