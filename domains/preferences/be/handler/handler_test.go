package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/voxcampus/voxcampus-platform/domains/preferences/be/repo"
	"github.com/voxcampus/voxcampus-platform/domains/preferences/be/service"
	platformauth "github.com/voxcampus/voxcampus-platform/platform/go/auth"
)

func TestPreferenceRoutes(t *testing.T) {
	h := New(service.New(repo.NewMemoryRepository(), nil, zaptest.NewLogger(t)), zaptest.NewLogger(t))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := platformauth.WithUser(req.Context(), &platformauth.UserCredentials{ID: "u1"})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.Register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/preferences/theme", strings.NewReader(`{"value":"dark"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/preferences", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	require.Equal(t, "theme", list.Items[0].Key)
	require.JSONEq(t, `"dark"`, string(list.Items[0].Value))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/preferences/theme", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/preferences/theme", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/preferences/theme", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
