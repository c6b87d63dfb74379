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

	"github.com/voxcampus/voxcampus-platform/domains/institutions/be/repo"
	"github.com/voxcampus/voxcampus-platform/domains/institutions/be/service"
	platformauth "github.com/voxcampus/voxcampus-platform/platform/go/auth"
	"github.com/voxcampus/voxcampus-platform/platform/go/tenant"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	memory := repo.NewMemoryRepository(
		service.Institution{ID: "inst-a", Name: "University A", Domain: "uni-a.edu"},
		service.Institution{ID: "inst-b", Name: "University B", Domain: "uni-b.edu"},
	)
	svc := service.New(memory, service.Config{}, zaptest.NewLogger(t))
	h := New(svc, zaptest.NewLogger(t))

	r := chi.NewRouter()
	h.RegisterPublic(r)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := platformauth.WithUser(req.Context(), &platformauth.UserCredentials{ID: "u1", Email: "s@uni-a.edu"})
				ctx = tenant.WithAccess(ctx, tenant.Access{InstitutionID: "inst-a", Email: "s@uni-a.edu"})
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
		h.Register(r)
	})
	return r
}

func TestResolve(t *testing.T) {
	router := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/institutions/resolve?email=x@uni-b.edu", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body Institution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "inst-b", body.ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/institutions/resolve?email=nobody", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/institutions/resolve", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCurrentAndGet(t *testing.T) {
	router := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/institutions/current", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"id":"inst-a"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/institutions/unknown", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJoinAndList(t *testing.T) {
	router := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/memberships", strings.NewReader(`{"institutionId":"inst-b"}`)))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/memberships", strings.NewReader(`{"institutionId":"inst-a"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/memberships", strings.NewReader(`not-json`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/memberships/me", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []Membership `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	require.Equal(t, "inst-a", body.Items[0].InstitutionID)
}
