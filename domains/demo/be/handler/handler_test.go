package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/voxcampus/voxcampus-platform/domains/demo/be/repo"
	"github.com/voxcampus/voxcampus-platform/domains/demo/be/service"
	platformauth "github.com/voxcampus/voxcampus-platform/platform/go/auth"
	"github.com/voxcampus/voxcampus-platform/platform/go/tenant"
)

type stubRunner struct{}

func (stubRunner) Revert(context.Context, service.Target) (service.Summary, error) {
	return service.Summary{Reverted: 2}, nil
}

func newTestRouter(t *testing.T, email string) (http.Handler, *service.Jobs) {
	t.Helper()
	exemptions := tenant.NewExemptionList("demo@voxcampus.app")
	logger := zaptest.NewLogger(t)
	svc := service.New(repo.NewMemorySessionRegistry(0, nil), stubRunner{}, exemptions, logger)
	jobs := service.NewJobs(stubRunner{}, service.JobsConfig{Exemptions: exemptions}, logger)
	h := New(svc, jobs, "job-secret", logger)

	r := chi.NewRouter()
	h.RegisterPublic(r)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := platformauth.WithUser(req.Context(), &platformauth.UserCredentials{ID: "demo-user", Email: email})
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
		h.Register(r)
	})
	return r, jobs
}

func TestSessionLifecycle(t *testing.T) {
	router, _ := newTestRouter(t, "demo@voxcampus.app")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/demo/sessions/current", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/demo/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/demo/sessions/current", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"reverted":2`)
}

func TestSessionRejectsRegularAccount(t *testing.T) {
	router, _ := newTestRouter(t, "s@uni-a.edu")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/demo/sessions", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRevertJob(t *testing.T) {
	router, jobs := newTestRouter(t, "demo@voxcampus.app")
	body := `{"userId":"demo-user","email":"demo@voxcampus.app","forceReset":true}`

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/demo-revert", strings.NewReader(body)))
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/jobs/demo-revert", strings.NewReader(`{"userId":"u1","email":"s@uni-a.edu"}`))
	req.Header.Set(JobKeyHeader, "job-secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":false`)

	req = httptest.NewRequest(http.MethodPost, "/jobs/demo-revert", strings.NewReader(body))
	req.Header.Set(JobKeyHeader, "job-secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted jobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	require.True(t, accepted.Success)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, jobs.Drain(ctx))

	req = httptest.NewRequest(http.MethodGet, "/jobs/demo-revert/"+accepted.ExecutionID, nil)
	req.Header.Set(JobKeyHeader, "job-secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var exec executionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exec))
	require.Equal(t, "succeeded", exec.Status)
	require.Equal(t, 2, exec.Summary.Reverted)
}
