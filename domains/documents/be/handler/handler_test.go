package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/voxcampus/voxcampus-platform/domains/documents/be/repo"
	"github.com/voxcampus/voxcampus-platform/domains/documents/be/service"
	platformauth "github.com/voxcampus/voxcampus-platform/platform/go/auth"
	"github.com/voxcampus/voxcampus-platform/platform/go/tenant"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := service.New(repo.NewMemoryRepository(), nil, nil, zaptest.NewLogger(t))
	h := New(svc, zaptest.NewLogger(t))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			inst := req.Header.Get("X-Test-Institution")
			ctx := platformauth.WithUser(req.Context(), &platformauth.UserCredentials{ID: "u-" + inst, Email: "s@" + inst + ".edu"})
			ctx = tenant.WithAccess(ctx, tenant.Access{InstitutionID: inst})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.Register(r)
	return r
}

func do(router http.Handler, method, target, institution, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set("X-Test-Institution", institution)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestDocumentLifecycle(t *testing.T) {
	router := newRouter(t)

	rec := do(router, http.MethodPost, "/collections/posts/documents", "inst-a", `{"$id":"p1","title":"hello","likes":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "/api/v1/collections/posts/documents/p1", rec.Header().Get("Location"))

	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "p1", created["$id"])
	require.Equal(t, "inst-a", created["institutionId"])
	require.Equal(t, "hello", created["title"])

	rec = do(router, http.MethodPatch, "/collections/posts/documents/p1", "inst-a", `{"likes":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"likes":2`)

	rec = do(router, http.MethodGet, "/collections/posts/documents/p1", "inst-b", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(router, http.MethodDelete, "/collections/posts/documents/p1", "inst-a", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(router, http.MethodGet, "/collections/posts/documents/p1", "inst-a", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListWithQueries(t *testing.T) {
	router := newRouter(t)
	for _, body := range []string{`{"$id":"a","tag":"x"}`, `{"$id":"b","tag":"y"}`, `{"$id":"c","tag":"x"}`} {
		require.Equal(t, http.StatusCreated, do(router, http.MethodPost, "/collections/posts/documents", "inst-a", body).Code)
	}
	require.Equal(t, http.StatusCreated, do(router, http.MethodPost, "/collections/posts/documents", "inst-b", `{"$id":"d","tag":"x"}`).Code)

	params := url.Values{}
	params.Add("queries", `{"method":"equal","attribute":"tag","values":["x"]}`)
	params.Add("queries", `{"method":"orderDesc","attribute":"$id"}`)
	rec := do(router, http.MethodGet, "/collections/posts/documents?"+params.Encode(), "inst-a", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Documents []map[string]any `json:"documents"`
		Total     int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Total)
	require.Equal(t, "c", body.Documents[0]["$id"])
	require.Equal(t, "a", body.Documents[1]["$id"])

	rec = do(router, http.MethodGet, "/collections/posts/documents?queries=not-json", "inst-a", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRejectsNonObject(t *testing.T) {
	router := newRouter(t)

	rec := do(router, http.MethodPost, "/collections/posts/documents", "inst-a", `[1,2]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPost, "/collections/posts/documents", "inst-a", `null`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
