package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/voxcampus/voxcampus-platform/domains/guests/be/service"
)

func TestGuestRoutes(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := t0

	manager, err := service.NewManager(service.ManagerConfig{Secret: []byte("secret"), DefaultInstitutionID: "inst-default"})
	require.NoError(t, err)
	validator := service.NewValidator(manager, "gate", nil, zaptest.NewLogger(t), func() time.Time { return now })
	h := New(manager, validator, zaptest.NewLogger(t))
	h.now = func() time.Time { return now }

	r := chi.NewRouter()
	h.RegisterPublic(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/guest/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var session sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.Equal(t, "inst-default", session.InstitutionID)
	require.Equal(t, t0.Add(30*time.Minute), session.ExpiryTime)

	validate := func(token, key string) (*httptest.ResponseRecorder, validateResponse) {
		body, err := json.Marshal(validateRequest{SessionToken: token, GuestKey: key})
		require.NoError(t, err)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/guest/validate", strings.NewReader(string(body))))
		var resp validateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return rec, resp
	}

	now = t0.Add(10 * time.Minute)
	rec, resp := validate(session.SessionToken, "gate")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)
	require.Equal(t, int64(20*60), resp.RemainingTime)

	rec, _ = validate(session.SessionToken, "nope")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = validate("garbage", "gate")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	now = t0.Add(31 * time.Minute)
	rec, resp = validate(session.SessionToken, "gate")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, resp.Success)
	require.True(t, resp.Expired)
}
