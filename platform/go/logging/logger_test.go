package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLoggerEmitsGCPSeverity(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Component: "test", Level: "debug", Output: &buf})
	require.NoError(t, err)

	logger.Warn("tracking failed", zap.String("kind", "document"))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "WARNING", entry["severity"])
	require.Equal(t, "test", entry["component"])
	require.Equal(t, "tracking failed", entry["message"])
	require.Equal(t, "document", entry["kind"])
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(Config{Level: "chatty"})
	require.Error(t, err)
}

func TestFromContextOrFallsBack(t *testing.T) {
	require.NotNil(t, FromContextOr(context.Background(), nil))

	base := zap.NewExample()
	require.Same(t, base, FromContextOr(context.Background(), base))

	scoped := base.With(zap.String("institution_id", "inst-1"))
	ctx := WithLogger(context.Background(), scoped)
	require.Same(t, scoped, FromContextOr(ctx, base))
}

func TestRequestLoggerStoresLoggerOnContext(t *testing.T) {
	var buf bytes.Buffer
	base, err := NewLogger(Config{Output: &buf})
	require.NoError(t, err)

	var seen bool
	handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, seen = FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/profiles/me", nil))

	require.True(t, seen)
	require.Equal(t, http.StatusTeapot, rec.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "request completed", entry["message"])
	require.EqualValues(t, http.StatusTeapot, entry["status"])
}
