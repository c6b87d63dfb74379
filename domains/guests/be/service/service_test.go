package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/voxcampus/voxcampus-platform/platform/go/metrics"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(ManagerConfig{Secret: []byte("test-secret"), DefaultInstitutionID: "inst-default"})
	require.NoError(t, err)
	return m
}

func TestStartSession(t *testing.T) {
	m := newManager(t)
	session, err := m.StartSession(t0.Add(500 * time.Millisecond))
	require.NoError(t, err)

	require.Equal(t, t0, session.StartedAt)
	require.Equal(t, t0.Add(30*time.Minute), session.ExpiresAt)
	require.Equal(t, "inst-default", session.InstitutionID)
	require.NotEmpty(t, session.Token)

	decoded, err := DecodeUnverified(session.Token)
	require.NoError(t, err)
	require.Equal(t, session, decoded)

	parsed, err := m.Parse(session.Token)
	require.NoError(t, err)
	require.Equal(t, session, parsed)
}

func TestValidityWindow(t *testing.T) {
	session, err := newManager(t).StartSession(t0)
	require.NoError(t, err)

	require.False(t, IsSessionValid(session, t0.Add(-time.Second)))
	require.True(t, IsSessionValid(session, t0))
	require.True(t, IsSessionValid(session, t0.Add(29*time.Minute)))
	require.False(t, IsSessionValid(session, t0.Add(30*time.Minute)))

	status := Check(session, t0.Add(31*time.Minute))
	require.False(t, status.Valid)
	require.True(t, status.Expired)

	status = Check(session, t0.Add(10*time.Minute))
	require.True(t, status.Valid)
	require.Equal(t, 20*time.Minute, status.Remaining)
}

func TestParseRejectsForeignSignature(t *testing.T) {
	other, err := NewManager(ManagerConfig{Secret: []byte("other"), DefaultInstitutionID: "inst-default"})
	require.NoError(t, err)
	session, err := other.StartSession(t0)
	require.NoError(t, err)

	_, err = newManager(t).Parse(session.Token)
	require.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeUnverified("not-a-token")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestNewManagerRequiresConfig(t *testing.T) {
	_, err := NewManager(ManagerConfig{DefaultInstitutionID: "x"})
	require.ErrorIs(t, err, ErrNotConfigured)
	_, err = NewManager(ManagerConfig{Secret: []byte("s")})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestValidator(t *testing.T) {
	m := newManager(t)
	session, err := m.StartSession(t0)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)
	now := t0.Add(5 * time.Minute)
	v := NewValidator(m, "gate", met, zaptest.NewLogger(t), func() time.Time { return now })
	ctx := context.Background()

	res, err := v.Validate(ctx, ValidateRequest{SessionToken: session.Token, GuestKey: "gate"})
	require.NoError(t, err)
	require.Equal(t, 25*time.Minute, res.Remaining)
	require.Equal(t, "inst-default", res.InstitutionID)

	_, err = v.Validate(ctx, ValidateRequest{SessionToken: session.Token, GuestKey: "wrong"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = v.Validate(ctx, ValidateRequest{SessionToken: "", GuestKey: "gate"})
	require.ErrorIs(t, err, ErrMalformed)

	now = t0.Add(31 * time.Minute)
	_, err = v.Validate(ctx, ValidateRequest{SessionToken: session.Token, GuestKey: "gate"})
	require.ErrorIs(t, err, ErrExpired)

	_, err = NewValidator(nil, "gate", met, zaptest.NewLogger(t), nil).Validate(ctx, ValidateRequest{SessionToken: "x", GuestKey: "gate"})
	require.ErrorIs(t, err, ErrNotConfigured)

	require.Equal(t, float64(1), testutil.ToFloat64(met.GuestValidations.WithLabelValues("valid")))
	require.Equal(t, float64(1), testutil.ToFloat64(met.GuestValidations.WithLabelValues("expired")))
	require.Equal(t, float64(1), testutil.ToFloat64(met.GuestValidations.WithLabelValues("error")))
}

func TestValidatorRejectsSessionsFromTheFuture(t *testing.T) {
	m := newManager(t)
	session, err := m.StartSession(t0.Add(time.Hour))
	require.NoError(t, err)

	met := metrics.New(prometheus.NewRegistry())
	v := NewValidator(m, "gate", met, zaptest.NewLogger(t), func() time.Time { return t0 })

	_, err = v.Validate(context.Background(), ValidateRequest{SessionToken: session.Token, GuestKey: "gate"})
	require.ErrorIs(t, err, ErrMalformed)
	require.NotErrorIs(t, err, ErrExpired)
	require.Equal(t, float64(1), testutil.ToFloat64(met.GuestValidations.WithLabelValues("malformed")))
}
