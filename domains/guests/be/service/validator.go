package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	platformlogging "github.com/voxcampus/voxcampus-platform/platform/go/logging"
	"github.com/voxcampus/voxcampus-platform/platform/go/metrics"
)

// ValidateRequest is the payload of the server-side validation path.
type ValidateRequest struct {
	SessionToken string
	GuestKey     string
}

// ValidateResult describes a session that passed validation.
type ValidateResult struct {
	Remaining     time.Duration
	ExpiresAt     time.Time
	InstitutionID string
}

// Validator re-derives a session from its token and gates callers with a shared key.
type Validator struct {
	manager *Manager
	gateKey string
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewValidator builds a Validator. manager may be nil, in which case every call fails with ErrNotConfigured.
func NewValidator(manager *Manager, gateKey string, m *metrics.Metrics, logger *zap.Logger, now func() time.Time) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Validator{manager: manager, gateKey: gateKey, metrics: m, logger: logger, now: now}
}

// Validate returns ErrMalformed, ErrForbidden, ErrExpired or ErrNotConfigured on rejection.
func (v *Validator) Validate(ctx context.Context, req ValidateRequest) (ValidateResult, error) {
	res, err := v.validate(req)
	v.observe(ctx, err)
	return res, err
}

func (v *Validator) validate(req ValidateRequest) (ValidateResult, error) {
	if v.manager == nil || v.gateKey == "" {
		return ValidateResult{}, ErrNotConfigured
	}
	if strings.TrimSpace(req.SessionToken) == "" {
		return ValidateResult{}, ErrMalformed
	}
	if subtle.ConstantTimeCompare([]byte(req.GuestKey), []byte(v.gateKey)) != 1 {
		return ValidateResult{}, ErrForbidden
	}

	session, err := v.manager.Parse(req.SessionToken)
	if err != nil {
		return ValidateResult{}, err
	}
	status := Check(session, v.now())
	if status.Expired {
		return ValidateResult{ExpiresAt: session.ExpiresAt, InstitutionID: session.InstitutionID}, ErrExpired
	}
	if !status.Valid {
		return ValidateResult{}, fmt.Errorf("%w: session starts in the future", ErrMalformed)
	}
	return ValidateResult{
		Remaining:     status.Remaining,
		ExpiresAt:     session.ExpiresAt,
		InstitutionID: session.InstitutionID,
	}, nil
}

func (v *Validator) observe(ctx context.Context, err error) {
	result := "valid"
	switch {
	case err == nil:
	case errors.Is(err, ErrMalformed):
		result = "malformed"
	case errors.Is(err, ErrForbidden):
		result = "forbidden"
	case errors.Is(err, ErrExpired):
		result = "expired"
	default:
		result = "error"
	}
	if v.metrics != nil {
		v.metrics.GuestValidations.WithLabelValues(result).Inc()
	}
	if result == "error" {
		platformlogging.FromContextOr(ctx, v.logger).Error("guest validation failed", zap.Error(err))
	}
}
