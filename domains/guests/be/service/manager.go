package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultDuration is the lifetime of a guest session.
const DefaultDuration = 30 * time.Minute

// Domain sentinel errors.
var (
	ErrMalformed     = errors.New("malformed guest session token")
	ErrExpired       = errors.New("guest session expired")
	ErrForbidden     = errors.New("invalid guest key")
	ErrNotConfigured = errors.New("guest sessions are not configured")
)

// Session is an anonymous, time-boxed grant scoped to one institution.
type Session struct {
	ID            string
	InstitutionID string
	StartedAt     time.Time
	ExpiresAt     time.Time
	Token         string
}

// Status is the outcome of checking a session against a clock.
type Status struct {
	Valid     bool
	Expired   bool
	Remaining time.Duration
}

type guestClaims struct {
	SessionID     string `json:"sid"`
	InstitutionID string `json:"inst"`
	jwt.RegisteredClaims
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Secret               []byte
	Duration             time.Duration
	DefaultInstitutionID string
}

// Manager issues and decodes guest session tokens.
type Manager struct {
	secret      []byte
	duration    time.Duration
	institution string
}

// NewManager validates cfg and returns a Manager. Duration defaults to DefaultDuration.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("%w: secret is required", ErrNotConfigured)
	}
	if strings.TrimSpace(cfg.DefaultInstitutionID) == "" {
		return nil, fmt.Errorf("%w: default institution is required", ErrNotConfigured)
	}
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	return &Manager{secret: cfg.Secret, duration: cfg.Duration, institution: cfg.DefaultInstitutionID}, nil
}

// DefaultInstitution returns the institution every guest session is scoped to.
func (m *Manager) DefaultInstitution() string {
	return m.institution
}

// Duration returns the configured session lifetime.
func (m *Manager) Duration() time.Duration {
	return m.duration
}

// StartSession issues a new signed session starting at now.
func (m *Manager) StartSession(now time.Time) (Session, error) {
	start := now.UTC().Truncate(time.Second)
	session := Session{
		ID:            uuid.NewString(),
		InstitutionID: m.institution,
		StartedAt:     start,
		ExpiresAt:     start.Add(m.duration),
	}

	claims := guestClaims{
		SessionID:     session.ID,
		InstitutionID: session.InstitutionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(session.StartedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			Subject:   "guest",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign guest session: %w", err)
	}
	session.Token = token
	return session, nil
}

// Parse verifies the token signature and rebuilds the session. Expiry is not
// enforced here so callers can report it through Check.
func (m *Manager) Parse(token string) (Session, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	var claims guestClaims
	if _, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return sessionFromClaims(token, claims)
}

// DecodeUnverified rebuilds the session from the token bytes without the signing secret.
// It backs the client-side fast path and must not be used for authorization.
func DecodeUnverified(token string) (Session, error) {
	var claims guestClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return sessionFromClaims(token, claims)
}

// IsSessionValid reports whether start <= now < expiry.
func IsSessionValid(session Session, now time.Time) bool {
	return !now.Before(session.StartedAt) && now.Before(session.ExpiresAt)
}

// Check evaluates session at now. Once expired a session never becomes valid again.
func Check(session Session, now time.Time) Status {
	if !now.Before(session.ExpiresAt) {
		return Status{Expired: true}
	}
	if now.Before(session.StartedAt) {
		return Status{}
	}
	return Status{Valid: true, Remaining: session.ExpiresAt.Sub(now)}
}

func sessionFromClaims(token string, claims guestClaims) (Session, error) {
	if claims.IssuedAt == nil || claims.ExpiresAt == nil || claims.SessionID == "" {
		return Session{}, fmt.Errorf("%w: missing claims", ErrMalformed)
	}
	session := Session{
		ID:            claims.SessionID,
		InstitutionID: claims.InstitutionID,
		StartedAt:     claims.IssuedAt.UTC(),
		ExpiresAt:     claims.ExpiresAt.UTC(),
		Token:         token,
	}
	if !session.ExpiresAt.After(session.StartedAt) {
		return Session{}, fmt.Errorf("%w: expiry precedes start", ErrMalformed)
	}
	return session, nil
}
