package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	platformlogging "github.com/voxcampus/voxcampus-platform/platform/go/logging"
	"github.com/voxcampus/voxcampus-platform/platform/go/tenant"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain sentinel errors.
var (
	ErrNoSession = errors.New("no active demo session")
	ErrNotExempt = errors.New("account is not allowed to run demo sessions")
	ErrNotFound  = errors.New("demo execution not found")
)

// Kind names the resource family a tracked change belongs to.
type Kind string

const (
	KindDocument    Kind = "document"
	KindFile        Kind = "file"
	KindProfile     Kind = "profile"
	KindAssociation Kind = "association"
	KindPreference  Kind = "preference"
)

// Session is an active demo session of the exempt account.
type Session struct {
	ID        uuid.UUID
	UserID    string
	Email     string
	StartedAt time.Time
}

// Change is one mutation recorded during a session so it can be undone later.
type Change struct {
	ID               uuid.UUID
	SessionID        uuid.UUID
	SessionStartedAt time.Time
	UserID           string
	Kind             Kind
	Location         string
	RelationType     *string
	// Snapshot is the document before the change; nil when the session created it.
	Snapshot         json.RawMessage
	Attempts         int
	LastError        *string
	CreatedAt        time.Time
}

// Actor identifies who performs an operation.
type Actor struct {
	UserID string
	Email  string
}

// SessionRegistry keeps at most one active session per user.
type SessionRegistry interface {
	// Begin starts a new session, replacing any current one.
	Begin(ctx context.Context, userID, email string) (Session, error)
	// Current returns ErrNoSession when the user has no live session.
	Current(ctx context.Context, userID string) (Session, error)
	End(ctx context.Context, userID string) error
}

// ChangeRepository persists tracked changes. Listings are newest first.
type ChangeRepository interface {
	Insert(ctx context.Context, change Change) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Change, error)
	ListByUser(ctx context.Context, userID string, latestSessionOnly bool) ([]Change, error)
	Delete(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	PendingUsers(ctx context.Context) ([]string, error)
}

// RevertRunner is the part of the Reverter used by jobs, the sweeper and session logout.
type RevertRunner interface {
	Revert(ctx context.Context, target Target) (Summary, error)
}

// Service is the session lifecycle seen by the exempt account.
type Service interface {
	Begin(ctx context.Context, actor Actor) (Session, error)
	Current(ctx context.Context, actor Actor) (Session, error)
	// End closes the current session and reverts its changes.
	End(ctx context.Context, actor Actor) (Summary, error)
}

type service struct {
	sessions   SessionRegistry
	reverter   RevertRunner
	exemptions tenant.ExemptionList
	logger     *zap.Logger
}

// New constructs the demo session Service.
func New(sessions SessionRegistry, reverter RevertRunner, exemptions tenant.ExemptionList, logger *zap.Logger) Service {
	if sessions == nil {
		panic("session registry is required")
	}
	if reverter == nil {
		panic("reverter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{sessions: sessions, reverter: reverter, exemptions: exemptions, logger: logger}
}

func (s *service) Begin(ctx context.Context, actor Actor) (Session, error) {
	if err := s.authorize(actor); err != nil {
		return Session{}, err
	}
	session, err := s.sessions.Begin(ctx, actor.UserID, strings.ToLower(strings.TrimSpace(actor.Email)))
	if err != nil {
		return Session{}, err
	}
	platformlogging.FromContextOr(ctx, s.logger).Info("demo session started",
		zap.String("sessionId", session.ID.String()), zap.String("userId", actor.UserID))
	return session, nil
}

func (s *service) Current(ctx context.Context, actor Actor) (Session, error) {
	if err := s.authorize(actor); err != nil {
		return Session{}, err
	}
	return s.sessions.Current(ctx, actor.UserID)
}

func (s *service) End(ctx context.Context, actor Actor) (Summary, error) {
	if err := s.authorize(actor); err != nil {
		return Summary{}, err
	}

	session, err := s.sessions.Current(ctx, actor.UserID)
	if err != nil {
		return Summary{}, err
	}
	if err := s.sessions.End(ctx, actor.UserID); err != nil {
		return Summary{}, err
	}

	summary, err := s.reverter.Revert(ctx, Target{SessionID: session.ID, UserID: actor.UserID})
	if err != nil {
		return Summary{}, err
	}
	platformlogging.FromContextOr(ctx, s.logger).Info("demo session ended",
		zap.String("sessionId", session.ID.String()),
		zap.Int("reverted", summary.Reverted),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func (s *service) authorize(actor Actor) error {
	if actor.UserID == "" {
		return newValidationError(map[string]string{"userId": "userId is required"})
	}
	if !s.exemptions.IsExempt(actor.Email) {
		return ErrNotExempt
	}
	return nil
}

func newValidationError(fields map[string]string) error {
	fe := FieldErrors{}
	for key, message := range fields {
		fe.add(key, message)
	}
	return &ValidationError{Fields: fe}
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
