package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

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
	ErrNotFound      = errors.New("relation not found")
	ErrConflict      = errors.New("relation already exists")
	ErrForbidden     = errors.New("relation belongs to another user")
	ErrNoInstitution = errors.New("request has no institution")
)

var relationTypePattern = regexp.MustCompile(`^[a-z][a-z0-9-]{0,39}$`)

// Relation is a typed edge from a user to another resource, e.g. follow or join-club.
type Relation struct {
	ID            uuid.UUID
	Type          string
	FromUserID    string
	ToID          string
	InstitutionID string
	CreatedAt     time.Time
}

// CreateInput carries the request payload for new relations.
type CreateInput struct {
	Type string
	ToID string
}

// Repository abstracts persistence. Create returns ErrConflict for a duplicate edge.
type Repository interface {
	Create(ctx context.Context, relation Relation) (Relation, error)
	Get(ctx context.Context, id uuid.UUID) (Relation, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// Tracker records new associations for demo sessions.
type Tracker interface {
	TrackAssociation(ctx context.Context, relationID, relationType string)
}

// Service defines the business operations for relations.
type Service interface {
	Create(ctx context.Context, userID string, input CreateInput) (Relation, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) error
	// Purge removes a relation regardless of owner; an absent relation is not an error.
	Purge(ctx context.Context, relationID string) error
}

type service struct {
	repo    Repository
	tracker Tracker
	logger  *zap.Logger
}

// New constructs a relations Service. tracker may be nil.
func New(repo Repository, tracker Tracker, logger *zap.Logger) Service {
	if repo == nil {
		panic("relations repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{repo: repo, tracker: tracker, logger: logger}
}

func (s *service) Create(ctx context.Context, userID string, input CreateInput) (Relation, error) {
	access, ok := tenant.FromContext(ctx)
	if !ok || access.InstitutionID == "" {
		return Relation{}, ErrNoInstitution
	}

	relationType := strings.ToLower(strings.TrimSpace(input.Type))
	toID := strings.TrimSpace(input.ToID)

	fieldErrors := FieldErrors{}
	if strings.TrimSpace(userID) == "" {
		fieldErrors.add("userId", "userId is required")
	}
	if !relationTypePattern.MatchString(relationType) {
		fieldErrors.add("type", "type must match ^[a-z][a-z0-9-]*$")
	}
	if toID == "" {
		fieldErrors.add("toId", "toId is required")
	}
	if len(fieldErrors) > 0 {
		return Relation{}, &ValidationError{Fields: fieldErrors}
	}

	created, err := s.repo.Create(ctx, Relation{
		ID:            uuid.New(),
		Type:          relationType,
		FromUserID:    userID,
		ToID:          toID,
		InstitutionID: access.InstitutionID,
	})
	if err != nil {
		return Relation{}, err
	}
	if s.tracker != nil {
		s.tracker.TrackAssociation(ctx, created.ID.String(), created.Type)
	}
	return created, nil
}

func (s *service) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	relation, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if relation.FromUserID != userID {
		return ErrForbidden
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

func (s *service) Purge(ctx context.Context, relationID string) error {
	id, err := uuid.Parse(strings.TrimSpace(relationID))
	if err != nil {
		return fmt.Errorf("invalid relation id %q: %w", relationID, err)
	}
	if _, err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("purge relation %s: %w", id, err)
	}
	return nil
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
