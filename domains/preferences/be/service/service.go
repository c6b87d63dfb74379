package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voxcampus/voxcampus-platform/platform/go/persistence"
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

// ErrNotFound is returned when a preference key is not set.
var ErrNotFound = errors.New("preference not found")

const maxValueBytes = 16 << 10

// Preference is one keyed JSON value of a user.
type Preference struct {
	UserID    string
	Key       string
	Value     json.RawMessage
	UpdatedAt time.Time
}

// Repository abstracts persistence.
type Repository interface {
	List(ctx context.Context, userID string) ([]Preference, error)
	Set(ctx context.Context, pref Preference) (Preference, error)
	Remove(ctx context.Context, userID, key string) (bool, error)
}

// Tracker records preference writes for demo sessions.
type Tracker interface {
	TrackPreference(ctx context.Context, userID, key string)
}

// Service defines the business operations for preferences.
type Service interface {
	List(ctx context.Context, userID string) ([]Preference, error)
	Set(ctx context.Context, userID, key string, value json.RawMessage) (Preference, error)
	Remove(ctx context.Context, userID, key string) error
	// Purge removes key; an absent key is not an error.
	Purge(ctx context.Context, userID, key string) error
}

type service struct {
	repo    Repository
	tracker Tracker
	logger  *zap.Logger
}

// New constructs a preferences Service. tracker may be nil.
func New(repo Repository, tracker Tracker, logger *zap.Logger) Service {
	if repo == nil {
		panic("preferences repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{repo: repo, tracker: tracker, logger: logger}
}

func (s *service) List(ctx context.Context, userID string) ([]Preference, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, newValidationError("userId", "userId is required")
	}
	return s.repo.List(ctx, userID)
}

func (s *service) Set(ctx context.Context, userID, key string, value json.RawMessage) (Preference, error) {
	fieldErrors := FieldErrors{}
	if strings.TrimSpace(userID) == "" {
		fieldErrors.add("userId", "userId is required")
	}
	normalized, err := persistence.NormalizePreferenceKey(key)
	if err != nil {
		fieldErrors.add("key", err.Error())
	}
	switch {
	case len(value) == 0:
		fieldErrors.add("value", "value is required")
	case len(value) > maxValueBytes:
		fieldErrors.add("value", "value must be at most 16 KiB")
	case !json.Valid(value):
		fieldErrors.add("value", "value must be valid JSON")
	}
	if len(fieldErrors) > 0 {
		return Preference{}, &ValidationError{Fields: fieldErrors}
	}

	pref, err := s.repo.Set(ctx, Preference{UserID: userID, Key: normalized, Value: value})
	if err != nil {
		return Preference{}, err
	}
	if s.tracker != nil {
		s.tracker.TrackPreference(ctx, userID, normalized)
	}
	return pref, nil
}

func (s *service) Remove(ctx context.Context, userID, key string) error {
	normalized, err := persistence.NormalizePreferenceKey(key)
	if err != nil {
		return newValidationError("key", err.Error())
	}
	removed, err := s.repo.Remove(ctx, userID, normalized)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound
	}
	return nil
}

func (s *service) Purge(ctx context.Context, userID, key string) error {
	if _, err := s.repo.Remove(ctx, userID, key); err != nil {
		return fmt.Errorf("purge preference %s/%s: %w", userID, key, err)
	}
	return nil
}

func newValidationError(field, message string) error {
	fe := FieldErrors{}
	fe.add(field, message)
	return &ValidationError{Fields: fe}
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
