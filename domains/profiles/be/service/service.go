package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

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
	ErrNotFound      = errors.New("profile not found")
	ErrNoInstitution = errors.New("request has no institution")
)

const (
	maxDisplayName = 120
	maxBio         = 2000
)

// Profile is the public card of a user. The zero values are the defaults a reset restores.
type Profile struct {
	UserID        string
	InstitutionID string
	DisplayName   string
	Bio           string
	AvatarFileID  *string
	UpdatedAt     time.Time
}

// UpdateInput is a partial update; nil fields are left untouched.
type UpdateInput struct {
	DisplayName  *string
	Bio          *string
	AvatarFileID *string
	ClearAvatar  bool
}

// Repository abstracts persistence. Get returns ErrNotFound for users without a profile row.
type Repository interface {
	Get(ctx context.Context, userID string) (Profile, error)
	Upsert(ctx context.Context, profile Profile) (Profile, error)
	Reset(ctx context.Context, userID string) error
}

// Tracker records profile mutations for demo sessions.
type Tracker interface {
	TrackProfile(ctx context.Context, userID string)
}

// Service defines the business operations for profiles.
type Service interface {
	Get(ctx context.Context, userID string) (Profile, error)
	Update(ctx context.Context, userID string, input UpdateInput) (Profile, error)
	// Reset restores the defaults; a user without a profile is left untouched.
	Reset(ctx context.Context, userID string) error
}

type service struct {
	repo    Repository
	tracker Tracker
	logger  *zap.Logger
}

// New constructs a profiles Service. tracker may be nil.
func New(repo Repository, tracker Tracker, logger *zap.Logger) Service {
	if repo == nil {
		panic("profiles repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{repo: repo, tracker: tracker, logger: logger}
}

// Get returns the stored profile, or the defaults when the user never saved one.
func (s *service) Get(ctx context.Context, userID string) (Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return Profile{}, newValidationError(map[string]string{"userId": "userId is required"})
	}
	profile, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		access, _ := tenant.FromContext(ctx)
		return Profile{UserID: userID, InstitutionID: access.InstitutionID}, nil
	}
	return profile, err
}

func (s *service) Update(ctx context.Context, userID string, input UpdateInput) (Profile, error) {
	access, ok := tenant.FromContext(ctx)
	if !ok || access.InstitutionID == "" {
		return Profile{}, ErrNoInstitution
	}
	if strings.TrimSpace(userID) == "" {
		return Profile{}, newValidationError(map[string]string{"userId": "userId is required"})
	}

	fieldErrors := FieldErrors{}
	if input.DisplayName != nil && utf8.RuneCountInString(*input.DisplayName) > maxDisplayName {
		fieldErrors.add("displayName", "displayName must be at most 120 characters")
	}
	if input.Bio != nil && utf8.RuneCountInString(*input.Bio) > maxBio {
		fieldErrors.add("bio", "bio must be at most 2000 characters")
	}
	if input.AvatarFileID != nil && strings.TrimSpace(*input.AvatarFileID) == "" {
		fieldErrors.add("avatarFileId", "avatarFileId must not be blank")
	}
	if len(fieldErrors) > 0 {
		return Profile{}, &ValidationError{Fields: fieldErrors}
	}

	current, err := s.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	current.InstitutionID = access.InstitutionID
	if input.DisplayName != nil {
		current.DisplayName = strings.TrimSpace(*input.DisplayName)
	}
	if input.Bio != nil {
		current.Bio = *input.Bio
	}
	switch {
	case input.ClearAvatar:
		current.AvatarFileID = nil
	case input.AvatarFileID != nil:
		avatar := strings.TrimSpace(*input.AvatarFileID)
		current.AvatarFileID = &avatar
	}

	updated, err := s.repo.Upsert(ctx, current)
	if err != nil {
		return Profile{}, err
	}
	if s.tracker != nil {
		s.tracker.TrackProfile(ctx, userID)
	}
	return updated, nil
}

func (s *service) Reset(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return newValidationError(map[string]string{"userId": "userId is required"})
	}
	return s.repo.Reset(ctx, userID)
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
