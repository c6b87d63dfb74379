package service

import (
	"context"
	"errors"
	"strings"
	"time"

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
	ErrNotFound  = errors.New("institution not found")
	ErrConflict  = errors.New("institution conflict")
	ErrForbidden = errors.New("institution not allowed for this account")
)

// Institution is a tenant: a school identified by its email domain.
type Institution struct {
	ID        string
	Name      string
	Domain    string
	LogoRef   *string
	CreatedAt time.Time
}

// Membership records that a user joined an institution.
type Membership struct {
	UserID        string
	InstitutionID string
	JoinedAt      time.Time
}

// Actor identifies who performs an operation.
type Actor struct {
	UserID string
	Email  string
}

// UpsertInput creates or replaces an institution.
type UpsertInput struct {
	ID      string
	Name    string
	Domain  string
	LogoRef *string
}

// Repository abstracts persistence. Implementations return ErrNotFound and ErrConflict.
type Repository interface {
	GetByID(ctx context.Context, id string) (Institution, error)
	GetByDomain(ctx context.Context, domain string) (Institution, error)
	List(ctx context.Context) ([]Institution, error)
	Upsert(ctx context.Context, inst Institution) (Institution, error)
	AddMembership(ctx context.Context, userID, institutionID string) (Membership, error)
	ListMemberships(ctx context.Context, userID string) ([]Membership, error)
}

// Config carries the deployment-level tenant settings.
type Config struct {
	// DefaultInstitutionID is the fallback for unknown domains; empty disables the fallback.
	DefaultInstitutionID string
	Exemptions           tenant.ExemptionList
}

// Service defines the business operations for the institutions domain.
type Service interface {
	ResolveInstitution(ctx context.Context, email string) (Institution, bool)
	ResolveInstitutionID(ctx context.Context, email string) (string, bool)
	Get(ctx context.Context, id string) (Institution, error)
	Default(ctx context.Context) (Institution, error)
	List(ctx context.Context) ([]Institution, error)
	Upsert(ctx context.Context, input UpsertInput) (Institution, error)
	Join(ctx context.Context, actor Actor, institutionID string) (Membership, error)
	Memberships(ctx context.Context, userID string) ([]Membership, error)
}

type service struct {
	repo   Repository
	cfg    Config
	logger *zap.Logger
}

// New constructs an institutions Service backed by the provided repository.
func New(repo Repository, cfg Config, logger *zap.Logger) Service {
	if repo == nil {
		panic("institutions repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{repo: repo, cfg: cfg, logger: logger}
}

// ResolveInstitution maps email to its institution by domain, falling back to the default
// institution. Lookup errors are logged and reported as not found.
func (s *service) ResolveInstitution(ctx context.Context, email string) (Institution, bool) {
	logger := platformlogging.FromContextOr(ctx, s.logger)

	domain, ok := tenant.EmailDomain(email)
	if !ok {
		return Institution{}, false
	}

	inst, err := s.repo.GetByDomain(ctx, domain)
	switch {
	case err == nil:
		return inst, true
	case errors.Is(err, ErrNotFound):
	default:
		logger.Error("resolve institution by domain", zap.String("domain", domain), zap.Error(err))
		return Institution{}, false
	}

	inst, err = s.Default(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Error("load default institution", zap.String("institutionId", s.cfg.DefaultInstitutionID), zap.Error(err))
		}
		return Institution{}, false
	}
	return inst, true
}

func (s *service) ResolveInstitutionID(ctx context.Context, email string) (string, bool) {
	inst, ok := s.ResolveInstitution(ctx, email)
	if !ok {
		return "", false
	}
	return inst.ID, true
}

func (s *service) Get(ctx context.Context, id string) (Institution, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Institution{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) Default(ctx context.Context) (Institution, error) {
	if s.cfg.DefaultInstitutionID == "" {
		return Institution{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, s.cfg.DefaultInstitutionID)
}

func (s *service) List(ctx context.Context) ([]Institution, error) {
	return s.repo.List(ctx)
}

func (s *service) Upsert(ctx context.Context, input UpsertInput) (Institution, error) {
	fieldErrors := FieldErrors{}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		fieldErrors.add("id", "id is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		fieldErrors.add("name", "name is required")
	}
	domain := strings.ToLower(strings.TrimSpace(input.Domain))
	if domain == "" {
		fieldErrors.add("domain", "domain is required")
	} else if strings.Contains(domain, "@") {
		fieldErrors.add("domain", "domain must not contain '@'")
	}

	if len(fieldErrors) > 0 {
		return Institution{}, &ValidationError{Fields: fieldErrors}
	}

	return s.repo.Upsert(ctx, Institution{ID: id, Name: name, Domain: domain, LogoRef: input.LogoRef})
}

// Join records a membership. Regular accounts may only join the institution their email resolves to.
func (s *service) Join(ctx context.Context, actor Actor, institutionID string) (Membership, error) {
	institutionID = strings.TrimSpace(institutionID)
	if actor.UserID == "" {
		return Membership{}, newValidationError(map[string]string{"userId": "userId is required"})
	}
	if institutionID == "" {
		return Membership{}, newValidationError(map[string]string{"institutionId": "institutionId is required"})
	}

	if _, err := s.repo.GetByID(ctx, institutionID); err != nil {
		return Membership{}, err
	}

	if !s.cfg.Exemptions.IsExempt(actor.Email) {
		resolved, ok := s.ResolveInstitutionID(ctx, actor.Email)
		if !ok || resolved != institutionID {
			return Membership{}, ErrForbidden
		}
	}

	return s.repo.AddMembership(ctx, actor.UserID, institutionID)
}

func (s *service) Memberships(ctx context.Context, userID string) ([]Membership, error) {
	if userID == "" {
		return nil, newValidationError(map[string]string{"userId": "userId is required"})
	}
	return s.repo.ListMemberships(ctx, userID)
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
