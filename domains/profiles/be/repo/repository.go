package repo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/voxcampus/voxcampus-platform/domains/profiles/be/service"
	"github.com/voxcampus/voxcampus-platform/platform/go/persistence"
)

type postgresRepository struct {
	store *persistence.AccountStore
}

// NewPostgresRepository constructs a repository backed by the profiles table.
func NewPostgresRepository(store *persistence.AccountStore) service.Repository {
	if store == nil {
		panic("account store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) Get(ctx context.Context, userID string) (service.Profile, error) {
	rec, err := r.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return service.Profile{}, service.ErrNotFound
		}
		return service.Profile{}, err
	}
	return service.Profile(rec), nil
}

func (r *postgresRepository) Upsert(ctx context.Context, profile service.Profile) (service.Profile, error) {
	rec, err := r.store.UpsertProfile(ctx, persistence.ProfileRecord(profile))
	if err != nil {
		return service.Profile{}, err
	}
	return service.Profile(rec), nil
}

func (r *postgresRepository) Reset(ctx context.Context, userID string) error {
	return r.store.ResetProfile(ctx, userID)
}

// MemoryRepository is an in-memory implementation for tests and local development.
type MemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]service.Profile
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{profiles: make(map[string]service.Profile)}
}

func (r *MemoryRepository) Get(ctx context.Context, userID string) (service.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[userID]
	if !ok {
		return service.Profile{}, service.ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepository) Upsert(ctx context.Context, profile service.Profile) (service.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	profile.UpdatedAt = time.Now().UTC()
	r.profiles[profile.UserID] = profile
	return profile, nil
}

func (r *MemoryRepository) Reset(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil
	}
	r.profiles[userID] = service.Profile{UserID: p.UserID, InstitutionID: p.InstitutionID, UpdatedAt: time.Now().UTC()}
	return nil
}

var _ service.Repository = (*MemoryRepository)(nil)
