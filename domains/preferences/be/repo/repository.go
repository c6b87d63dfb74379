package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/voxcampus/voxcampus-platform/domains/preferences/be/service"
	"github.com/voxcampus/voxcampus-platform/platform/go/persistence"
)

type postgresRepository struct {
	store *persistence.AccountStore
}

// NewPostgresRepository constructs a repository backed by the user_preferences table.
func NewPostgresRepository(store *persistence.AccountStore) service.Repository {
	if store == nil {
		panic("account store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) List(ctx context.Context, userID string) ([]service.Preference, error) {
	recs, err := r.store.ListPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]service.Preference, 0, len(recs))
	for _, rec := range recs {
		out = append(out, service.Preference(rec))
	}
	return out, nil
}

func (r *postgresRepository) Set(ctx context.Context, pref service.Preference) (service.Preference, error) {
	rec, err := r.store.SetPreference(ctx, persistence.PreferenceRecord(pref))
	if err != nil {
		return service.Preference{}, err
	}
	return service.Preference(rec), nil
}

func (r *postgresRepository) Remove(ctx context.Context, userID, key string) (bool, error) {
	return r.store.RemovePreference(ctx, userID, key)
}

type prefKey struct{ userID, key string }

// MemoryRepository is an in-memory implementation for tests and local development.
type MemoryRepository struct {
	mu    sync.RWMutex
	prefs map[prefKey]service.Preference
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{prefs: make(map[prefKey]service.Preference)}
}

func (r *MemoryRepository) List(ctx context.Context, userID string) ([]service.Preference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []service.Preference
	for k, p := range r.prefs {
		if k.userID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *MemoryRepository) Set(ctx context.Context, pref service.Preference) (service.Preference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pref.Value = append([]byte(nil), pref.Value...)
	pref.UpdatedAt = time.Now().UTC()
	r.prefs[prefKey{userID: pref.UserID, key: pref.Key}] = pref
	return pref, nil
}

func (r *MemoryRepository) Remove(ctx context.Context, userID, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := prefKey{userID: userID, key: key}
	if _, ok := r.prefs[k]; !ok {
		return false, nil
	}
	delete(r.prefs, k)
	return true, nil
}

var _ service.Repository = (*MemoryRepository)(nil)
