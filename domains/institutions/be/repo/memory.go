package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/voxcampus/voxcampus-platform/domains/institutions/be/service"
)

// MemoryRepository is a simple in-memory implementation suitable for tests and local development.
type MemoryRepository struct {
	mu          sync.RWMutex
	byID        map[string]service.Institution
	memberships map[string][]service.Membership

	// Err, when set, is returned by every read. Tests use it to simulate an unavailable store.
	Err error
}

// NewMemoryRepository constructs a MemoryRepository seeded with insts.
func NewMemoryRepository(insts ...service.Institution) *MemoryRepository {
	r := &MemoryRepository{byID: make(map[string]service.Institution), memberships: make(map[string][]service.Membership)}
	for _, inst := range insts {
		inst.Domain = strings.ToLower(inst.Domain)
		r.byID[inst.ID] = inst
	}
	return r
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (service.Institution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.Err != nil {
		return service.Institution{}, r.Err
	}
	inst, ok := r.byID[id]
	if !ok {
		return service.Institution{}, service.ErrNotFound
	}
	return inst, nil
}

func (r *MemoryRepository) GetByDomain(ctx context.Context, domain string) (service.Institution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.Err != nil {
		return service.Institution{}, r.Err
	}
	domain = strings.ToLower(strings.TrimSpace(domain))
	for _, inst := range r.byID {
		if inst.Domain == domain {
			return inst, nil
		}
	}
	return service.Institution{}, service.ErrNotFound
}

func (r *MemoryRepository) List(ctx context.Context) ([]service.Institution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]service.Institution, 0, len(r.byID))
	for _, inst := range r.byID {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) Upsert(ctx context.Context, inst service.Institution) (service.Institution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst.Domain = strings.ToLower(inst.Domain)
	for id, existing := range r.byID {
		if id != inst.ID && existing.Domain == inst.Domain {
			return service.Institution{}, service.ErrConflict
		}
	}
	if existing, ok := r.byID[inst.ID]; ok {
		inst.CreatedAt = existing.CreatedAt
	} else {
		inst.CreatedAt = time.Now().UTC()
	}
	r.byID[inst.ID] = inst
	return inst, nil
}

func (r *MemoryRepository) AddMembership(ctx context.Context, userID, institutionID string) (service.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.memberships[userID] {
		if m.InstitutionID == institutionID {
			return m, nil
		}
	}
	m := service.Membership{UserID: userID, InstitutionID: institutionID, JoinedAt: time.Now().UTC()}
	r.memberships[userID] = append(r.memberships[userID], m)
	return m, nil
}

func (r *MemoryRepository) ListMemberships(ctx context.Context, userID string) ([]service.Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]service.Membership(nil), r.memberships[userID]...), nil
}

var _ service.Repository = (*MemoryRepository)(nil)
