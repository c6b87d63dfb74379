package repo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxcampus/voxcampus-platform/domains/relations/be/service"
	"github.com/voxcampus/voxcampus-platform/platform/go/persistence"
)

type postgresRepository struct {
	store *persistence.AccountStore
}

// NewPostgresRepository constructs a repository backed by the relations table.
func NewPostgresRepository(store *persistence.AccountStore) service.Repository {
	if store == nil {
		panic("account store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) Create(ctx context.Context, relation service.Relation) (service.Relation, error) {
	rec, err := r.store.CreateRelation(ctx, persistence.RelationRecord{
		RelationID:    relation.ID,
		RelationType:  relation.Type,
		FromUserID:    relation.FromUserID,
		ToID:          relation.ToID,
		InstitutionID: relation.InstitutionID,
	})
	if err != nil {
		return service.Relation{}, mapPersistenceError(err)
	}
	return mapRelation(rec), nil
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (service.Relation, error) {
	rec, err := r.store.GetRelation(ctx, id)
	if err != nil {
		return service.Relation{}, mapPersistenceError(err)
	}
	return mapRelation(rec), nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.store.DeleteRelation(ctx, id)
}

func mapRelation(rec persistence.RelationRecord) service.Relation {
	return service.Relation{
		ID:            rec.RelationID,
		Type:          rec.RelationType,
		FromUserID:    rec.FromUserID,
		ToID:          rec.ToID,
		InstitutionID: rec.InstitutionID,
		CreatedAt:     rec.CreatedAt,
	}
}

func mapPersistenceError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return service.ErrNotFound
	case errors.Is(err, persistence.ErrConflict):
		return service.ErrConflict
	default:
		return err
	}
}

// MemoryRepository is an in-memory implementation for tests and local development.
type MemoryRepository struct {
	mu        sync.RWMutex
	relations map[uuid.UUID]service.Relation
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{relations: make(map[uuid.UUID]service.Relation)}
}

func (r *MemoryRepository) Create(ctx context.Context, relation service.Relation) (service.Relation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.relations {
		if existing.Type == relation.Type && existing.FromUserID == relation.FromUserID && existing.ToID == relation.ToID {
			return service.Relation{}, service.ErrConflict
		}
	}
	if relation.ID == uuid.Nil {
		relation.ID = uuid.New()
	}
	relation.CreatedAt = time.Now().UTC()
	r.relations[relation.ID] = relation
	return relation, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (service.Relation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rel, ok := r.relations[id]
	if !ok {
		return service.Relation{}, service.ErrNotFound
	}
	return rel, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.relations[id]; !ok {
		return false, nil
	}
	delete(r.relations, id)
	return true, nil
}

var _ service.Repository = (*MemoryRepository)(nil)
