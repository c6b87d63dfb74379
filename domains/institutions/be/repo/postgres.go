package repo

import (
	"context"
	"errors"

	"github.com/voxcampus/voxcampus-platform/domains/institutions/be/service"
	"github.com/voxcampus/voxcampus-platform/platform/go/persistence"
)

type postgresRepository struct {
	store *persistence.InstitutionStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.InstitutionStore) service.Repository {
	if store == nil {
		panic("institution store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) GetByID(ctx context.Context, id string) (service.Institution, error) {
	rec, err := r.store.GetByID(ctx, id)
	if err != nil {
		return service.Institution{}, mapPersistenceError(err)
	}
	return mapInstitution(rec), nil
}

func (r *postgresRepository) GetByDomain(ctx context.Context, domain string) (service.Institution, error) {
	rec, err := r.store.GetByDomain(ctx, domain)
	if err != nil {
		return service.Institution{}, mapPersistenceError(err)
	}
	return mapInstitution(rec), nil
}

func (r *postgresRepository) List(ctx context.Context) ([]service.Institution, error) {
	recs, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]service.Institution, 0, len(recs))
	for _, rec := range recs {
		out = append(out, mapInstitution(rec))
	}
	return out, nil
}

func (r *postgresRepository) Upsert(ctx context.Context, inst service.Institution) (service.Institution, error) {
	rec, err := r.store.Upsert(ctx, persistence.InstitutionRecord{
		InstitutionID: inst.ID,
		Name:          inst.Name,
		Domain:        inst.Domain,
		LogoRef:       inst.LogoRef,
	})
	if err != nil {
		return service.Institution{}, mapPersistenceError(err)
	}
	return mapInstitution(rec), nil
}

func (r *postgresRepository) AddMembership(ctx context.Context, userID, institutionID string) (service.Membership, error) {
	rec, err := r.store.AddMembership(ctx, userID, institutionID)
	if err != nil {
		return service.Membership{}, mapPersistenceError(err)
	}
	return service.Membership{UserID: rec.UserID, InstitutionID: rec.InstitutionID, JoinedAt: rec.CreatedAt}, nil
}

func (r *postgresRepository) ListMemberships(ctx context.Context, userID string) ([]service.Membership, error) {
	recs, err := r.store.ListMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]service.Membership, 0, len(recs))
	for _, rec := range recs {
		out = append(out, service.Membership{UserID: rec.UserID, InstitutionID: rec.InstitutionID, JoinedAt: rec.CreatedAt})
	}
	return out, nil
}

func mapInstitution(rec persistence.InstitutionRecord) service.Institution {
	return service.Institution{
		ID:        rec.InstitutionID,
		Name:      rec.Name,
		Domain:    rec.Domain,
		LogoRef:   rec.LogoRef,
		CreatedAt: rec.CreatedAt,
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
