package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/voxcampus/voxcampus-platform/domains/demo/be/service"
	"github.com/voxcampus/voxcampus-platform/platform/go/persistence"
)

type postgresChangeRepository struct {
	store *persistence.ChangeStore
}

// NewPostgresChangeRepository constructs a ChangeRepository backed by the demo_changes table.
func NewPostgresChangeRepository(store *persistence.ChangeStore) service.ChangeRepository {
	if store == nil {
		panic("change store is required")
	}
	return &postgresChangeRepository{store: store}
}

func (r *postgresChangeRepository) Insert(ctx context.Context, change service.Change) error {
	return r.store.Insert(ctx, persistence.ChangeRecord{
		ChangeID:         change.ID,
		SessionID:        change.SessionID,
		SessionStartedAt: change.SessionStartedAt,
		UserID:           change.UserID,
		ResourceKind:     string(change.Kind),
		ResourceLocation: change.Location,
		RelationType:     change.RelationType,
		Snapshot:         change.Snapshot,
		CreatedAt:        change.CreatedAt,
	})
}

func (r *postgresChangeRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]service.Change, error) {
	recs, err := r.store.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return mapChanges(recs), nil
}

func (r *postgresChangeRepository) ListByUser(ctx context.Context, userID string, latestSessionOnly bool) ([]service.Change, error) {
	recs, err := r.store.ListByUser(ctx, userID, latestSessionOnly)
	if err != nil {
		return nil, err
	}
	return mapChanges(recs), nil
}

func (r *postgresChangeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.store.Delete(ctx, id)
}

func (r *postgresChangeRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.store.MarkFailed(ctx, id, reason)
}

func (r *postgresChangeRepository) PendingUsers(ctx context.Context) ([]string, error) {
	return r.store.PendingUsers(ctx)
}

func mapChanges(recs []persistence.ChangeRecord) []service.Change {
	out := make([]service.Change, 0, len(recs))
	for _, rec := range recs {
		out = append(out, service.Change{
			ID:               rec.ChangeID,
			SessionID:        rec.SessionID,
			SessionStartedAt: rec.SessionStartedAt,
			UserID:           rec.UserID,
			Kind:             service.Kind(rec.ResourceKind),
			Location:         rec.ResourceLocation,
			RelationType:     rec.RelationType,
			Snapshot:         rec.Snapshot,
			Attempts:         rec.Attempts,
			LastError:        rec.LastError,
			CreatedAt:        rec.CreatedAt,
		})
	}
	return out
}
