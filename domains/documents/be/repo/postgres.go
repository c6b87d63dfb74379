package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/voxcampus/voxcampus-platform/domains/documents/be/service"
	"github.com/voxcampus/voxcampus-platform/platform/go/persistence"
	"github.com/voxcampus/voxcampus-platform/platform/go/query"
	"github.com/voxcampus/voxcampus-platform/platform/go/tenant"
)

type postgresRepository struct {
	store *persistence.DocumentStore
}

// NewPostgresRepository constructs a repository backed by the documents table.
func NewPostgresRepository(store *persistence.DocumentStore) service.Repository {
	if store == nil {
		panic("document store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) Create(ctx context.Context, access tenant.Access, doc service.Document) (service.Document, error) {
	data, err := json.Marshal(doc.Payload)
	if err != nil {
		return service.Document{}, fmt.Errorf("encode payload: %w", err)
	}
	rec, err := r.store.Create(ctx, access, persistence.DocumentRecord{
		Collection:    doc.Collection,
		DocumentID:    doc.ID,
		InstitutionID: doc.InstitutionID,
		OwnerID:       doc.OwnerID,
		Data:          data,
	})
	if err != nil {
		return service.Document{}, mapPersistenceError(err)
	}
	return mapRecord(rec)
}

func (r *postgresRepository) Get(ctx context.Context, access tenant.Access, collection, id string) (service.Document, error) {
	rec, err := r.store.Get(ctx, access, collection, id)
	if err != nil {
		return service.Document{}, mapPersistenceError(err)
	}
	return mapRecord(rec)
}

func (r *postgresRepository) Update(ctx context.Context, access tenant.Access, collection, id string, patch map[string]any) (service.Document, error) {
	data, err := json.Marshal(patch)
	if err != nil {
		return service.Document{}, fmt.Errorf("encode patch: %w", err)
	}
	rec, err := r.store.Update(ctx, access, collection, id, data)
	if err != nil {
		return service.Document{}, mapPersistenceError(err)
	}
	return mapRecord(rec)
}

func (r *postgresRepository) Delete(ctx context.Context, access tenant.Access, collection, id string) (bool, error) {
	return r.store.Delete(ctx, access, collection, id)
}

func (r *postgresRepository) Purge(ctx context.Context, collection, id string) (bool, error) {
	return r.store.Purge(ctx, collection, id)
}

func (r *postgresRepository) Restore(ctx context.Context, doc service.Document) error {
	data, err := json.Marshal(doc.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return r.store.Restore(ctx, persistence.DocumentRecord{
		Collection:    doc.Collection,
		DocumentID:    doc.ID,
		InstitutionID: doc.InstitutionID,
		OwnerID:       doc.OwnerID,
		Data:          data,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	})
}

func (r *postgresRepository) List(ctx context.Context, access tenant.Access, collection string, set query.Set) ([]service.Document, error) {
	recs, err := r.store.List(ctx, access, collection, set)
	if err != nil {
		return nil, err
	}
	out := make([]service.Document, 0, len(recs))
	for _, rec := range recs {
		doc, err := mapRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (r *postgresRepository) GetSchema(ctx context.Context, collection string) (json.RawMessage, error) {
	schema, err := r.store.GetSchema(ctx, collection)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	return schema.Definition, nil
}

func (r *postgresRepository) PutSchema(ctx context.Context, collection string, definition json.RawMessage) error {
	return r.store.PutSchema(ctx, persistence.CollectionSchema{Collection: collection, Definition: definition})
}

func mapRecord(rec persistence.DocumentRecord) (service.Document, error) {
	payload, err := decodePayload(rec.Data)
	if err != nil {
		return service.Document{}, err
	}
	return service.Document{
		Collection:    rec.Collection,
		ID:            rec.DocumentID,
		InstitutionID: rec.InstitutionID,
		OwnerID:       rec.OwnerID,
		Payload:       payload,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}, nil
}

// decodePayload keeps numbers as json.Number so they render like PostgreSQL's ->> output.
func decodePayload(data []byte) (map[string]any, error) {
	payload := map[string]any{}
	if len(data) == 0 {
		return payload, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode document payload: %w", err)
	}
	return payload, nil
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
