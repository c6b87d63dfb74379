package repo

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/voxcampus/voxcampus-platform/domains/documents/be/service"
	"github.com/voxcampus/voxcampus-platform/platform/go/query"
	"github.com/voxcampus/voxcampus-platform/platform/go/tenant"
)

// MemoryRepository evaluates query sets in memory with the same semantics as the SQL compiler.
type MemoryRepository struct {
	mu      sync.RWMutex
	docs    map[docKey]service.Document
	schemas map[string]json.RawMessage
	now     func() time.Time
}

type docKey struct {
	collection string
	id         string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		docs:    make(map[docKey]service.Document),
		schemas: make(map[string]json.RawMessage),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) Create(ctx context.Context, access tenant.Access, doc service.Document) (service.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := docKey{doc.Collection, doc.ID}
	if _, exists := r.docs[key]; exists {
		return service.Document{}, service.ErrConflict
	}
	now := r.now()
	doc.CreatedAt, doc.UpdatedAt = now, now
	doc.Payload = roundTrip(doc.Payload)
	r.docs[key] = doc
	return copyDocument(doc), nil
}

func (r *MemoryRepository) Get(ctx context.Context, access tenant.Access, collection, id string) (service.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[docKey{collection, id}]
	if !ok {
		return service.Document{}, service.ErrNotFound
	}
	return copyDocument(doc), nil
}

func (r *MemoryRepository) Update(ctx context.Context, access tenant.Access, collection, id string, patch map[string]any) (service.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := docKey{collection, id}
	doc, ok := r.docs[key]
	if !ok || !access.Allows(doc.InstitutionID) {
		return service.Document{}, service.ErrNotFound
	}
	for k, v := range roundTrip(patch) {
		doc.Payload[k] = v
	}
	doc.UpdatedAt = r.now()
	r.docs[key] = doc
	return copyDocument(doc), nil
}

func (r *MemoryRepository) Delete(ctx context.Context, access tenant.Access, collection, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := docKey{collection, id}
	doc, ok := r.docs[key]
	if !ok || !access.Allows(doc.InstitutionID) {
		return false, nil
	}
	delete(r.docs, key)
	return true, nil
}

func (r *MemoryRepository) Purge(ctx context.Context, collection, id string) (bool, error) {
	return r.Delete(ctx, tenant.Access{Exempt: true}, collection, id)
}

func (r *MemoryRepository) Restore(ctx context.Context, doc service.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc.Payload = roundTrip(doc.Payload)
	r.docs[docKey{doc.Collection, doc.ID}] = doc
	return nil
}

func (r *MemoryRepository) List(ctx context.Context, access tenant.Access, collection string, set query.Set) ([]service.Document, error) {
	plan, err := set.Plan()
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	var matched []service.Document
	for key, doc := range r.docs {
		if key.collection != collection {
			continue
		}
		if plan.Matches(getter(doc)) {
			matched = append(matched, copyDocument(doc))
		}
	}
	r.mu.RUnlock()

	plan.Sort(len(matched),
		func(i int) query.Getter { return getter(matched[i]) },
		func(i int) string { return matched[i].ID },
		func(i, j int) { matched[i], matched[j] = matched[j], matched[i] })

	start, end := plan.Window(len(matched))
	return matched[start:end], nil
}

func (r *MemoryRepository) GetSchema(ctx context.Context, collection string) (json.RawMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schema, ok := r.schemas[collection]
	if !ok {
		return nil, service.ErrNotFound
	}
	return schema, nil
}

func (r *MemoryRepository) PutSchema(ctx context.Context, collection string, definition json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[collection] = append(json.RawMessage(nil), definition...)
	return nil
}

// getter resolves system attributes first, then top-level payload keys.
func getter(doc service.Document) query.Getter {
	return func(attribute string) (any, bool) {
		switch attribute {
		case "$id":
			return doc.ID, true
		case "$createdAt":
			return doc.CreatedAt.Format(time.RFC3339Nano), true
		case "$updatedAt":
			return doc.UpdatedAt.Format(time.RFC3339Nano), true
		case tenant.InstitutionField:
			return doc.InstitutionID, true
		case "ownerId":
			return doc.OwnerID, true
		}
		v, ok := doc.Payload[attribute]
		return v, ok
	}
}

// roundTrip normalises payload values to what a JSON decode with UseNumber produces.
func roundTrip(payload map[string]any) map[string]any {
	raw, err := json.Marshal(payload)
	if err != nil {
		return payload
	}
	out, err := decodePayload(raw)
	if err != nil {
		return payload
	}
	return out
}

func copyDocument(doc service.Document) service.Document {
	payload := make(map[string]any, len(doc.Payload))
	for k, v := range doc.Payload {
		payload[k] = v
	}
	doc.Payload = payload
	return doc
}

var _ service.Repository = (*MemoryRepository)(nil)
