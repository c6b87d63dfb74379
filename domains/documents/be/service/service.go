package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	platformauth "github.com/voxcampus/voxcampus-platform/platform/go/auth"
	platformlogging "github.com/voxcampus/voxcampus-platform/platform/go/logging"
	"github.com/voxcampus/voxcampus-platform/platform/go/persistence"
	"github.com/voxcampus/voxcampus-platform/platform/go/query"
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
	ErrNotFound      = errors.New("document not found")
	ErrConflict      = errors.New("document already exists")
	ErrNoInstitution = errors.New("request has no institution")
)

// Document is a JSON object stored in a collection and owned by one institution.
type Document struct {
	Collection    string
	ID            string
	InstitutionID string
	OwnerID       string
	Payload       map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateInput describes a new document. An empty ID is generated.
type CreateInput struct {
	ID      string
	Payload map[string]any
}

// Repository abstracts persistence. Implementations return ErrNotFound and ErrConflict.
type Repository interface {
	Create(ctx context.Context, access tenant.Access, doc Document) (Document, error)
	Get(ctx context.Context, access tenant.Access, collection, id string) (Document, error)
	Update(ctx context.Context, access tenant.Access, collection, id string, patch map[string]any) (Document, error)
	Delete(ctx context.Context, access tenant.Access, collection, id string) (bool, error)
	Purge(ctx context.Context, collection, id string) (bool, error)
	// Restore writes doc back with its original institution, owner and timestamps.
	Restore(ctx context.Context, doc Document) error
	List(ctx context.Context, access tenant.Access, collection string, set query.Set) ([]Document, error)
	// GetSchema returns ErrNotFound when the collection has no schema.
	GetSchema(ctx context.Context, collection string) (json.RawMessage, error)
	PutSchema(ctx context.Context, collection string, definition json.RawMessage) error
}

// Validator checks payloads against collection schemas. *persistence.SchemaValidator satisfies it.
type Validator interface {
	Check(schema persistence.CollectionSchema) error
	Validate(ctx context.Context, schema persistence.CollectionSchema, payload []byte) error
}

// Tracker records document mutations for demo sessions. before is the snapshot
// taken ahead of an update or delete, and nil for a document created by the call.
type Tracker interface {
	TrackDocument(ctx context.Context, collection, id string, before json.RawMessage)
}

// Service exposes tenant-scoped document operations.
type Service interface {
	List(ctx context.Context, collection string, set query.Set) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Create(ctx context.Context, collection string, input CreateInput) (Document, error)
	Update(ctx context.Context, collection, id string, patch map[string]any) (Document, error)
	Delete(ctx context.Context, collection, id string) error
	// Purge deletes a document of any institution; absent documents are not an error.
	Purge(ctx context.Context, collection, id string) error
	// Restore puts back a document from a snapshot handed to the Tracker.
	Restore(ctx context.Context, collection, id string, snapshot json.RawMessage) error
	PutSchema(ctx context.Context, collection string, definition json.RawMessage) error
}

type service struct {
	repo      Repository
	validator Validator
	tracker   Tracker
	logger    *zap.Logger
}

// New constructs a documents Service. validator and tracker may be nil.
func New(repo Repository, validator Validator, tracker Tracker, logger *zap.Logger) Service {
	if repo == nil {
		panic("documents repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{repo: repo, validator: validator, tracker: tracker, logger: logger}
}

func (s *service) List(ctx context.Context, collection string, set query.Set) ([]Document, error) {
	access, err := accessFrom(ctx)
	if err != nil {
		return nil, err
	}
	collection, err = normalizeCollection(collection)
	if err != nil {
		return nil, err
	}
	if err := set.Validate(); err != nil {
		return nil, newValidationError(map[string]string{"queries": err.Error()})
	}

	return s.repo.List(ctx, access, collection, tenant.ScopeFor(set, access))
}

func (s *service) Get(ctx context.Context, collection, id string) (Document, error) {
	access, err := accessFrom(ctx)
	if err != nil {
		return Document{}, err
	}
	collection, id, err = normalizeKey(collection, id)
	if err != nil {
		return Document{}, err
	}
	return s.visible(ctx, access, collection, id)
}

func (s *service) Create(ctx context.Context, collection string, input CreateInput) (Document, error) {
	access, err := accessFrom(ctx)
	if err != nil {
		return Document{}, err
	}
	if access.InstitutionID == "" {
		return Document{}, ErrNoInstitution
	}
	creds, ok := platformauth.UserFromContext(ctx)
	if !ok {
		return Document{}, ErrNoInstitution
	}

	collection, err = normalizeCollection(collection)
	if err != nil {
		return Document{}, err
	}
	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.NewString()
	}
	if id, err = persistence.NormalizeDocumentID(id); err != nil {
		return Document{}, newValidationError(map[string]string{"id": err.Error()})
	}
	if input.Payload == nil {
		return Document{}, newValidationError(map[string]string{"payload": "payload is required"})
	}

	payload := stripReserved(input.Payload)
	if err := s.validate(ctx, collection, payload); err != nil {
		return Document{}, err
	}

	doc, err := s.repo.Create(ctx, access, Document{
		Collection:    collection,
		ID:            id,
		InstitutionID: access.InstitutionID,
		OwnerID:       creds.ID,
		Payload:       payload,
	})
	if err != nil {
		return Document{}, err
	}
	s.track(ctx, collection, id, nil)
	return doc, nil
}

func (s *service) Update(ctx context.Context, collection, id string, patch map[string]any) (Document, error) {
	access, err := accessFrom(ctx)
	if err != nil {
		return Document{}, err
	}
	collection, id, err = normalizeKey(collection, id)
	if err != nil {
		return Document{}, err
	}
	if len(patch) == 0 {
		return Document{}, newValidationError(map[string]string{"payload": "patch must not be empty"})
	}

	current, err := s.visible(ctx, access, collection, id)
	if err != nil {
		return Document{}, err
	}

	patch = stripReserved(patch)
	merged := make(map[string]any, len(current.Payload)+len(patch))
	for k, v := range current.Payload {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	if err := s.validate(ctx, collection, merged); err != nil {
		return Document{}, err
	}

	doc, err := s.repo.Update(ctx, access, collection, id, patch)
	if err != nil {
		return Document{}, err
	}
	s.trackExisting(ctx, current)
	return doc, nil
}

func (s *service) Delete(ctx context.Context, collection, id string) error {
	access, err := accessFrom(ctx)
	if err != nil {
		return err
	}
	collection, id, err = normalizeKey(collection, id)
	if err != nil {
		return err
	}
	current, err := s.visible(ctx, access, collection, id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, access, collection, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	s.trackExisting(ctx, current)
	return nil
}

func (s *service) Purge(ctx context.Context, collection, id string) error {
	if _, err := s.repo.Purge(ctx, collection, id); err != nil {
		return err
	}
	return nil
}

func (s *service) Restore(ctx context.Context, collection, id string, snapshot json.RawMessage) error {
	doc, err := decodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	doc.Collection, doc.ID = collection, id
	return s.repo.Restore(ctx, doc)
}

func (s *service) PutSchema(ctx context.Context, collection string, definition json.RawMessage) error {
	collection, err := normalizeCollection(collection)
	if err != nil {
		return err
	}
	if !json.Valid(definition) {
		return newValidationError(map[string]string{"schema": "schema must be valid JSON"})
	}
	if s.validator != nil {
		if err := s.validator.Check(persistence.CollectionSchema{Collection: collection, Definition: definition}); err != nil {
			return newValidationError(map[string]string{"schema": err.Error()})
		}
	}
	return s.repo.PutSchema(ctx, collection, definition)
}

// visible loads a document and hides it from callers of other institutions.
func (s *service) visible(ctx context.Context, access tenant.Access, collection, id string) (Document, error) {
	doc, err := s.repo.Get(ctx, access, collection, id)
	if err != nil {
		return Document{}, err
	}
	if !access.Allows(doc.InstitutionID) {
		platformlogging.FromContextOr(ctx, s.logger).Warn("cross-institution document access rejected",
			zap.String("collection", collection),
			zap.String("documentId", id),
			zap.String("institutionId", access.InstitutionID))
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (s *service) validate(ctx context.Context, collection string, payload map[string]any) error {
	if s.validator == nil {
		return nil
	}
	schema, err := s.repo.GetSchema(ctx, collection)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return newValidationError(map[string]string{"payload": err.Error()})
	}
	if err := s.validator.Validate(ctx, persistence.CollectionSchema{Collection: collection, Definition: schema}, raw); err != nil {
		return newValidationError(map[string]string{"payload": err.Error()})
	}
	return nil
}

func (s *service) track(ctx context.Context, collection, id string, before json.RawMessage) {
	if s.tracker != nil {
		s.tracker.TrackDocument(ctx, collection, id, before)
	}
}

// trackExisting records a change to a document that existed before the call, with its prior state.
func (s *service) trackExisting(ctx context.Context, before Document) {
	if s.tracker == nil {
		return
	}
	snapshot, err := encodeSnapshot(before)
	if err != nil {
		// An existing document is never tracked without its prior state.
		platformlogging.FromContextOr(ctx, s.logger).Error("snapshot document for demo tracking",
			zap.String("collection", before.Collection),
			zap.String("documentId", before.ID),
			zap.Error(err))
		return
	}
	s.track(ctx, before.Collection, before.ID, snapshot)
}

type documentSnapshot struct {
	InstitutionID string          `json:"institutionId"`
	OwnerID       string          `json:"ownerId"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func encodeSnapshot(doc Document) (json.RawMessage, error) {
	payload, err := json.Marshal(doc.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(documentSnapshot{
		InstitutionID: doc.InstitutionID,
		OwnerID:       doc.OwnerID,
		Payload:       payload,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	})
}

func decodeSnapshot(raw json.RawMessage) (Document, error) {
	var snap documentSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Document{}, fmt.Errorf("decode document snapshot: %w", err)
	}
	if snap.InstitutionID == "" {
		return Document{}, errors.New("document snapshot has no institution")
	}
	payload := map[string]any{}
	if len(snap.Payload) > 0 && string(snap.Payload) != "null" {
		dec := json.NewDecoder(bytes.NewReader(snap.Payload))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return Document{}, fmt.Errorf("decode document snapshot payload: %w", err)
		}
	}
	return Document{
		InstitutionID: snap.InstitutionID,
		OwnerID:       snap.OwnerID,
		Payload:       payload,
		CreatedAt:     snap.CreatedAt,
		UpdatedAt:     snap.UpdatedAt,
	}, nil
}

func accessFrom(ctx context.Context) (tenant.Access, error) {
	access, ok := tenant.FromContext(ctx)
	if !ok {
		return tenant.Access{}, ErrNoInstitution
	}
	return access, nil
}

func normalizeCollection(collection string) (string, error) {
	normalized, err := persistence.NormalizeCollection(collection)
	if err != nil {
		return "", newValidationError(map[string]string{"collection": err.Error()})
	}
	return normalized, nil
}

func normalizeKey(collection, id string) (string, string, error) {
	collection, err := normalizeCollection(collection)
	if err != nil {
		return "", "", err
	}
	normalized, err := persistence.NormalizeDocumentID(id)
	if err != nil {
		return "", "", newValidationError(map[string]string{"id": err.Error()})
	}
	return collection, normalized, nil
}

// stripReserved drops keys managed by the store so clients cannot move a document between institutions.
func stripReserved(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == tenant.InstitutionField || k == "ownerId" || strings.HasPrefix(k, "$") {
			continue
		}
		out[k] = v
	}
	return out
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
