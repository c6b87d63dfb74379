package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/voxcampus/voxcampus-platform/platform/go/query"
	"github.com/voxcampus/voxcampus-platform/platform/go/tenant"
)

const (
	DocumentsTable         = "documents"
	CollectionSchemasTable = "collection_schemas"
)

// DocumentRecord represents a row in the documents table.
type DocumentRecord struct {
	Collection    string
	DocumentID    string
	InstitutionID string
	OwnerID       string
	Data          json.RawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DocumentStore reads and writes documents inside TenantDB transactions so the
// row-level-security policy applies to every statement.
type DocumentStore struct {
	db *TenantDB
}

func NewDocumentStore(ctx context.Context, db *TenantDB) (*DocumentStore, error) {
	if db == nil {
		return nil, errors.New("tenant db is required")
	}
	return &DocumentStore{db: db}, nil
}

// Create inserts a new document. ErrConflict is returned for a duplicate id.
func (s *DocumentStore) Create(ctx context.Context, access tenant.Access, rec DocumentRecord) (DocumentRecord, error) {
	insert := fmt.Sprintf(`
        INSERT INTO %s (collection, document_id, institution_id, owner_id, data)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING collection, document_id, institution_id, owner_id, data, created_at, updated_at
    `, DocumentsTable)

	var out DocumentRecord
	err := s.db.WithInstitution(ctx, access, func(tx pgx.Tx) error {
		var err error
		out, err = scanDocument(tx.QueryRow(ctx, insert, rec.Collection, rec.DocumentID, rec.InstitutionID, rec.OwnerID, []byte(rec.Data)))
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return DocumentRecord{}, ErrConflict
		}
		return DocumentRecord{}, err
	}
	return out, nil
}

// Get fetches one document visible to access.
func (s *DocumentStore) Get(ctx context.Context, access tenant.Access, collection, id string) (DocumentRecord, error) {
	selectStmt := fmt.Sprintf(`
        SELECT collection, document_id, institution_id, owner_id, data, created_at, updated_at
        FROM %s WHERE collection = $1 AND document_id = $2
    `, DocumentsTable)

	var out DocumentRecord
	err := s.db.WithInstitution(ctx, access, func(tx pgx.Tx) error {
		var err error
		out, err = scanDocument(tx.QueryRow(ctx, selectStmt, collection, id))
		return err
	})
	return out, err
}

// Update merges patch into the stored JSON object (top-level keys replaced).
func (s *DocumentStore) Update(ctx context.Context, access tenant.Access, collection, id string, patch json.RawMessage) (DocumentRecord, error) {
	update := fmt.Sprintf(`
        UPDATE %s SET data = data || $3::jsonb, updated_at = NOW()
        WHERE collection = $1 AND document_id = $2
        RETURNING collection, document_id, institution_id, owner_id, data, created_at, updated_at
    `, DocumentsTable)

	var out DocumentRecord
	err := s.db.WithInstitution(ctx, access, func(tx pgx.Tx) error {
		var err error
		out, err = scanDocument(tx.QueryRow(ctx, update, collection, id, []byte(patch)))
		return err
	})
	return out, err
}

// Delete removes a document. It reports whether a row existed.
func (s *DocumentStore) Delete(ctx context.Context, access tenant.Access, collection, id string) (bool, error) {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE collection = $1 AND document_id = $2`, DocumentsTable)

	var deleted bool
	err := s.db.WithInstitution(ctx, access, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, stmt, collection, id)
		if err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	return deleted, err
}

// Purge deletes a document regardless of institution.
func (s *DocumentStore) Purge(ctx context.Context, collection, id string) (bool, error) {
	return s.Delete(ctx, tenant.Access{Exempt: true}, collection, id)
}

// Restore writes rec back exactly as given, replacing any current row with the same key.
// It runs with exempt access because the row may belong to any institution.
func (s *DocumentStore) Restore(ctx context.Context, rec DocumentRecord) error {
	stmt := fmt.Sprintf(`
        INSERT INTO %s (collection, document_id, institution_id, owner_id, data, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (collection, document_id) DO UPDATE SET
            institution_id = EXCLUDED.institution_id,
            owner_id = EXCLUDED.owner_id,
            data = EXCLUDED.data,
            created_at = EXCLUDED.created_at,
            updated_at = EXCLUDED.updated_at
    `, DocumentsTable)
	return s.db.WithSystem(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, stmt, rec.Collection, rec.DocumentID, rec.InstitutionID, rec.OwnerID, []byte(rec.Data), rec.CreatedAt, rec.UpdatedAt); err != nil {
			return fmt.Errorf("restore document: %w", err)
		}
		return nil
	})
}

// List evaluates set against collection. Callers are expected to have scoped set already.
func (s *DocumentStore) List(ctx context.Context, access tenant.Access, collection string, set query.Set) ([]DocumentRecord, error) {
	compiled, err := query.Compile(set, 2)
	if err != nil {
		return nil, err
	}

	conditions := append([]string{"collection = $1"}, compiled.Conditions...)
	args := append([]any{collection}, compiled.Args...)
	limitArg := len(args) + 1
	args = append(args, compiled.Limit, compiled.Offset)

	stmt := fmt.Sprintf(`
        SELECT collection, document_id, institution_id, owner_id, data, created_at, updated_at
        FROM %s
        WHERE %s
        %s
        LIMIT $%d OFFSET $%d
    `, DocumentsTable, strings.Join(conditions, " AND "), compiled.OrderBy, limitArg, limitArg+1)

	var out []DocumentRecord
	err = s.db.WithInstitution(ctx, access, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanDocument(rows)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	return out, err
}

// GetSchema returns the JSON Schema attached to collection, or ErrNotFound.
func (s *DocumentStore) GetSchema(ctx context.Context, collection string) (CollectionSchema, error) {
	stmt := fmt.Sprintf(`SELECT collection, schema_definition FROM %s WHERE collection = $1`, CollectionSchemasTable)

	var out CollectionSchema
	err := s.db.WithSystem(ctx, func(tx pgx.Tx) error {
		var def []byte
		if err := tx.QueryRow(ctx, stmt, collection).Scan(&out.Collection, &def); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		out.Definition = def
		return nil
	})
	return out, err
}

// PutSchema attaches or replaces the JSON Schema for a collection.
func (s *DocumentStore) PutSchema(ctx context.Context, schema CollectionSchema) error {
	stmt := fmt.Sprintf(`
        INSERT INTO %s (collection, schema_definition) VALUES ($1, $2)
        ON CONFLICT (collection) DO UPDATE SET schema_definition = EXCLUDED.schema_definition, updated_at = NOW()
    `, CollectionSchemasTable)
	return s.db.WithSystem(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, stmt, schema.Collection, []byte(schema.Definition))
		return err
	})
}

func scanDocument(row rowScanner) (DocumentRecord, error) {
	var rec DocumentRecord
	var data []byte
	if err := row.Scan(&rec.Collection, &rec.DocumentID, &rec.InstitutionID, &rec.OwnerID, &data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DocumentRecord{}, ErrNotFound
		}
		return DocumentRecord{}, err
	}
	rec.Data = data
	return rec, nil
}
