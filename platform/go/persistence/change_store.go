package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const DemoChangesTable = "demo_changes"

// ChangeRecord is one tracked mutation made during a demo session.
type ChangeRecord struct {
	ChangeID         uuid.UUID
	SessionID        uuid.UUID
	SessionStartedAt time.Time
	UserID           string
	ResourceKind     string
	ResourceLocation string
	RelationType     *string
	// Snapshot holds the resource as it was before the change; nil when the change created it.
	Snapshot         json.RawMessage
	Attempts         int
	LastError        *string
	CreatedAt        time.Time
}

// ChangeStore persists tracked demo changes.
type ChangeStore struct {
	pool *pgxpool.Pool
}

func NewChangeStore(ctx context.Context, pool *pgxpool.Pool) (*ChangeStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &ChangeStore{pool: pool}, nil
}

const changeColumns = `change_id, session_id, session_started_at, user_id, resource_kind, resource_location, relation_type, snapshot, attempts, last_error, created_at`

// Insert appends a change row. Duplicate locations are allowed.
func (s *ChangeStore) Insert(ctx context.Context, rec ChangeRecord) error {
	if rec.ChangeID == uuid.Nil {
		rec.ChangeID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	stmt := fmt.Sprintf(`
        INSERT INTO %s (change_id, session_id, session_started_at, user_id, resource_kind, resource_location, relation_type, snapshot, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, DemoChangesTable)
	var snapshot []byte
	if len(rec.Snapshot) > 0 {
		snapshot = rec.Snapshot
	}
	if _, err := s.pool.Exec(ctx, stmt, rec.ChangeID, rec.SessionID, rec.SessionStartedAt, rec.UserID, rec.ResourceKind, rec.ResourceLocation, rec.RelationType, snapshot, rec.CreatedAt); err != nil {
		return fmt.Errorf("insert demo change: %w", err)
	}
	return nil
}

// ListBySession returns the rows of one session, newest first.
func (s *ChangeStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]ChangeRecord, error) {
	stmt := fmt.Sprintf(`SELECT %s FROM %s WHERE session_id = $1 ORDER BY created_at DESC, change_id`, changeColumns, DemoChangesTable)
	return s.query(ctx, stmt, sessionID)
}

// ListByUser returns the rows of userID, newest first. latestSessionOnly keeps only the rows of the most recently started session.
func (s *ChangeStore) ListByUser(ctx context.Context, userID string, latestSessionOnly bool) ([]ChangeRecord, error) {
	if latestSessionOnly {
		stmt := fmt.Sprintf(`
            SELECT %s FROM %s
            WHERE user_id = $1 AND session_id = (
                SELECT session_id FROM %s WHERE user_id = $1 ORDER BY session_started_at DESC LIMIT 1
            )
            ORDER BY created_at DESC, change_id
        `, changeColumns, DemoChangesTable, DemoChangesTable)
		return s.query(ctx, stmt, userID)
	}
	stmt := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1 ORDER BY created_at DESC, change_id`, changeColumns, DemoChangesTable)
	return s.query(ctx, stmt, userID)
}

// Delete removes a reverted row. Deleting a missing row is not an error.
func (s *ChangeStore) Delete(ctx context.Context, changeID uuid.UUID) error {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE change_id = $1`, DemoChangesTable)
	if _, err := s.pool.Exec(ctx, stmt, changeID); err != nil {
		return fmt.Errorf("delete demo change: %w", err)
	}
	return nil
}

// MarkFailed bumps the attempt counter and stores the last error.
func (s *ChangeStore) MarkFailed(ctx context.Context, changeID uuid.UUID, reason string) error {
	stmt := fmt.Sprintf(`UPDATE %s SET attempts = attempts + 1, last_error = $2 WHERE change_id = $1`, DemoChangesTable)
	if _, err := s.pool.Exec(ctx, stmt, changeID, reason); err != nil {
		return fmt.Errorf("mark demo change failed: %w", err)
	}
	return nil
}

// PendingUsers lists every user with at least one row.
func (s *ChangeStore) PendingUsers(ctx context.Context) ([]string, error) {
	stmt := fmt.Sprintf(`SELECT DISTINCT user_id FROM %s ORDER BY user_id`, DemoChangesTable)
	rows, err := s.pool.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("list pending users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *ChangeStore) query(ctx context.Context, stmt string, args ...any) ([]ChangeRecord, error) {
	rows, err := s.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list demo changes: %w", err)
	}
	defer rows.Close()

	var out []ChangeRecord
	for rows.Next() {
		rec, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanChange(row rowScanner) (ChangeRecord, error) {
	var rec ChangeRecord
	var snapshot []byte
	if err := row.Scan(&rec.ChangeID, &rec.SessionID, &rec.SessionStartedAt, &rec.UserID, &rec.ResourceKind, &rec.ResourceLocation, &rec.RelationType, &snapshot, &rec.Attempts, &rec.LastError, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChangeRecord{}, ErrNotFound
		}
		return ChangeRecord{}, err
	}
	if snapshot != nil {
		rec.Snapshot = snapshot
	}
	return rec, nil
}
