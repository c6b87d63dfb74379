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

const (
	ProfilesTable    = "profiles"
	RelationsTable   = "relations"
	PreferencesTable = "user_preferences"
)

// ProfileRecord represents a row in the profiles table.
type ProfileRecord struct {
	UserID        string
	InstitutionID string
	DisplayName   string
	Bio           string
	AvatarFileID  *string
	UpdatedAt     time.Time
}

// RelationRecord is a typed edge from a user to another resource.
type RelationRecord struct {
	RelationID    uuid.UUID
	RelationType  string
	FromUserID    string
	ToID          string
	InstitutionID string
	CreatedAt     time.Time
}

// PreferenceRecord is one keyed value of a user.
type PreferenceRecord struct {
	UserID    string
	Key       string
	Value     json.RawMessage
	UpdatedAt time.Time
}

// AccountStore groups profiles, relations and preferences, which share the per-user lifecycle.
type AccountStore struct {
	pool *pgxpool.Pool
}

func NewAccountStore(ctx context.Context, pool *pgxpool.Pool) (*AccountStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &AccountStore{pool: pool}, nil
}

// GetProfile returns the profile of userID.
func (s *AccountStore) GetProfile(ctx context.Context, userID string) (ProfileRecord, error) {
	stmt := fmt.Sprintf(`SELECT user_id, institution_id, display_name, bio, avatar_file_id, updated_at FROM %s WHERE user_id = $1`, ProfilesTable)
	return scanProfile(s.pool.QueryRow(ctx, stmt, userID))
}

// UpsertProfile writes every field of rec.
func (s *AccountStore) UpsertProfile(ctx context.Context, rec ProfileRecord) (ProfileRecord, error) {
	stmt := fmt.Sprintf(`
        INSERT INTO %s (user_id, institution_id, display_name, bio, avatar_file_id, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
        ON CONFLICT (user_id) DO UPDATE SET
            institution_id = EXCLUDED.institution_id,
            display_name = EXCLUDED.display_name,
            bio = EXCLUDED.bio,
            avatar_file_id = EXCLUDED.avatar_file_id,
            updated_at = NOW()
        RETURNING user_id, institution_id, display_name, bio, avatar_file_id, updated_at
    `, ProfilesTable)
	return scanProfile(s.pool.QueryRow(ctx, stmt, rec.UserID, rec.InstitutionID, rec.DisplayName, rec.Bio, rec.AvatarFileID))
}

// ResetProfile restores column defaults. A missing profile is left missing.
func (s *AccountStore) ResetProfile(ctx context.Context, userID string) error {
	stmt := fmt.Sprintf(`UPDATE %s SET display_name = DEFAULT, bio = DEFAULT, avatar_file_id = NULL, updated_at = NOW() WHERE user_id = $1`, ProfilesTable)
	if _, err := s.pool.Exec(ctx, stmt, userID); err != nil {
		return fmt.Errorf("reset profile: %w", err)
	}
	return nil
}

// CreateRelation inserts an edge. ErrConflict is returned when the same edge already exists.
func (s *AccountStore) CreateRelation(ctx context.Context, rec RelationRecord) (RelationRecord, error) {
	if rec.RelationID == uuid.Nil {
		rec.RelationID = uuid.New()
	}
	stmt := fmt.Sprintf(`
        INSERT INTO %s (relation_id, relation_type, from_user_id, to_id, institution_id)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING relation_id, relation_type, from_user_id, to_id, institution_id, created_at
    `, RelationsTable)
	out, err := scanRelation(s.pool.QueryRow(ctx, stmt, rec.RelationID, rec.RelationType, rec.FromUserID, rec.ToID, rec.InstitutionID))
	if err != nil {
		if isUniqueViolation(err) {
			return RelationRecord{}, ErrConflict
		}
		return RelationRecord{}, err
	}
	return out, nil
}

// GetRelation returns one edge by id.
func (s *AccountStore) GetRelation(ctx context.Context, id uuid.UUID) (RelationRecord, error) {
	stmt := fmt.Sprintf(`SELECT relation_id, relation_type, from_user_id, to_id, institution_id, created_at FROM %s WHERE relation_id = $1`, RelationsTable)
	return scanRelation(s.pool.QueryRow(ctx, stmt, id))
}

// DeleteRelation removes an edge and reports whether it existed.
func (s *AccountStore) DeleteRelation(ctx context.Context, id uuid.UUID) (bool, error) {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE relation_id = $1`, RelationsTable)
	tag, err := s.pool.Exec(ctx, stmt, id)
	if err != nil {
		return false, fmt.Errorf("delete relation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetPreference stores value under key for userID.
func (s *AccountStore) SetPreference(ctx context.Context, rec PreferenceRecord) (PreferenceRecord, error) {
	stmt := fmt.Sprintf(`
        INSERT INTO %s (user_id, pref_key, pref_value, updated_at) VALUES ($1, $2, $3, NOW())
        ON CONFLICT (user_id, pref_key) DO UPDATE SET pref_value = EXCLUDED.pref_value, updated_at = NOW()
        RETURNING user_id, pref_key, pref_value, updated_at
    `, PreferencesTable)
	return scanPreference(s.pool.QueryRow(ctx, stmt, rec.UserID, rec.Key, []byte(rec.Value)))
}

// ListPreferences returns every key of userID sorted by key.
func (s *AccountStore) ListPreferences(ctx context.Context, userID string) ([]PreferenceRecord, error) {
	stmt := fmt.Sprintf(`SELECT user_id, pref_key, pref_value, updated_at FROM %s WHERE user_id = $1 ORDER BY pref_key`, PreferencesTable)
	rows, err := s.pool.Query(ctx, stmt, userID)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	var out []PreferenceRecord
	for rows.Next() {
		rec, err := scanPreference(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RemovePreference deletes key and reports whether it existed.
func (s *AccountStore) RemovePreference(ctx context.Context, userID, key string) (bool, error) {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND pref_key = $2`, PreferencesTable)
	tag, err := s.pool.Exec(ctx, stmt, userID, key)
	if err != nil {
		return false, fmt.Errorf("remove preference: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanProfile(row rowScanner) (ProfileRecord, error) {
	var rec ProfileRecord
	if err := row.Scan(&rec.UserID, &rec.InstitutionID, &rec.DisplayName, &rec.Bio, &rec.AvatarFileID, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProfileRecord{}, ErrNotFound
		}
		return ProfileRecord{}, err
	}
	return rec, nil
}

func scanRelation(row rowScanner) (RelationRecord, error) {
	var rec RelationRecord
	if err := row.Scan(&rec.RelationID, &rec.RelationType, &rec.FromUserID, &rec.ToID, &rec.InstitutionID, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RelationRecord{}, ErrNotFound
		}
		return RelationRecord{}, err
	}
	return rec, nil
}

func scanPreference(row rowScanner) (PreferenceRecord, error) {
	var rec PreferenceRecord
	var value []byte
	if err := row.Scan(&rec.UserID, &rec.Key, &value, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PreferenceRecord{}, ErrNotFound
		}
		return PreferenceRecord{}, err
	}
	rec.Value = value
	return rec, nil
}
