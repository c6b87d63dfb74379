package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	InstitutionsTable = "institutions"
	MembershipsTable  = "memberships"
)

// InstitutionRecord represents a row in the institutions table.
type InstitutionRecord struct {
	InstitutionID string
	Name          string
	Domain        string
	LogoRef       *string
	CreatedAt     time.Time
}

// MembershipRecord links a user to an institution they joined.
type MembershipRecord struct {
	UserID        string
	InstitutionID string
	CreatedAt     time.Time
}

// InstitutionStore provides access to institutions and memberships.
type InstitutionStore struct {
	pool *pgxpool.Pool
}

// NewInstitutionStore creates a store; assumes Bootstrap already created the tables.
func NewInstitutionStore(ctx context.Context, pool *pgxpool.Pool) (*InstitutionStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &InstitutionStore{pool: pool}, nil
}

// Upsert inserts or replaces an institution. Domains are stored lower-cased.
func (s *InstitutionStore) Upsert(ctx context.Context, rec InstitutionRecord) (InstitutionRecord, error) {
	if strings.TrimSpace(rec.InstitutionID) == "" {
		return InstitutionRecord{}, errors.New("institution id is required")
	}
	query := fmt.Sprintf(`
        INSERT INTO %s (institution_id, name, domain, logo_ref)
        VALUES ($1, $2, LOWER($3), $4)
        ON CONFLICT (institution_id) DO UPDATE
            SET name = EXCLUDED.name, domain = EXCLUDED.domain, logo_ref = EXCLUDED.logo_ref
        RETURNING institution_id, name, domain, logo_ref, created_at
    `, InstitutionsTable)

	rec, err := scanInstitution(s.pool.QueryRow(ctx, query, rec.InstitutionID, rec.Name, strings.TrimSpace(rec.Domain), rec.LogoRef))
	if err != nil {
		if isUniqueViolation(err) {
			return InstitutionRecord{}, ErrConflict
		}
		return InstitutionRecord{}, err
	}
	return rec, nil
}

// GetByID returns the institution with the given identifier.
func (s *InstitutionStore) GetByID(ctx context.Context, id string) (InstitutionRecord, error) {
	query := fmt.Sprintf(`SELECT institution_id, name, domain, logo_ref, created_at FROM %s WHERE institution_id = $1`, InstitutionsTable)
	return scanInstitution(s.pool.QueryRow(ctx, query, id))
}

// GetByDomain matches the domain case-insensitively.
func (s *InstitutionStore) GetByDomain(ctx context.Context, domain string) (InstitutionRecord, error) {
	query := fmt.Sprintf(`SELECT institution_id, name, domain, logo_ref, created_at FROM %s WHERE LOWER(domain) = LOWER($1)`, InstitutionsTable)
	return scanInstitution(s.pool.QueryRow(ctx, query, strings.TrimSpace(domain)))
}

// List returns every institution ordered by name.
func (s *InstitutionStore) List(ctx context.Context) ([]InstitutionRecord, error) {
	query := fmt.Sprintf(`SELECT institution_id, name, domain, logo_ref, created_at FROM %s ORDER BY name, institution_id`, InstitutionsTable)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	defer rows.Close()

	var out []InstitutionRecord
	for rows.Next() {
		rec, err := scanInstitution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AddMembership records that userID joined institutionID. Joining twice is a no-op.
func (s *InstitutionStore) AddMembership(ctx context.Context, userID, institutionID string) (MembershipRecord, error) {
	query := fmt.Sprintf(`
        INSERT INTO %s (user_id, institution_id) VALUES ($1, $2)
        ON CONFLICT (user_id, institution_id) DO UPDATE SET user_id = EXCLUDED.user_id
        RETURNING user_id, institution_id, created_at
    `, MembershipsTable)

	var rec MembershipRecord
	if err := s.pool.QueryRow(ctx, query, userID, institutionID).Scan(&rec.UserID, &rec.InstitutionID, &rec.CreatedAt); err != nil {
		return MembershipRecord{}, fmt.Errorf("add membership: %w", err)
	}
	return rec, nil
}

// ListMemberships returns the institutions userID joined, oldest first.
func (s *InstitutionStore) ListMemberships(ctx context.Context, userID string) ([]MembershipRecord, error) {
	query := fmt.Sprintf(`SELECT user_id, institution_id, created_at FROM %s WHERE user_id = $1 ORDER BY created_at, institution_id`, MembershipsTable)
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var out []MembershipRecord
	for rows.Next() {
		var rec MembershipRecord
		if err := rows.Scan(&rec.UserID, &rec.InstitutionID, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanInstitution(row rowScanner) (InstitutionRecord, error) {
	var rec InstitutionRecord
	if err := row.Scan(&rec.InstitutionID, &rec.Name, &rec.Domain, &rec.LogoRef, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InstitutionRecord{}, ErrNotFound
		}
		return InstitutionRecord{}, err
	}
	return rec, nil
}
