package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxcampus/voxcampus-platform/platform/go/tenant"
)

// txBeginner exposes the minimal pgx pool behaviour needed by TenantDB.
type txBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TenantDB runs transactions with the row-level-security settings of one institution.
// The documents policy reads vox.institution_id and vox.exempt; both are set with
// is_local=true so they never leak to the next user of the pooled connection.
type TenantDB struct {
	pool txBeginner
}

func NewTenantDB(pool *pgxpool.Pool) *TenantDB {
	if pool == nil {
		panic("TenantDB requires pool")
	}
	return &TenantDB{pool: pool}
}

// WithInstitution executes fn inside a transaction scoped to access.
func (db *TenantDB) WithInstitution(ctx context.Context, access tenant.Access, fn func(tx pgx.Tx) error) error {
	if !access.Exempt && access.InstitutionID == "" {
		return errors.New("institution is required for non-exempt access")
	}
	return db.run(ctx, access.InstitutionID, access.Exempt, fn)
}

// WithSystem executes fn with the exemption flag on. Used by sweeps and reverts that act on behalf of nobody.
func (db *TenantDB) WithSystem(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return db.run(ctx, "", true, fn)
}

func (db *TenantDB) run(ctx context.Context, institutionID string, exempt bool, fn func(tx pgx.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	exemptFlag := "off"
	if exempt {
		exemptFlag = "on"
	}

	if _, err := tx.Exec(ctx, `SELECT set_config('vox.institution_id', $1, true), set_config('vox.exempt', $2, true)`, institutionID, exemptFlag); err != nil {
		return fmt.Errorf("set tenant settings: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
