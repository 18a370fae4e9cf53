package tenants

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort defines data access for tenants and their posting defaults.
type RepositoryPort interface {
	GetTenant(ctx context.Context, id uuid.UUID) (Tenant, error)
	GetDefaultAccounts(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error)
	SetDefaultAccount(ctx context.Context, tenantID uuid.UUID, key string, accountID int64) error
}

// Repository persists tenants in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetTenant(ctx context.Context, id uuid.UUID) (Tenant, error) {
	var t Tenant
	err := r.pool.QueryRow(ctx, `SELECT id, name, currency, created_at, updated_at FROM tenants WHERE id=$1`, id).
		Scan(&t.ID, &t.Name, &t.Currency, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrTenantNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}

// ListTenantIDs returns every tenant id, for background sweeps.
func (r *Repository) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM tenants ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *Repository) GetDefaultAccounts(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, account_id FROM tenant_account_defaults WHERE tenant_id=$1`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var key string
		var accountID int64
		if err := rows.Scan(&key, &accountID); err != nil {
			return nil, err
		}
		out[key] = accountID
	}
	return out, rows.Err()
}

func (r *Repository) SetDefaultAccount(ctx context.Context, tenantID uuid.UUID, key string, accountID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO tenant_account_defaults (tenant_id, key, account_id, updated_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (tenant_id, key) DO UPDATE SET account_id=EXCLUDED.account_id, updated_at=NOW()`, tenantID, key, accountID)
	return err
}
