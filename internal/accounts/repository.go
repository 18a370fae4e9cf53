package accounts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists accounts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `id, tenant_id, code, name, type, subtype, parent_id, is_system, is_contra, is_payment_eligible, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Type, &a.Subtype, &a.ParentID,
		&a.IsSystem, &a.IsContra, &a.IsPaymentEligible, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *Repository) Insert(ctx context.Context, a Account) (Account, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO accounts (tenant_id, code, name, type, subtype, parent_id, is_system, is_contra, is_payment_eligible, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
RETURNING `+accountColumns,
		a.TenantID, a.Code, a.Name, string(a.Type), a.Subtype, a.ParentID,
		a.IsSystem, a.IsContra, a.IsPaymentEligible, a.IsActive, a.CreatedAt)
	created, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrDuplicateCode
		}
		return Account{}, err
	}
	return created, nil
}

func (r *Repository) Get(ctx context.Context, tenantID uuid.UUID, id int64) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE tenant_id=$1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY code`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) HasJournalLines(ctx context.Context, tenantID uuid.UUID, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM journal_lines l JOIN journals j ON j.id = l.journal_id
WHERE j.tenant_id = $1 AND l.account_id = $2)`, tenantID, id).Scan(&exists)
	return exists, err
}

func (r *Repository) SetActive(ctx context.Context, tenantID uuid.UUID, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET is_active=$3, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`, tenantID, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
