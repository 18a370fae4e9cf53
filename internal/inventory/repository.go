package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vitabu-erp/vitabu/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// NewTxRepository binds inventory operations to an existing transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type txRepository struct {
	tx pgx.Tx
}

const itemColumns = `id, tenant_id, sku, name, unit, quantity_on_hand, weighted_average_cost, cost_price, selling_price, reorder_level, asset_account_id, income_account_id, cogs_account_id, is_active, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.TenantID, &it.SKU, &it.Name, &it.Unit,
		&it.QuantityOnHand, &it.WeightedAverage, &it.CostPrice, &it.SellingPrice, &it.ReorderLevel,
		&it.AssetAccountID, &it.IncomeAccountID, &it.COGSAccountID, &it.IsActive, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, tenantID uuid.UUID, itemID int64) (Item, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, itemID)
	it, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return it, nil
}

func (r *txRepository) UpdateItemStock(ctx context.Context, item Item) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_items SET quantity_on_hand=$3, weighted_average_cost=$4, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`, item.TenantID, item.ID, item.QuantityOnHand, item.WeightedAverage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m StockMovement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (tenant_id, item_id, direction, reason, quantity, unit_cost, total_cost, qty_before, qty_after, wac_before, wac_after, journal_id, reference, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING id`,
		m.TenantID, m.ItemID, string(m.Direction), string(m.Reason), m.Quantity, m.UnitCost, m.TotalCost,
		m.QtyBefore, m.QtyAfter, m.WACBefore, m.WACAfter, m.JournalID, m.Reference, m.OccurredAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertItem(ctx context.Context, item Item) (Item, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO inventory_items (tenant_id, sku, name, unit, quantity_on_hand, weighted_average_cost, cost_price, selling_price, reorder_level, asset_account_id, income_account_id, cogs_account_id, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,0,0,$5,$6,$7,$8,$9,$10,$11,$12,$12)
RETURNING `+itemColumns,
		item.TenantID, item.SKU, item.Name, item.Unit, item.CostPrice, item.SellingPrice, item.ReorderLevel,
		item.AssetAccountID, item.IncomeAccountID, item.COGSAccountID, item.IsActive, item.CreatedAt)
	created, err := scanItem(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Item{}, ErrDuplicateSKU
		}
		return Item{}, err
	}
	return created, nil
}

func (r *txRepository) MovementUnitCost(ctx context.Context, tenantID uuid.UUID, itemID int64, reason Reason, reference string) (decimal.Decimal, error) {
	var cost decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT unit_cost FROM stock_movements
WHERE tenant_id=$1 AND item_id=$2 AND reason=$3 AND reference=$4
ORDER BY occurred_at DESC, id DESC LIMIT 1`, tenantID, itemID, string(reason), reference).Scan(&cost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrMovementCostUnknown
		}
		return decimal.Zero, err
	}
	return cost, nil
}

func (r *txRepository) LinkMovementJournal(ctx context.Context, tenantID uuid.UUID, movementID, journalID int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_movements SET journal_id=$3 WHERE tenant_id=$1 AND id=$2`, tenantID, movementID, journalID)
	if err != nil {
		return fmt.Errorf("inventory: link movement journal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *Repository) GetItem(ctx context.Context, tenantID uuid.UUID, itemID int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE tenant_id=$1 AND id=$2`, tenantID, itemID)
	it, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return it, nil
}

func (r *Repository) GetItemBySKU(ctx context.Context, tenantID uuid.UUID, sku string) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE tenant_id=$1 AND sku=$2`, tenantID, sku)
	it, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return it, nil
}

func (r *Repository) ListItems(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE tenant_id=$1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY sku`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, item_id, direction, reason, quantity, unit_cost, total_cost, qty_before, qty_after, wac_before, wac_after, journal_id, reference, occurred_at
FROM stock_movements
WHERE tenant_id=$1 AND item_id=$2
  AND ($3::timestamptz IS NULL OR occurred_at >= $3)
  AND ($4::timestamptz IS NULL OR occurred_at <= $4)
ORDER BY occurred_at ASC, id ASC
LIMIT $5`, filter.TenantID, filter.ItemID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.TenantID, &m.ItemID, &m.Direction, &m.Reason, &m.Quantity, &m.UnitCost, &m.TotalCost,
			&m.QtyBefore, &m.QtyAfter, &m.WACBefore, &m.WACAfter, &m.JournalID, &m.Reference, &m.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) HasMovements(ctx context.Context, tenantID uuid.UUID, itemID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_movements WHERE tenant_id=$1 AND item_id=$2)`, tenantID, itemID).Scan(&exists)
	return exists, err
}

func (r *Repository) SetItemActive(ctx context.Context, tenantID uuid.UUID, itemID int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE inventory_items SET is_active=$3, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`, tenantID, itemID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *Repository) ItemsBelowReorder(ctx context.Context, tenantID uuid.UUID) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items
WHERE tenant_id=$1 AND is_active AND reorder_level > 0 AND quantity_on_hand <= reorder_level
ORDER BY sku`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
