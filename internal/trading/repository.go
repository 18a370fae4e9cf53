package trading

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vitabu-erp/vitabu/internal/inventory"
	"github.com/vitabu-erp/vitabu/internal/ledger"
	"github.com/vitabu-erp/vitabu/internal/platform/db"
	"github.com/vitabu-erp/vitabu/internal/shared"
)

// Repository persists trading documents in PostgreSQL and runs document
// transactions at serializable isolation with bounded retry.
type Repository struct {
	pool       *pgxpool.Pool
	maxRetries int
}

func NewRepository(pool *pgxpool.Pool, maxRetries int) *Repository {
	return &Repository{pool: pool, maxRetries: maxRetries}
}

func (r *Repository) WithDocTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithSerializableTx(ctx, r.pool, r.maxRetries, func(tx pgx.Tx) error {
		return fn(ctx, newTxRepository(tx))
	})
}

// Aliases keep the embedded field names distinct so both transaction ports
// promote their method sets onto txRepository.
type (
	ledgerTx    = ledger.TxRepository
	inventoryTx = inventory.TxRepository
)

// txRepository binds all three transactional ports to one pgx.Tx.
type txRepository struct {
	ledgerTx
	inventoryTx
	tx pgx.Tx
}

func newTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{
		ledgerTx:    ledger.NewTxRepository(tx),
		inventoryTx: inventory.NewTxRepository(tx),
		tx:          tx,
	}
}

func (r *txRepository) ReserveKey(ctx context.Context, tenantID uuid.UUID, key string) error {
	return shared.InsertTx(ctx, r.tx, tenantID, "trading", key)
}

const invoiceColumns = `id, tenant_id, number, customer_id, date, status, cash_sale,
subtotal, tax, discount, total, paid_amount, refunded_amount,
revenue_journal_id, cogs_journal_id, created_at, updated_at`

func (r *txRepository) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO invoices
(tenant_id, number, customer_id, date, status, cash_sale, subtotal, tax, discount, total, paid_amount, refunded_amount, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13) RETURNING id`,
		inv.TenantID, inv.Number, inv.CustomerID, inv.Date, string(inv.Status), inv.CashSale,
		inv.Subtotal, inv.Tax, inv.Discount, inv.Total, inv.PaidAmount, inv.RefundedAmount, inv.CreatedAt).Scan(&inv.ID)
	if err != nil {
		return Invoice{}, fmt.Errorf("trading: insert invoice: %w", translateDuplicate(err))
	}
	for i := range inv.Lines {
		line := &inv.Lines[i]
		line.InvoiceID = inv.ID
		err := r.tx.QueryRow(ctx, `INSERT INTO invoice_lines
(invoice_id, item_id, account_id, description, quantity, unit_price, line_total)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
			inv.ID, line.ItemID, line.AccountID, line.Description, line.Quantity, line.UnitPrice, line.LineTotal).Scan(&line.ID)
		if err != nil {
			return Invoice{}, fmt.Errorf("trading: insert invoice line: %w", err)
		}
	}
	return inv, nil
}

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, tenantID uuid.UUID, invoiceID int64) (Invoice, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices
WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, invoiceID)
	inv, err := scanInvoice(row)
	if err != nil {
		return Invoice{}, err
	}
	inv.Lines, err = invoiceLines(ctx, r.tx, inv.ID)
	return inv, err
}

func (r *txRepository) SetInvoiceJournals(ctx context.Context, tenantID uuid.UUID, invoiceID int64, revenueJournalID, cogsJournalID *int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE invoices SET revenue_journal_id=$3, cogs_journal_id=$4, updated_at=now()
WHERE tenant_id=$1 AND id=$2`, tenantID, invoiceID, revenueJournalID, cogsJournalID)
	return err
}

func (r *txRepository) UpdateInvoiceSettlement(ctx context.Context, tenantID uuid.UUID, invoiceID int64, paid, refunded decimal.Decimal, status DocStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE invoices SET paid_amount=$3, refunded_amount=$4, status=$5, updated_at=now()
WHERE tenant_id=$1 AND id=$2`, tenantID, invoiceID, paid, refunded, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *txRepository) ReturnedQty(ctx context.Context, tenantID uuid.UUID, invoiceID, itemID int64) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(l.quantity), 0)
FROM credit_memo_lines l
JOIN credit_memos m ON m.id = l.memo_id
WHERE m.tenant_id=$1 AND m.invoice_id=$2 AND l.item_id=$3`, tenantID, invoiceID, itemID).Scan(&qty)
	return qty, err
}

func (r *txRepository) InsertCreditMemo(ctx context.Context, memo CreditMemo) (CreditMemo, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO credit_memos
(tenant_id, number, invoice_id, date, refund_amount, return_cost, revenue_journal_id, cogs_journal_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		memo.TenantID, memo.Number, memo.InvoiceID, memo.Date, memo.RefundAmount, memo.ReturnCost,
		memo.RevenueJournalID, memo.COGSJournalID, memo.CreatedAt).Scan(&memo.ID)
	if err != nil {
		return CreditMemo{}, fmt.Errorf("trading: insert credit memo: %w", translateDuplicate(err))
	}
	for i := range memo.Lines {
		line := &memo.Lines[i]
		line.MemoID = memo.ID
		err := r.tx.QueryRow(ctx, `INSERT INTO credit_memo_lines
(memo_id, item_id, quantity, unit_price, refund_amount)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			memo.ID, line.ItemID, line.Quantity, line.UnitPrice, line.RefundAmount).Scan(&line.ID)
		if err != nil {
			return CreditMemo{}, fmt.Errorf("trading: insert credit memo line: %w", err)
		}
	}
	return memo, nil
}

const billColumns = `id, tenant_id, number, vendor_id, date, status, total, paid_amount, journal_id, created_at, updated_at`

func (r *txRepository) InsertBill(ctx context.Context, bill PurchaseBill) (PurchaseBill, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_bills
(tenant_id, number, vendor_id, date, status, total, paid_amount, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8) RETURNING id`,
		bill.TenantID, bill.Number, bill.VendorID, bill.Date, string(bill.Status), bill.Total, bill.PaidAmount, bill.CreatedAt).Scan(&bill.ID)
	if err != nil {
		return PurchaseBill{}, fmt.Errorf("trading: insert bill: %w", translateDuplicate(err))
	}
	for i := range bill.Lines {
		line := &bill.Lines[i]
		line.BillID = bill.ID
		err := r.tx.QueryRow(ctx, `INSERT INTO bill_lines
(bill_id, item_id, account_id, description, quantity, unit_cost, line_total)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
			bill.ID, line.ItemID, line.AccountID, line.Description, line.Quantity, line.UnitCost, line.LineTotal).Scan(&line.ID)
		if err != nil {
			return PurchaseBill{}, fmt.Errorf("trading: insert bill line: %w", err)
		}
	}
	return bill, nil
}

func (r *txRepository) GetBillForUpdate(ctx context.Context, tenantID uuid.UUID, billID int64) (PurchaseBill, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+billColumns+` FROM purchase_bills
WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, billID)
	bill, err := scanBill(row)
	if err != nil {
		return PurchaseBill{}, err
	}
	bill.Lines, err = billLines(ctx, r.tx, bill.ID)
	return bill, err
}

func (r *txRepository) UpdateBillSettlement(ctx context.Context, tenantID uuid.UUID, billID int64, paid decimal.Decimal, status DocStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_bills SET paid_amount=$3, status=$4, updated_at=now()
WHERE tenant_id=$1 AND id=$2`, tenantID, billID, paid, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBillNotFound
	}
	return nil
}

func (r *Repository) GetInvoice(ctx context.Context, tenantID uuid.UUID, invoiceID int64) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE tenant_id=$1 AND id=$2`, tenantID, invoiceID)
	inv, err := scanInvoice(row)
	if err != nil {
		return Invoice{}, err
	}
	inv.Lines, err = invoiceLines(ctx, r.pool, inv.ID)
	return inv, err
}

func (r *Repository) FindInvoiceByNumber(ctx context.Context, tenantID uuid.UUID, number string) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE tenant_id=$1 AND number=$2`, tenantID, number)
	inv, err := scanInvoice(row)
	if err != nil {
		return Invoice{}, err
	}
	inv.Lines, err = invoiceLines(ctx, r.pool, inv.ID)
	return inv, err
}

func (r *Repository) ListInvoices(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
WHERE tenant_id=$1 ORDER BY date DESC, id DESC LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *Repository) GetBill(ctx context.Context, tenantID uuid.UUID, billID int64) (PurchaseBill, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM purchase_bills WHERE tenant_id=$1 AND id=$2`, tenantID, billID)
	bill, err := scanBill(row)
	if err != nil {
		return PurchaseBill{}, err
	}
	bill.Lines, err = billLines(ctx, r.pool, bill.ID)
	return bill, err
}

func (r *Repository) FindBillByNumber(ctx context.Context, tenantID uuid.UUID, number string) (PurchaseBill, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM purchase_bills WHERE tenant_id=$1 AND number=$2`, tenantID, number)
	bill, err := scanBill(row)
	if err != nil {
		return PurchaseBill{}, err
	}
	bill.Lines, err = billLines(ctx, r.pool, bill.ID)
	return bill, err
}

func (r *Repository) ListBills(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]PurchaseBill, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+billColumns+` FROM purchase_bills
WHERE tenant_id=$1 ORDER BY date DESC, id DESC LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PurchaseBill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, bill)
	}
	return out, rows.Err()
}

const memoColumns = `id, tenant_id, number, invoice_id, date, refund_amount, return_cost, revenue_journal_id, cogs_journal_id, created_at`

func (r *Repository) GetCreditMemo(ctx context.Context, tenantID uuid.UUID, memoID int64) (CreditMemo, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+memoColumns+` FROM credit_memos WHERE tenant_id=$1 AND id=$2`, tenantID, memoID)
	memo, err := scanMemo(row)
	if err != nil {
		return CreditMemo{}, err
	}
	memo.Lines, err = memoLines(ctx, r.pool, memo.ID)
	return memo, err
}

func (r *Repository) FindCreditMemoByNumber(ctx context.Context, tenantID uuid.UUID, number string) (CreditMemo, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+memoColumns+` FROM credit_memos WHERE tenant_id=$1 AND number=$2`, tenantID, number)
	memo, err := scanMemo(row)
	if err != nil {
		return CreditMemo{}, err
	}
	memo.Lines, err = memoLines(ctx, r.pool, memo.ID)
	return memo, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func invoiceLines(ctx context.Context, q querier, invoiceID int64) ([]InvoiceLine, error) {
	rows, err := q.Query(ctx, `SELECT id, invoice_id, item_id, account_id, description, quantity, unit_price, line_total
FROM invoice_lines WHERE invoice_id=$1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []InvoiceLine
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.ItemID, &l.AccountID, &l.Description, &l.Quantity, &l.UnitPrice, &l.LineTotal); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func billLines(ctx context.Context, q querier, billID int64) ([]BillLine, error) {
	rows, err := q.Query(ctx, `SELECT id, bill_id, item_id, account_id, description, quantity, unit_cost, line_total
FROM bill_lines WHERE bill_id=$1 ORDER BY id`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BillLine
	for rows.Next() {
		var l BillLine
		if err := rows.Scan(&l.ID, &l.BillID, &l.ItemID, &l.AccountID, &l.Description, &l.Quantity, &l.UnitCost, &l.LineTotal); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func memoLines(ctx context.Context, q querier, memoID int64) ([]CreditMemoLine, error) {
	rows, err := q.Query(ctx, `SELECT id, memo_id, item_id, quantity, unit_price, refund_amount
FROM credit_memo_lines WHERE memo_id=$1 ORDER BY id`, memoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CreditMemoLine
	for rows.Next() {
		var l CreditMemoLine
		if err := rows.Scan(&l.ID, &l.MemoID, &l.ItemID, &l.Quantity, &l.UnitPrice, &l.RefundAmount); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var status string
	err := row.Scan(&inv.ID, &inv.TenantID, &inv.Number, &inv.CustomerID, &inv.Date, &status, &inv.CashSale,
		&inv.Subtotal, &inv.Tax, &inv.Discount, &inv.Total, &inv.PaidAmount, &inv.RefundedAmount,
		&inv.RevenueJournalID, &inv.COGSJournalID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	inv.Status = DocStatus(status)
	return inv, nil
}

func scanBill(row pgx.Row) (PurchaseBill, error) {
	var bill PurchaseBill
	var status string
	err := row.Scan(&bill.ID, &bill.TenantID, &bill.Number, &bill.VendorID, &bill.Date, &status,
		&bill.Total, &bill.PaidAmount, &bill.JournalID, &bill.CreatedAt, &bill.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseBill{}, ErrBillNotFound
		}
		return PurchaseBill{}, err
	}
	bill.Status = DocStatus(status)
	return bill, nil
}

func scanMemo(row pgx.Row) (CreditMemo, error) {
	var memo CreditMemo
	err := row.Scan(&memo.ID, &memo.TenantID, &memo.Number, &memo.InvoiceID, &memo.Date,
		&memo.RefundAmount, &memo.ReturnCost, &memo.RevenueJournalID, &memo.COGSJournalID, &memo.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CreditMemo{}, ErrInvoiceNotFound
		}
		return CreditMemo{}, err
	}
	return memo, nil
}

func translateDuplicate(err error) error {
	if db.IsUniqueViolation(err) {
		return shared.ErrIdempotencyConflict
	}
	return err
}
