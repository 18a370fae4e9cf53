package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitabu-erp/vitabu/internal/platform/db"
)

// Repository persists journals in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction. Posting
// is append-only, so it does not need the serializable level the orchestrator
// uses for its read-modify-write costing path.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// NewTxRepository binds the ledger operations to an existing transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) AccountStates(ctx context.Context, tenantID uuid.UUID, ids []int64) (map[int64]AccountState, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, is_active, is_payment_eligible FROM accounts WHERE tenant_id=$1 AND id = ANY($2)`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]AccountState, len(ids))
	for rows.Next() {
		var id int64
		var state AccountState
		if err := rows.Scan(&id, &state.Active, &state.PaymentEligible); err != nil {
			return nil, err
		}
		out[id] = state
	}
	return out, rows.Err()
}

func (r *txRepository) InsertJournal(ctx context.Context, j Journal) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journals (tenant_id, number, date, status, memo, source_module, source_id, posted_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		j.TenantID, j.Number, j.Date, string(j.Status), j.Memo, j.SourceModule, nullUUID(j.SourceID), j.PostedAt, j.CreatedAt).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "source") {
				return 0, ErrSourceAlreadyLinked
			}
			return 0, ErrDuplicateNumber
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) InsertJournalLines(ctx context.Context, journalID int64, lines []JournalLine) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (journal_id, account_id, debit, credit, memo)
VALUES ($1,$2,$3,$4,$5)`, journalID, line.AccountID, line.Debit, line.Credit, line.Memo); err != nil {
			return err
		}
	}
	return nil
}

const journalColumns = `id, tenant_id, number, date, status, memo, source_module, source_id, reversed_by_id, reverses_id, posted_at, created_at`

func scanJournal(row pgx.Row) (Journal, error) {
	var j Journal
	var sourceID *uuid.UUID
	err := row.Scan(&j.ID, &j.TenantID, &j.Number, &j.Date, &j.Status, &j.Memo,
		&j.SourceModule, &sourceID, &j.ReversedByID, &j.ReversesID, &j.PostedAt, &j.CreatedAt)
	if err != nil {
		return Journal{}, err
	}
	if sourceID != nil {
		j.SourceID = *sourceID
	}
	return j, nil
}

func (r *txRepository) GetJournalForUpdate(ctx context.Context, tenantID uuid.UUID, id int64) (Journal, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+journalColumns+` FROM journals WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id)
	j, err := scanJournal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, ErrJournalNotFound
		}
		return Journal{}, err
	}
	j.Lines, err = loadLines(ctx, r.tx, j.ID)
	return j, err
}

func (r *txRepository) MarkVoid(ctx context.Context, tenantID uuid.UUID, id, reversalID int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE journals SET status=$3, reversed_by_id=$4 WHERE tenant_id=$1 AND id=$2 AND status=$5`,
		tenantID, id, string(StatusVoid), reversalID, string(StatusPosted))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidStatus
	}
	_, err = r.tx.Exec(ctx, `UPDATE journals SET reverses_id=$3 WHERE tenant_id=$1 AND id=$2`, tenantID, reversalID, id)
	return err
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadLines(ctx context.Context, q queryer, journalID int64) ([]JournalLine, error) {
	rows, err := q.Query(ctx, `SELECT id, journal_id, account_id, debit, credit, memo FROM journal_lines WHERE journal_id=$1 ORDER BY id`, journalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.ID, &l.JournalID, &l.AccountID, &l.Debit, &l.Credit, &l.Memo); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *Repository) GetJournal(ctx context.Context, tenantID uuid.UUID, id int64) (Journal, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+journalColumns+` FROM journals WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	j, err := scanJournal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, ErrJournalNotFound
		}
		return Journal{}, err
	}
	j.Lines, err = loadLines(ctx, r.pool, j.ID)
	return j, err
}

func (r *Repository) ListJournals(ctx context.Context, tenantID uuid.UUID, limit int) ([]Journal, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+journalColumns+` FROM journals WHERE tenant_id=$1 ORDER BY posted_at DESC, id DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Journal
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ActivityByAccount aggregates debit and credit sums per account for the
// date range. Zero times widen to all history. VOID journals stay in the
// sums: a journal only reaches VOID through its posted reversal, so the
// pair cancels and dropping one side would double-count the other.
func (r *Repository) ActivityByAccount(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (map[int64]Activity, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.account_id, COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_lines l
JOIN journals j ON j.id = l.journal_id
WHERE j.tenant_id=$1 AND j.status <> $2
  AND ($3::timestamptz IS NULL OR j.date >= $3)
  AND ($4::timestamptz IS NULL OR j.date <= $4)
GROUP BY l.account_id`, tenantID, string(StatusDraft), nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Activity)
	for rows.Next() {
		var accountID int64
		var act Activity
		if err := rows.Scan(&accountID, &act.Debit, &act.Credit); err != nil {
			return nil, err
		}
		out[accountID] = act
	}
	return out, rows.Err()
}

// AccountActivity aggregates one account's debit and credit sums, VOID
// journals included for the same cancellation reason as ActivityByAccount.
func (r *Repository) AccountActivity(ctx context.Context, tenantID uuid.UUID, accountID int64, from, to time.Time) (Activity, error) {
	var act Activity
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_lines l
JOIN journals j ON j.id = l.journal_id
WHERE j.tenant_id=$1 AND l.account_id=$2 AND j.status <> $3
  AND ($4::timestamptz IS NULL OR j.date >= $4)
  AND ($5::timestamptz IS NULL OR j.date <= $5)`,
		tenantID, accountID, string(StatusDraft), nullTime(from), nullTime(to)).Scan(&act.Debit, &act.Credit)
	return act, err
}

func nullUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
