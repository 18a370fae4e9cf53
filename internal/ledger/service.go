package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vitabu-erp/vitabu/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetJournal(ctx context.Context, tenantID uuid.UUID, id int64) (Journal, error)
	ListJournals(ctx context.Context, tenantID uuid.UUID, limit int) ([]Journal, error)
}

// TxRepository exposes the operations posting needs inside one transaction.
// The orchestrator binds the same interface to its own transaction so dual
// postings commit or roll back as one unit.
type TxRepository interface {
	AccountStates(ctx context.Context, tenantID uuid.UUID, ids []int64) (map[int64]AccountState, error)
	InsertJournal(ctx context.Context, j Journal) (int64, error)
	InsertJournalLines(ctx context.Context, journalID int64, lines []JournalLine) error
	GetJournalForUpdate(ctx context.Context, tenantID uuid.UUID, id int64) (Journal, error)
	MarkVoid(ctx context.Context, tenantID uuid.UUID, id, reversalID int64) error
}

// AuditPort records ledger events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates posting and reversing journals.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the journal engine.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post validates and persists a journal, transitioning it straight from the
// validated draft to POSTED in one transaction.
func (s *Service) Post(ctx context.Context, input PostingInput) (Journal, error) {
	var posted Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		posted, err = PostTx(ctx, tx, s.now(), input)
		return err
	})
	if err != nil {
		return Journal{}, err
	}
	s.record(ctx, input.TenantID, "journal.post", posted)
	return posted, nil
}

// Reverse posts a journal whose lines swap debit and credit line-for-line
// against the original, then marks the original VOID with a back-reference.
func (s *Service) Reverse(ctx context.Context, tenantID uuid.UUID, journalID int64, memo string) (Journal, error) {
	var reversal Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		reversal, err = ReverseTx(ctx, tx, s.now(), tenantID, journalID, memo)
		return err
	})
	if err != nil {
		return Journal{}, err
	}
	s.record(ctx, tenantID, "journal.reverse", reversal)
	return reversal, nil
}

// Get returns one journal with lines.
func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, id int64) (Journal, error) {
	return s.repo.GetJournal(ctx, tenantID, id)
}

// List returns recent journals for the tenant.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, limit int) ([]Journal, error) {
	return s.repo.ListJournals(ctx, tenantID, limit)
}

func (s *Service) record(ctx context.Context, tenantID uuid.UUID, action string, j Journal) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		TenantID: tenantID,
		Action:   action,
		Entity:   "journal",
		EntityID: j.Number,
		Meta:     map[string]any{"id": j.ID, "source": j.SourceModule},
		At:       s.now(),
	})
}

// postedHook observes every successfully inserted journal. Set once at
// startup; it may fire inside a transaction that later rolls back, which
// counter-style observers tolerate.
var postedHook func(source string)

// ObservePosted registers fn to run after each journal insert.
func ObservePosted(fn func(source string)) {
	postedHook = fn
}

// PostTx runs the posting state machine against an already-open transaction.
func PostTx(ctx context.Context, tx TxRepository, now time.Time, input PostingInput) (Journal, error) {
	if err := input.Validate(); err != nil {
		return Journal{}, err
	}
	ids := make([]int64, 0, len(input.Lines))
	for _, line := range input.Lines {
		ids = append(ids, line.AccountID)
	}
	states, err := tx.AccountStates(ctx, input.TenantID, ids)
	if err != nil {
		return Journal{}, err
	}
	for _, line := range input.Lines {
		state, ok := states[line.AccountID]
		if !ok || !state.Active {
			return Journal{}, fmt.Errorf("%w: account %d", ErrInactiveAccount, line.AccountID)
		}
	}
	journal := Journal{
		TenantID:     input.TenantID,
		Number:       input.Number,
		Date:         input.Date,
		Status:       StatusPosted,
		Memo:         input.Memo,
		SourceModule: input.SourceModule,
		SourceID:     input.SourceID,
		PostedAt:     now,
		CreatedAt:    now,
	}
	id, err := tx.InsertJournal(ctx, journal)
	if err != nil {
		return Journal{}, err
	}
	journal.ID = id
	journal.Lines = make([]JournalLine, 0, len(input.Lines))
	for _, line := range input.Lines {
		journal.Lines = append(journal.Lines, JournalLine{
			JournalID: id,
			AccountID: line.AccountID,
			Debit:     shared.RoundMoney(line.Debit),
			Credit:    shared.RoundMoney(line.Credit),
			Memo:      line.Memo,
		})
	}
	if err := tx.InsertJournalLines(ctx, id, journal.Lines); err != nil {
		return Journal{}, err
	}
	if postedHook != nil {
		postedHook(journal.SourceModule)
	}
	return journal, nil
}

// ReverseTx builds and posts the reversing journal inside the caller's
// transaction, then voids the original.
func ReverseTx(ctx context.Context, tx TxRepository, now time.Time, tenantID uuid.UUID, journalID int64, memo string) (Journal, error) {
	original, err := tx.GetJournalForUpdate(ctx, tenantID, journalID)
	if err != nil {
		return Journal{}, err
	}
	if original.Status == StatusVoid {
		return Journal{}, fmt.Errorf("%w: %s", ErrAlreadyVoided, original.Number)
	}
	if original.Status != StatusPosted {
		return Journal{}, ErrInvalidStatus
	}
	if memo == "" {
		memo = fmt.Sprintf("Reversal of %s", original.Number)
	}
	input := PostingInput{
		TenantID:     tenantID,
		Number:       original.Number + "-REV",
		Date:         now,
		Memo:         memo,
		SourceModule: original.SourceModule + ":REVERSAL",
		SourceID:     uuid.NewSHA1(original.SourceID, []byte("reversal")),
		Lines:        swapLines(original.Lines),
	}
	reversal, err := PostTx(ctx, tx, now, input)
	if err != nil {
		return Journal{}, err
	}
	if err := tx.MarkVoid(ctx, tenantID, original.ID, reversal.ID); err != nil {
		return Journal{}, err
	}
	reversal.ReversesID = &original.ID
	return reversal, nil
}

// ReplayOf reports whether err marks a posting the source already produced.
func ReplayOf(err error) bool {
	return errors.Is(err, ErrSourceAlreadyLinked)
}

func swapLines(lines []JournalLine) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLineInput{
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
			Memo:      line.Memo,
		})
	}
	return out
}
