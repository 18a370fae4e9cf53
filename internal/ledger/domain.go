package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitabu-erp/vitabu/internal/shared"
)

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	StatusDraft  JournalStatus = "DRAFT"
	StatusPosted JournalStatus = "POSTED"
	StatusVoid   JournalStatus = "VOID"
)

// Journal is the atomic double-entry record. Once POSTED it is immutable;
// corrections always go through a reversing journal.
type Journal struct {
	ID           int64
	TenantID     uuid.UUID
	Number       string
	Date         time.Time
	Status       JournalStatus
	Memo         string
	SourceModule string
	SourceID     uuid.UUID
	// ReversedByID points at the reversing journal once this one is VOID.
	ReversedByID *int64
	// ReversesID points back at the journal this one negates.
	ReversesID *int64
	Lines      []JournalLine
	PostedAt   time.Time
	CreatedAt  time.Time
}

// JournalLine stores a debit or credit amount for an account. Exactly one of
// the two sides is positive per line.
type JournalLine struct {
	ID        int64
	JournalID int64
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}

// PostingLineInput describes a journal line for a posting request.
type PostingLineInput struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}

// PostingInput groups fields required to post a journal.
type PostingInput struct {
	TenantID     uuid.UUID
	Number       string
	Date         time.Time
	Memo         string
	SourceModule string
	SourceID     uuid.UUID
	Lines        []PostingLineInput
}

// AccountState carries the directory facts posting validation needs.
type AccountState struct {
	Active          bool
	PaymentEligible bool
}

var (
	// ErrUnbalanced indicates sum(debit) != sum(credit).
	ErrUnbalanced = errors.New("ledger: journal lines must balance")
	// ErrTooFewLines indicates fewer than two lines.
	ErrTooFewLines = errors.New("ledger: journal requires at least two lines")
	// ErrDuplicateNumber indicates the journal number exists for the tenant.
	ErrDuplicateNumber = errors.New("ledger: duplicate journal number")
	// ErrAlreadyVoided indicates a second reversal attempt.
	ErrAlreadyVoided = errors.New("ledger: journal already voided")
	// ErrJournalNotFound indicates a missing journal.
	ErrJournalNotFound = errors.New("ledger: journal not found")
	// ErrInvalidStatus indicates the transition is not allowed.
	ErrInvalidStatus = errors.New("ledger: invalid status transition")
	// ErrInactiveAccount indicates a line references a missing or inactive
	// account in the posting tenant.
	ErrInactiveAccount = errors.New("ledger: line references inactive account")
	// ErrSourceAlreadyLinked indicates the source document already produced
	// a journal; used as the idempotent-replay signal.
	ErrSourceAlreadyLinked = errors.New("ledger: source already linked")
)

// Validate ensures posting input meets the balance invariant before any
// persistence happens. Amount comparison is exact decimal comparison at
// minor-unit precision, never floating point.
func (in PostingInput) Validate() error {
	if in.TenantID == uuid.Nil {
		return errors.New("ledger: tenant required")
	}
	if in.Number == "" {
		return errors.New("ledger: journal number required")
	}
	if in.Date.IsZero() {
		return errors.New("ledger: journal date required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("ledger: line %d missing account", idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("ledger: line %d negative amount", idx)
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return fmt.Errorf("ledger: line %d must have exactly one of debit or credit", idx)
		}
		debit = debit.Add(shared.RoundMoney(line.Debit))
		credit = credit.Add(shared.RoundMoney(line.Credit))
	}
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: imbalance %s", ErrUnbalanced, debit.Sub(credit).String())
	}
	return nil
}
