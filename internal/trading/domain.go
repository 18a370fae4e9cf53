package trading

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocStatus tracks settlement progress of invoices and bills.
type DocStatus string

const (
	StatusUnpaid  DocStatus = "UNPAID"
	StatusPartial DocStatus = "PARTIAL"
	StatusPaid    DocStatus = "PAID"
)

// Invoice is a thin sales document. The engine consumes it as the trigger
// for dual posting and annotates it with the journals it produced.
type Invoice struct {
	ID               int64
	TenantID         uuid.UUID
	Number           string
	CustomerID       int64
	Date             time.Time
	Status           DocStatus
	CashSale         bool
	Subtotal         decimal.Decimal
	Tax              decimal.Decimal
	Discount         decimal.Decimal
	Total            decimal.Decimal
	PaidAmount       decimal.Decimal
	RefundedAmount   decimal.Decimal
	RevenueJournalID *int64
	COGSJournalID    *int64
	Lines            []InvoiceLine
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// InvoiceLine references either a tracked item or a generic ledger account.
type InvoiceLine struct {
	ID          int64
	InvoiceID   int64
	ItemID      *int64
	AccountID   *int64
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// PurchaseBill is the inbound counterpart of Invoice.
type PurchaseBill struct {
	ID         int64
	TenantID   uuid.UUID
	Number     string
	VendorID   int64
	Date       time.Time
	Status     DocStatus
	Total      decimal.Decimal
	PaidAmount decimal.Decimal
	JournalID  *int64
	Lines      []BillLine
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BillLine references either a tracked item or an expense account.
type BillLine struct {
	ID          int64
	BillID      int64
	ItemID      *int64
	AccountID   *int64
	Description string
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
	LineTotal   decimal.Decimal
}

// CreditMemo records a customer return against an invoice.
type CreditMemo struct {
	ID               int64
	TenantID         uuid.UUID
	Number           string
	InvoiceID        int64
	Date             time.Time
	RefundAmount     decimal.Decimal
	ReturnCost       decimal.Decimal
	RevenueJournalID *int64
	COGSJournalID    *int64
	Lines            []CreditMemoLine
	CreatedAt        time.Time
}

// CreditMemoLine is one returned item quantity.
type CreditMemoLine struct {
	ID           int64
	MemoID       int64
	ItemID       int64
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	RefundAmount decimal.Decimal
}

// LineInput is one requested document line.
type LineInput struct {
	ItemID      *int64
	AccountID   *int64
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// CreateInvoiceInput triggers a credit or cash sale.
type CreateInvoiceInput struct {
	TenantID   uuid.UUID
	Number     string
	CustomerID int64
	Date       time.Time
	Lines      []LineInput
	Tax        decimal.Decimal
	Discount   decimal.Decimal
	// CashSale settles immediately against CashAccountID (or the tenant's
	// default cash account) instead of accounts receivable.
	CashSale      bool
	CashAccountID *int64
}

// RecordPurchaseInput triggers a goods receipt plus its posting.
type RecordPurchaseInput struct {
	TenantID uuid.UUID
	Number   string
	VendorID int64
	Date     time.Time
	Lines    []LineInput
	// PaidImmediately credits the payment account instead of accounts payable.
	PaidImmediately  bool
	PaymentAccountID *int64
}

// ReturnLineInput is one requested return quantity.
type ReturnLineInput struct {
	ItemID   int64
	Quantity decimal.Decimal
}

// CreateCreditMemoInput triggers a customer return.
type CreateCreditMemoInput struct {
	TenantID  uuid.UUID
	Number    string
	InvoiceID int64
	Date      time.Time
	Lines     []ReturnLineInput
	// RefundAccountID pays the refund out in cash; nil credits it against
	// the invoice's receivable.
	RefundAccountID *int64
}

// AdjustStockInput triggers a single costed movement with no revenue leg.
// Quantity is signed: positive receives stock, negative removes it.
type AdjustStockInput struct {
	TenantID  uuid.UUID
	Reference string
	ItemID    int64
	Quantity  decimal.Decimal
	Reason    string
	Notes     string
	// UnitCost applies to positive adjustments; zero falls back to the
	// item's current weighted average.
	UnitCost decimal.Decimal
	// AllowNegative lets a documented adjustment take stock below zero.
	AllowNegative bool
}

// RecordPaymentInput applies a settlement against an invoice or bill.
type RecordPaymentInput struct {
	TenantID  uuid.UUID
	Number    string
	InvoiceID int64
	BillID    int64
	Date      time.Time
	Amount    decimal.Decimal
	AccountID int64
}

var (
	// ErrReturnExceedsOriginal indicates a return beyond the quantity sold
	// net of prior returns.
	ErrReturnExceedsOriginal = errors.New("trading: return exceeds original quantity")
	// ErrInvoiceNotFound indicates a missing invoice.
	ErrInvoiceNotFound = errors.New("trading: invoice not found")
	// ErrBillNotFound indicates a missing purchase bill.
	ErrBillNotFound = errors.New("trading: purchase bill not found")
	// ErrNotPaymentEligible indicates the chosen settlement account is not
	// flagged for cash or bank settlement.
	ErrNotPaymentEligible = errors.New("trading: account not payment eligible")
	// ErrInvalidAmount indicates a non-positive or overdrawn amount.
	ErrInvalidAmount = errors.New("trading: invalid amount")
	// ErrInvalidLine indicates a malformed document line.
	ErrInvalidLine = errors.New("trading: invalid line")
	// ErrUnknownReason indicates an unsupported adjustment reason.
	ErrUnknownReason = errors.New("trading: unknown adjustment reason")
)
