package accounts

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AccountType enumerates chart-of-accounts categories.
type AccountType string

const (
	TypeAsset     AccountType = "ASSET"
	TypeLiability AccountType = "LIABILITY"
	TypeEquity    AccountType = "EQUITY"
	TypeIncome    AccountType = "INCOME"
	TypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case TypeAsset, TypeLiability, TypeEquity, TypeIncome, TypeExpense:
		return true
	}
	return false
}

// Account models a chart of accounts node.
type Account struct {
	ID       int64
	TenantID uuid.UUID
	Code     string
	Name     string
	Type     AccountType
	// Subtype classifies for report sectioning, e.g. CURRENT_ASSET vs
	// NON_CURRENT_ASSET. Free form, never inferred.
	Subtype           string
	ParentID          *int64
	IsSystem          bool
	IsContra          bool
	IsPaymentEligible bool
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// BalanceSign returns +1 for debit-normal accounts and -1 for credit-normal
// ones. Contra accounts flip their type's natural side.
func BalanceSign(a Account) int {
	sign := -1
	if a.Type == TypeAsset || a.Type == TypeExpense {
		sign = 1
	}
	if a.IsContra {
		sign = -sign
	}
	return sign
}

// CreateInput groups fields required to create an account.
type CreateInput struct {
	TenantID          uuid.UUID
	Code              string
	Name              string
	Type              AccountType
	Subtype           string
	ParentID          *int64
	IsSystem          bool
	IsContra          bool
	IsPaymentEligible bool
}

var (
	// ErrDuplicateCode indicates the code already exists for the tenant.
	ErrDuplicateCode = errors.New("accounts: duplicate account code")
	// ErrAccountInUse indicates the account cannot be hard-deactivated.
	ErrAccountInUse = errors.New("accounts: account in use")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("accounts: account not found")
	// ErrInvalidType indicates an unknown account type.
	ErrInvalidType = errors.New("accounts: invalid account type")
	// ErrParentMismatch indicates the parent is missing or belongs to
	// another tenant or type.
	ErrParentMismatch = errors.New("accounts: invalid parent account")
	// ErrTreeCycle indicates the stored hierarchy is not a tree. The tree is
	// kept acyclic at creation, so hitting this is an internal error.
	ErrTreeCycle = errors.New("accounts: cycle detected in account tree")
)
