package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitabu-erp/vitabu/internal/accounts"
)

// Activity is the raw posted debit and credit volume for one account.
type Activity struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// ActivityPort reads aggregated journal activity, VOID journals included so
// each reversal pair cancels. Report reads run at snapshot isolation and
// never hold locks against posting.
type ActivityPort interface {
	ActivityByAccount(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (map[int64]Activity, error)
	AccountActivity(ctx context.Context, tenantID uuid.UUID, accountID int64, from, to time.Time) (Activity, error)
}

// AccountSource lists directory accounts for balance roll-ups.
type AccountSource interface {
	List(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]accounts.Account, error)
	Get(ctx context.Context, tenantID uuid.UUID, id int64) (accounts.Account, error)
}

// TrialBalanceRow is one active leaf account's posted totals.
type TrialBalanceRow struct {
	AccountID int64
	Code      string
	Name      string
	Type      accounts.AccountType
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Calculator derives account and hierarchy balances from posted lines.
type Calculator struct {
	activity ActivityPort
	accounts AccountSource
}

// NewCalculator constructs the balance calculator.
func NewCalculator(activity ActivityPort, accountSource AccountSource) *Calculator {
	return &Calculator{activity: activity, accounts: accountSource}
}

// SignedBalance folds raw activity into the account's normal-balance
// direction: debit minus credit for debit-normal accounts, the inverse for
// credit-normal ones.
func SignedBalance(a accounts.Account, act Activity) decimal.Decimal {
	if accounts.BalanceSign(a) > 0 {
		return act.Debit.Sub(act.Credit)
	}
	return act.Credit.Sub(act.Debit)
}

// BalanceOf sums the account's posted activity within the range, defaulting
// to all-time when both bounds are zero.
func (c *Calculator) BalanceOf(ctx context.Context, tenantID uuid.UUID, accountID int64, from, to time.Time) (decimal.Decimal, error) {
	acct, err := c.accounts.Get(ctx, tenantID, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	act, err := c.activity.AccountActivity(ctx, tenantID, accountID, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return SignedBalance(acct, act), nil
}

// HierarchyBalance sums the account's own balance plus every descendant's.
// The tree is acyclic by construction; BuildTree still verifies that and a
// detected cycle comes back as accounts.ErrTreeCycle instead of recursing
// forever.
func (c *Calculator) HierarchyBalance(ctx context.Context, tenantID uuid.UUID, accountID int64, from, to time.Time) (decimal.Decimal, error) {
	accts, err := c.accounts.List(ctx, tenantID, false)
	if err != nil {
		return decimal.Zero, err
	}
	tree, err := accounts.BuildTree(accts)
	if err != nil {
		return decimal.Zero, err
	}
	if tree.Node(accountID) == nil {
		return decimal.Zero, accounts.ErrAccountNotFound
	}
	activity, err := c.activity.ActivityByAccount(ctx, tenantID, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return RollUp(tree, activity, accountID), nil
}

// RollUp computes the hierarchy balance from prefetched activity.
func RollUp(tree *accounts.Tree, activity map[int64]Activity, accountID int64) decimal.Decimal {
	total := decimal.Zero
	tree.Walk(accountID, func(a accounts.Account) {
		total = total.Add(SignedBalance(a, activity[a.ID]))
	})
	return total
}

// TrialBalanceRows emits posted debit and credit totals for every active
// leaf account up to asOf, sorted by code.
func (c *Calculator) TrialBalanceRows(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]TrialBalanceRow, error) {
	accts, err := c.accounts.List(ctx, tenantID, false)
	if err != nil {
		return nil, err
	}
	tree, err := accounts.BuildTree(accts)
	if err != nil {
		return nil, err
	}
	activity, err := c.activity.ActivityByAccount(ctx, tenantID, time.Time{}, asOf)
	if err != nil {
		return nil, err
	}
	var rows []TrialBalanceRow
	for _, leaf := range tree.Leaves() {
		if !leaf.IsActive {
			continue
		}
		act := activity[leaf.ID]
		if act.Debit.IsZero() && act.Credit.IsZero() {
			continue
		}
		rows = append(rows, TrialBalanceRow{
			AccountID: leaf.ID,
			Code:      leaf.Code,
			Name:      leaf.Name,
			Type:      leaf.Type,
			Debit:     act.Debit,
			Credit:    act.Credit,
		})
	}
	return rows, nil
}

// GlobalImbalance returns sum(debit) minus sum(credit) over every posted
// line for the tenant. A healthy ledger always nets to zero.
func (c *Calculator) GlobalImbalance(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	activity, err := c.activity.ActivityByAccount(ctx, tenantID, time.Time{}, time.Time{})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, act := range activity {
		total = total.Add(act.Debit.Sub(act.Credit))
	}
	return total, nil
}
