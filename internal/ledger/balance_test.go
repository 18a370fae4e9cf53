package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vitabu-erp/vitabu/internal/accounts"
)

type staticActivity map[int64]Activity

func (s staticActivity) ActivityByAccount(_ context.Context, _ uuid.UUID, _, _ time.Time) (map[int64]Activity, error) {
	return s, nil
}

func (s staticActivity) AccountActivity(_ context.Context, _ uuid.UUID, accountID int64, _, _ time.Time) (Activity, error) {
	return s[accountID], nil
}

type staticAccounts []accounts.Account

func (s staticAccounts) List(_ context.Context, _ uuid.UUID, activeOnly bool) ([]accounts.Account, error) {
	if !activeOnly {
		return s, nil
	}
	var out []accounts.Account
	for _, a := range s {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s staticAccounts) Get(_ context.Context, _ uuid.UUID, id int64) (accounts.Account, error) {
	for _, a := range s {
		if a.ID == id {
			return a, nil
		}
	}
	return accounts.Account{}, accounts.ErrAccountNotFound
}

func ptr(v int64) *int64 { return &v }

func TestSignedBalance(t *testing.T) {
	act := Activity{Debit: money("400"), Credit: money("100")}

	asset := accounts.Account{Type: accounts.TypeAsset}
	require.True(t, SignedBalance(asset, act).Equal(money("300")))

	income := accounts.Account{Type: accounts.TypeIncome}
	require.True(t, SignedBalance(income, act).Equal(money("-300")))

	contra := accounts.Account{Type: accounts.TypeAsset, IsContra: true}
	require.True(t, SignedBalance(contra, act).Equal(money("-300")))
}

func TestHierarchyBalance(t *testing.T) {
	accts := staticAccounts{
		{ID: 1, Code: "1000", Name: "Assets", Type: accounts.TypeAsset, IsActive: true},
		{ID: 2, Code: "1100", Name: "Cash", Type: accounts.TypeAsset, ParentID: ptr(1), IsActive: true},
		{ID: 3, Code: "1200", Name: "Bank", Type: accounts.TypeAsset, ParentID: ptr(1), IsActive: true},
		{ID: 4, Code: "4000", Name: "Revenue", Type: accounts.TypeIncome, IsActive: true},
	}
	activity := staticActivity{
		2: {Debit: money("500"), Credit: money("100")},
		3: {Debit: money("250"), Credit: money("50")},
		4: {Credit: money("600")},
	}
	calc := NewCalculator(activity, accts)
	tenantID := uuid.New()

	total, err := calc.HierarchyBalance(context.Background(), tenantID, 1, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.True(t, total.Equal(money("600")), "got %s", total)

	leaf, err := calc.BalanceOf(context.Background(), tenantID, 2, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.True(t, leaf.Equal(money("400")))

	_, err = calc.HierarchyBalance(context.Background(), tenantID, 99, time.Time{}, time.Time{})
	require.ErrorIs(t, err, accounts.ErrAccountNotFound)
}

func TestTrialBalanceRows(t *testing.T) {
	accts := staticAccounts{
		{ID: 1, Code: "1000", Name: "Assets", Type: accounts.TypeAsset, IsActive: true},
		{ID: 2, Code: "1100", Name: "Cash", Type: accounts.TypeAsset, ParentID: ptr(1), IsActive: true},
		{ID: 3, Code: "1900", Name: "Dormant", Type: accounts.TypeAsset, ParentID: ptr(1), IsActive: true},
		{ID: 4, Code: "4000", Name: "Revenue", Type: accounts.TypeIncome, IsActive: true},
		{ID: 5, Code: "5000", Name: "Retired", Type: accounts.TypeExpense, IsActive: false},
	}
	activity := staticActivity{
		2: {Debit: money("600")},
		4: {Credit: money("600")},
		5: {Debit: money("40")},
	}
	calc := NewCalculator(activity, accts)

	rows, err := calc.TrialBalanceRows(context.Background(), uuid.New(), time.Now())
	require.NoError(t, err)
	// Parent accounts, zero-activity leaves, and inactive accounts drop out.
	require.Len(t, rows, 2)
	require.Equal(t, "1100", rows[0].Code)
	require.Equal(t, "4000", rows[1].Code)
	require.True(t, rows[0].Debit.Equal(money("600")))
	require.True(t, rows[1].Credit.Equal(money("600")))
}

func TestGlobalImbalance(t *testing.T) {
	calc := NewCalculator(staticActivity{
		1: {Debit: money("100")},
		2: {Credit: money("99")},
	}, staticAccounts{})

	diff, err := calc.GlobalImbalance(context.Background(), uuid.New())
	require.NoError(t, err)
	require.True(t, diff.Equal(money("1")))
}
