package reports

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vitabu-erp/vitabu/internal/accounts"
	"github.com/vitabu-erp/vitabu/internal/ledger"
)

type postedLine struct {
	accountID int64
	at        time.Time
	debit     decimal.Decimal
	credit    decimal.Decimal
}

// fakeActivity replays recorded lines through the activity port, honoring
// the inclusive range semantics of the real repository.
type fakeActivity struct {
	lines []postedLine
	calls int
}

func (f *fakeActivity) add(accountID int64, at time.Time, debit, credit string) {
	f.lines = append(f.lines, postedLine{
		accountID: accountID,
		at:        at,
		debit:     amt(debit),
		credit:    amt(credit),
	})
}

func (f *fakeActivity) inRange(at, from, to time.Time) bool {
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && at.After(to) {
		return false
	}
	return true
}

func (f *fakeActivity) ActivityByAccount(_ context.Context, _ uuid.UUID, from, to time.Time) (map[int64]ledger.Activity, error) {
	f.calls++
	out := make(map[int64]ledger.Activity)
	for _, line := range f.lines {
		if !f.inRange(line.at, from, to) {
			continue
		}
		act := out[line.accountID]
		act.Debit = act.Debit.Add(line.debit)
		act.Credit = act.Credit.Add(line.credit)
		out[line.accountID] = act
	}
	return out, nil
}

func (f *fakeActivity) AccountActivity(ctx context.Context, tenantID uuid.UUID, accountID int64, from, to time.Time) (ledger.Activity, error) {
	all, err := f.ActivityByAccount(ctx, tenantID, from, to)
	if err != nil {
		return ledger.Activity{}, err
	}
	return all[accountID], nil
}

type accountList []accounts.Account

func (s accountList) List(_ context.Context, _ uuid.UUID, activeOnly bool) ([]accounts.Account, error) {
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

func (s accountList) Get(_ context.Context, _ uuid.UUID, id int64) (accounts.Account, error) {
	for _, a := range s {
		if a.ID == id {
			return a, nil
		}
	}
	return accounts.Account{}, accounts.ErrAccountNotFound
}

func amt(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

var reportAccounts = accountList{
	{ID: 1, Code: "1100", Name: "Cash", Type: accounts.TypeAsset, Subtype: "CURRENT_ASSET", IsPaymentEligible: true, IsActive: true},
	{ID: 2, Code: "1200", Name: "Accounts Receivable", Type: accounts.TypeAsset, Subtype: "CURRENT_ASSET", IsActive: true},
	{ID: 3, Code: "1300", Name: "Inventory", Type: accounts.TypeAsset, Subtype: "CURRENT_ASSET", IsActive: true},
	{ID: 4, Code: "2100", Name: "Accounts Payable", Type: accounts.TypeLiability, Subtype: "CURRENT_LIABILITY", IsActive: true},
	{ID: 5, Code: "3000", Name: "Owner Equity", Type: accounts.TypeEquity, Subtype: "EQUITY", IsActive: true},
	{ID: 6, Code: "4000", Name: "Sales Revenue", Type: accounts.TypeIncome, Subtype: "OPERATING_INCOME", IsActive: true},
	{ID: 7, Code: "5000", Name: "Cost of Goods Sold", Type: accounts.TypeExpense, Subtype: "COGS", IsActive: true},
}

func newTestService(activity *fakeActivity) *Service {
	calc := ledger.NewCalculator(activity, reportAccounts)
	asm := NewAssembler(calc, reportAccounts, activity)
	return NewService(asm, nil, nil)
}

var asOf = time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)

func TestTrialBalanceFromSale(t *testing.T) {
	// One credit sale: 10,000 revenue against receivable, 5,000 cost
	// relieved from inventory.
	activity := &fakeActivity{}
	at := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	activity.add(2, at, "10000", "0")
	activity.add(6, at, "0", "10000")
	activity.add(7, at, "5000", "0")
	activity.add(3, at, "0", "5000")

	svc := newTestService(activity)
	tb, err := svc.TrialBalance(context.Background(), uuid.New(), asOf)
	require.NoError(t, err)
	require.Len(t, tb.Rows, 4)
	require.True(t, tb.TotalDebit.Equal(amt("15000")))
	require.True(t, tb.TotalCredit.Equal(amt("15000")))
	require.True(t, tb.IsBalanced)
}

func TestProfitLoss(t *testing.T) {
	activity := &fakeActivity{}
	at := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	activity.add(6, at, "0", "10000")
	activity.add(7, at, "6000", "0")

	svc := newTestService(activity)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	pl, err := svc.ProfitLoss(context.Background(), uuid.New(), from, asOf)
	require.NoError(t, err)
	require.True(t, pl.TotalIncome.Equal(amt("10000")))
	require.True(t, pl.TotalExpense.Equal(amt("6000")))
	require.True(t, pl.NetIncome.Equal(amt("4000")))
	require.True(t, pl.SavingsRate.Equal(amt("0.4")), "got %s", pl.SavingsRate)
}

func TestProfitLossNoIncome(t *testing.T) {
	activity := &fakeActivity{}
	activity.add(7, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), "500", "0")

	svc := newTestService(activity)
	pl, err := svc.ProfitLoss(context.Background(), uuid.New(), time.Time{}, asOf)
	require.NoError(t, err)
	require.True(t, pl.NetIncome.Equal(amt("-500")))
	require.True(t, pl.SavingsRate.IsZero())
}

func TestBalanceSheetBalanced(t *testing.T) {
	activity := &fakeActivity{}
	at := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	// Owner funds the business, then one profitable cash sale.
	activity.add(1, at, "1000", "0")
	activity.add(5, at, "0", "1000")
	activity.add(1, at, "300", "0")
	activity.add(6, at, "0", "300")

	svc := newTestService(activity)
	bs, err := svc.BalanceSheet(context.Background(), uuid.New(), asOf)
	require.NoError(t, err)
	require.True(t, bs.TotalAssets.Equal(amt("1300")))
	require.True(t, bs.TotalEquity.Equal(amt("1300")))
	require.True(t, bs.IsBalanced)
	require.True(t, bs.Discrepancy.IsZero())

	// Earnings to date show up as a computed equity section.
	var earnings decimal.Decimal
	for _, sec := range bs.Equity {
		if sec.Title == "Earnings" {
			earnings = sec.Total
		}
	}
	require.True(t, earnings.Equal(amt("300")))
}

func TestBalanceSheetSurfacesDiscrepancy(t *testing.T) {
	// A corrupted ledger: one side short by a unit. The report states the
	// exact discrepancy instead of forcing the sides to meet.
	activity := &fakeActivity{}
	at := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	activity.add(1, at, "100", "0")
	activity.add(6, at, "0", "99")

	svc := newTestService(activity)
	bs, err := svc.BalanceSheet(context.Background(), uuid.New(), asOf)
	require.NoError(t, err)
	require.False(t, bs.IsBalanced)
	require.True(t, bs.Discrepancy.Equal(amt("1")), "got %s", bs.Discrepancy)
}

func TestCashFlow(t *testing.T) {
	activity := &fakeActivity{}
	before := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	during := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	// Opening cash of 500, then 900 collected and 200 paid out during March.
	activity.add(1, before, "500", "0")
	activity.add(5, before, "0", "500")
	activity.add(1, during, "900", "0")
	activity.add(2, during, "0", "900")
	activity.add(1, during, "0", "200")
	activity.add(4, during, "200", "0")

	svc := newTestService(activity)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cf, err := svc.CashFlow(context.Background(), uuid.New(), from, asOf)
	require.NoError(t, err)
	require.Len(t, cf.Accounts, 1)
	require.True(t, cf.Accounts[0].Inflow.Equal(amt("900")))
	require.True(t, cf.Accounts[0].Outflow.Equal(amt("200")))
	require.True(t, cf.NetChange.Equal(amt("700")))
	require.True(t, cf.OpeningCash.Equal(amt("500")))
	require.True(t, cf.ClosingCash.Equal(amt("1200")))
	require.True(t, cf.CrossChecked)
}
