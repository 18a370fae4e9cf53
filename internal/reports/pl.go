package reports

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitabu-erp/vitabu/internal/accounts"
	"github.com/vitabu-erp/vitabu/internal/ledger"
)

// buildProfitLoss sums INCOME minus EXPENSE leaf balances over the period.
// savingsRate is netIncome over totalIncome and is zero when there is no
// income to divide by.
func (a *Assembler) buildProfitLoss(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (ProfitLoss, error) {
	accts, err := a.accounts.List(ctx, tenantID, false)
	if err != nil {
		return ProfitLoss{}, err
	}
	tree, err := accounts.BuildTree(accts)
	if err != nil {
		return ProfitLoss{}, err
	}
	activity, err := a.activity.ActivityByAccount(ctx, tenantID, from, to)
	if err != nil {
		return ProfitLoss{}, err
	}

	pl := ProfitLoss{
		Period:   Period{From: from, To: to},
		Income:   Section{Title: "Income"},
		Expenses: Section{Title: "Expenses"},
	}
	for _, leaf := range tree.Leaves() {
		act, ok := activity[leaf.ID]
		if !ok || (act.Debit.IsZero() && act.Credit.IsZero()) {
			continue
		}
		amount := ledger.SignedBalance(leaf, act)
		item := LineItem{Code: leaf.Code, Name: leaf.Name, Amount: amount}
		switch leaf.Type {
		case accounts.TypeIncome:
			pl.Income.Items = append(pl.Income.Items, item)
			pl.Income.Total = pl.Income.Total.Add(amount)
		case accounts.TypeExpense:
			pl.Expenses.Items = append(pl.Expenses.Items, item)
			pl.Expenses.Total = pl.Expenses.Total.Add(amount)
		}
	}
	sortItems(pl.Income.Items)
	sortItems(pl.Expenses.Items)

	pl.TotalIncome = pl.Income.Total
	pl.TotalExpense = pl.Expenses.Total
	pl.NetIncome = pl.TotalIncome.Sub(pl.TotalExpense)
	if pl.TotalIncome.IsZero() {
		pl.SavingsRate = decimal.Zero
	} else {
		pl.SavingsRate = pl.NetIncome.DivRound(pl.TotalIncome, 4)
	}
	return pl, nil
}

func sortItems(items []LineItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].Code < items[j].Code })
}
