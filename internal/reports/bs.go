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

// buildBalanceSheet rolls every top-level ASSET, LIABILITY and EQUITY
// hierarchy up to asOf and sections the rows by the account's subtype
// attribute. Earnings to date appear as a computed equity line so the two
// sides can meet. The equality check is exact: any discrepancy is reported
// as-is, never rounded away or corrected.
func (a *Assembler) buildBalanceSheet(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (BalanceSheet, error) {
	accts, err := a.accounts.List(ctx, tenantID, false)
	if err != nil {
		return BalanceSheet{}, err
	}
	tree, err := accounts.BuildTree(accts)
	if err != nil {
		return BalanceSheet{}, err
	}
	activity, err := a.activity.ActivityByAccount(ctx, tenantID, time.Time{}, asOf)
	if err != nil {
		return BalanceSheet{}, err
	}

	type bucket struct {
		subtype string
		items   []LineItem
		total   decimal.Decimal
	}
	buckets := map[accounts.AccountType]map[string]*bucket{
		accounts.TypeAsset:     {},
		accounts.TypeLiability: {},
		accounts.TypeEquity:    {},
	}
	for _, root := range tree.Roots() {
		group, ok := buckets[root.Account.Type]
		if !ok {
			continue
		}
		amount := ledger.RollUp(tree, activity, root.Account.ID)
		if amount.IsZero() {
			continue
		}
		b := group[root.Account.Subtype]
		if b == nil {
			b = &bucket{subtype: root.Account.Subtype}
			group[root.Account.Subtype] = b
		}
		b.items = append(b.items, LineItem{Code: root.Account.Code, Name: root.Account.Name, Amount: amount})
		b.total = b.total.Add(amount)
	}

	// Income earned less expenses incurred to date lives on the equity side
	// until a formal closing entry moves it.
	earnings := decimal.Zero
	for _, leaf := range tree.Leaves() {
		act, ok := activity[leaf.ID]
		if !ok {
			continue
		}
		switch leaf.Type {
		case accounts.TypeIncome:
			earnings = earnings.Add(ledger.SignedBalance(leaf, act))
		case accounts.TypeExpense:
			earnings = earnings.Sub(ledger.SignedBalance(leaf, act))
		}
	}

	bs := BalanceSheet{AsOf: asOf}
	collect := func(t accounts.AccountType) ([]Section, decimal.Decimal) {
		var sections []Section
		total := decimal.Zero
		for _, b := range buckets[t] {
			sortItems(b.items)
			title := b.subtype
			if title == "" {
				title = string(t)
			}
			sections = append(sections, Section{Title: title, Items: b.items, Total: b.total})
			total = total.Add(b.total)
		}
		sort.Slice(sections, func(i, j int) bool { return sections[i].Title < sections[j].Title })
		return sections, total
	}
	bs.Assets, bs.TotalAssets = collect(accounts.TypeAsset)
	bs.Liabilities, bs.TotalLiab = collect(accounts.TypeLiability)
	bs.Equity, bs.TotalEquity = collect(accounts.TypeEquity)

	if !earnings.IsZero() {
		bs.Equity = append(bs.Equity, Section{
			Title: "Earnings",
			Items: []LineItem{{Name: "Current period earnings", Amount: earnings}},
			Total: earnings,
		})
		bs.TotalEquity = bs.TotalEquity.Add(earnings)
	}

	bs.Discrepancy = bs.TotalAssets.Sub(bs.TotalLiab.Add(bs.TotalEquity))
	bs.IsBalanced = bs.Discrepancy.IsZero()
	return bs, nil
}
