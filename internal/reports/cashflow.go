package reports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitabu-erp/vitabu/internal/ledger"
)

// buildCashFlow computes the direct-method statement: debit and credit
// volume per payment-eligible account over the period. The derived net
// change is cross-checked against the closing minus opening balance of the
// same accounts; a mismatch is surfaced through CrossChecked.
func (a *Assembler) buildCashFlow(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (CashFlow, error) {
	accts, err := a.accounts.List(ctx, tenantID, false)
	if err != nil {
		return CashFlow{}, err
	}
	period, err := a.activity.ActivityByAccount(ctx, tenantID, from, to)
	if err != nil {
		return CashFlow{}, err
	}
	var opening map[int64]ledger.Activity
	if !from.IsZero() {
		opening, err = a.activity.ActivityByAccount(ctx, tenantID, time.Time{}, from.Add(-time.Nanosecond))
		if err != nil {
			return CashFlow{}, err
		}
	}
	closing, err := a.activity.ActivityByAccount(ctx, tenantID, time.Time{}, to)
	if err != nil {
		return CashFlow{}, err
	}

	cf := CashFlow{Period: Period{From: from, To: to}}
	for _, acct := range accts {
		if !acct.IsPaymentEligible {
			continue
		}
		act := period[acct.ID]
		if act.Debit.IsZero() && act.Credit.IsZero() {
			continue
		}
		cf.Accounts = append(cf.Accounts, CashFlowRow{
			Code:      acct.Code,
			Name:      acct.Name,
			Inflow:    act.Debit,
			Outflow:   act.Credit,
			NetChange: act.Debit.Sub(act.Credit),
		})
		cf.NetChange = cf.NetChange.Add(act.Debit.Sub(act.Credit))
	}

	openingCash := decimal.Zero
	closingCash := decimal.Zero
	for _, acct := range accts {
		if !acct.IsPaymentEligible {
			continue
		}
		if act, ok := opening[acct.ID]; ok {
			openingCash = openingCash.Add(act.Debit.Sub(act.Credit))
		}
		if act, ok := closing[acct.ID]; ok {
			closingCash = closingCash.Add(act.Debit.Sub(act.Credit))
		}
	}
	cf.OpeningCash = openingCash
	cf.ClosingCash = closingCash
	cf.CrossChecked = cf.NetChange.Equal(closingCash.Sub(openingCash))
	return cf, nil
}
