package reports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// buildTrialBalance lists posted totals for every active leaf account and
// checks that total debits equal total credits exactly.
func (a *Assembler) buildTrialBalance(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (TrialBalance, error) {
	rows, err := a.calc.TrialBalanceRows(ctx, tenantID, asOf)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := TrialBalance{AsOf: asOf, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, row := range rows {
		tb.Rows = append(tb.Rows, TrialBalanceRow{
			Code:   row.Code,
			Name:   row.Name,
			Type:   string(row.Type),
			Debit:  row.Debit,
			Credit: row.Credit,
		})
		tb.TotalDebit = tb.TotalDebit.Add(row.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(row.Credit)
	}
	tb.IsBalanced = tb.TotalDebit.Equal(tb.TotalCredit)
	return tb, nil
}
