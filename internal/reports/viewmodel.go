package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one account row inside a report section.
type LineItem struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Section groups report rows under a heading with a subtotal.
type Section struct {
	Title string          `json:"title"`
	Items []LineItem      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// Period is the inclusive date range a report covers.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// TrialBalance lists every active account's posted totals and whether the
// ledger nets to zero.
type TrialBalance struct {
	AsOf        time.Time         `json:"asOf"`
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  decimal.Decimal   `json:"totalDebit"`
	TotalCredit decimal.Decimal   `json:"totalCredit"`
	IsBalanced  bool              `json:"isBalanced"`
}

// TrialBalanceRow is one account's debit and credit totals.
type TrialBalanceRow struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Type   string          `json:"type"`
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
}

// ProfitLoss is the income statement over a period.
type ProfitLoss struct {
	Period       Period          `json:"period"`
	Income       Section         `json:"income"`
	Expenses     Section         `json:"expenses"`
	NetIncome    decimal.Decimal `json:"netIncome"`
	SavingsRate  decimal.Decimal `json:"savingsRate"`
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
}

// BalanceSheet is the statement of financial position as of a date. A
// discrepancy between the two sides is surfaced, never corrected.
type BalanceSheet struct {
	AsOf        time.Time       `json:"asOf"`
	Assets      []Section       `json:"assets"`
	Liabilities []Section       `json:"liabilities"`
	Equity      []Section       `json:"equity"`
	TotalAssets decimal.Decimal `json:"totalAssets"`
	TotalLiab   decimal.Decimal `json:"totalLiabilities"`
	TotalEquity decimal.Decimal `json:"totalEquity"`
	IsBalanced  bool            `json:"isBalanced"`
	Discrepancy decimal.Decimal `json:"discrepancy"`
}

// CashFlow is the direct-method statement over payment-eligible accounts,
// cross-checked against the balance delta of those same accounts.
type CashFlow struct {
	Period      Period          `json:"period"`
	Accounts    []CashFlowRow   `json:"accounts"`
	NetChange   decimal.Decimal `json:"netChange"`
	OpeningCash decimal.Decimal `json:"openingCash"`
	ClosingCash decimal.Decimal `json:"closingCash"`
	// CrossChecked reports whether the direct-method net change equals the
	// closing minus opening cash balance.
	CrossChecked bool `json:"crossChecked"`
}

// CashFlowRow is one payment-eligible account's inflow and outflow.
type CashFlowRow struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Inflow    decimal.Decimal `json:"inflow"`
	Outflow   decimal.Decimal `json:"outflow"`
	NetChange decimal.Decimal `json:"netChange"`
}
