package shared

import "github.com/shopspring/decimal"

// Monetary amounts carry two fractional digits (minor units of the tenant
// currency). Unit costs keep four so the weighted-average accumulation does
// not drift across long movement histories.
const (
	MoneyScale = 2
	CostScale  = 4
)

// RoundMoney normalises an amount to minor-unit precision.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// RoundCost normalises a unit cost to costing precision.
func RoundCost(d decimal.Decimal) decimal.Decimal {
	return d.Round(CostScale)
}
