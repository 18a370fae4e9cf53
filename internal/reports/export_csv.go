package reports

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// csvPrinter formats amounts with grouping separators for spreadsheet
// consumers.
var csvPrinter = message.NewPrinter(language.English)

// formatAmount renders the decimal at two fractional digits with grouping.
// The whole part goes through the printer as an integer so the value never
// passes through a float.
func formatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	dot := strings.LastIndexByte(s, '.')
	whole, err := strconv.ParseUint(s[:dot], 10, 64)
	if err != nil {
		return sign + s
	}
	return sign + csvPrinter.Sprintf("%d", whole) + s[dot:]
}

// WriteTrialBalanceCSV streams the trial balance as CSV.
func WriteTrialBalanceCSV(w io.Writer, tb TrialBalance) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"code", "name", "type", "debit", "credit"}); err != nil {
		return err
	}
	for _, row := range tb.Rows {
		if err := cw.Write([]string{row.Code, row.Name, row.Type, formatAmount(row.Debit), formatAmount(row.Credit)}); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{"", "TOTAL", "", formatAmount(tb.TotalDebit), formatAmount(tb.TotalCredit)}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteProfitLossCSV streams the income statement as CSV.
func WriteProfitLossCSV(w io.Writer, pl ProfitLoss) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"section", "code", "name", "amount"}); err != nil {
		return err
	}
	writeSection := func(sec Section) error {
		for _, item := range sec.Items {
			if err := cw.Write([]string{sec.Title, item.Code, item.Name, formatAmount(item.Amount)}); err != nil {
				return err
			}
		}
		return cw.Write([]string{sec.Title, "", "TOTAL", formatAmount(sec.Total)})
	}
	if err := writeSection(pl.Income); err != nil {
		return err
	}
	if err := writeSection(pl.Expenses); err != nil {
		return err
	}
	if err := cw.Write([]string{"", "", "NET INCOME", formatAmount(pl.NetIncome)}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
