// Package export turns classified line items into the canonical
// two-column accounting file consumed by bookkeeping software.
package export

import (
	"github.com/shopspring/decimal"

	"github.com/contaflux/contaflux/pkg/money"
)

// LineItem is one classified transaction or receipt entry.
type LineItem struct {
	Date        string
	DebitCode   int
	CreditCode  int
	Amount      decimal.Decimal
	Description string
	BankCode    int
}

// Row is one output line. Blank cells stay empty strings.
type Row struct {
	Date        string `csv:"data"`
	Debit       string `csv:"debito"`
	Credit      string `csv:"credito"`
	Amount      string `csv:"valor"`
	Description string `csv:"descricao"`
	Division    string `csv:"divisao"`
}

// BuildRows converts line items to export rows. An item with a bank
// code collapses to a single row carrying both codes; without one the
// entry splits into a debit row (division flag "1") and a credit row.
func BuildRows(items []LineItem) []Row {
	var rows []Row
	for _, item := range items {
		if item.BankCode != 0 {
			rows = append(rows, Row{
				Date:        item.Date,
				Debit:       formatCode(item.DebitCode),
				Credit:      formatCode(item.CreditCode),
				Amount:      money.FormatBR(item.Amount.Abs()),
				Description: item.Description,
			})
			continue
		}

		amount := item.Amount
		if amount.IsNegative() {
			amount = amount.Abs()
		}

		rows = append(rows,
			Row{
				Date:        item.Date,
				Debit:       formatCode(item.DebitCode),
				Amount:      money.FormatBR(amount),
				Description: item.Description,
				Division:    "1",
			},
			Row{
				Date:        item.Date,
				Credit:      formatCode(item.CreditCode),
				Amount:      money.FormatBR(amount),
				Description: item.Description,
			},
		)
	}
	return rows
}

// formatCode renders an account code as a numeric cell. The import
// format treats every number cell the same way: two fraction digits,
// comma separator ("412,00").
func formatCode(code int) string {
	return money.FormatBR(decimal.NewFromInt(int64(code)))
}
