// Package money provides pt-BR monetary parsing and formatting helpers.
// Amounts are carried as shopspring decimals; display formatting for
// human-facing messages goes through go-money so BRL grouping rules stay
// consistent with the currency definition.
package money

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// BRL is the only currency this engine deals with.
const BRL = "BRL"

// ParseBR parses an amount written with the pt-BR convention
// ("1.234,56", thousands dot, decimal comma). A bare "-" is the
// printed form of zero on government receipts.
func ParseBR(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	if s == "-" {
		return decimal.Zero, nil
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return d, nil
}

// FormatBR renders a decimal with 2 fraction digits and a comma decimal
// separator, no thousands grouping. This is the cell format of the
// bookkeeping export ("1234,56").
func FormatBR(d decimal.Decimal) string {
	return strings.ReplaceAll(d.StringFixed(2), ".", ",")
}

// DisplayBRL renders an amount for log and notification text, with the
// full BRL symbol and grouping ("R$1.234,56").
func DisplayBRL(d decimal.Decimal) string {
	cents := d.Round(2).Shift(2).IntPart()
	return money.New(cents, BRL).Display()
}

// Round2 rounds half away from zero to 2 decimal places, the rounding
// every aggregation step in the engine uses.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
