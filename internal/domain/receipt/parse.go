package receipt

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/contaflux/contaflux/pkg/money"
)

var (
	// amountPattern also matches a bare "-", the printed form of zero.
	amountPattern      = regexp.MustCompile(`(-|\d{1,3}(?:\.\d{3})*,\d{2})`)
	plainAmountPattern = regexp.MustCompile(`\d{1,3}(?:\.\d{3})*,\d{2}`)
	datePattern        = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)

	// paymentLinePattern recognizes a tax composition line: a 4-digit
	// revenue code, some descriptive text, and a trailing amount.
	paymentLinePattern = regexp.MustCompile(`^\d{4}.*[A-Za-z].*\d{1,3},\d{2}$`)
)

// paymentValues are the four amount columns of a composition line.
type paymentValues struct {
	Principal decimal.Decimal
	Fine      decimal.Decimal
	Interest  decimal.Decimal
	Total     decimal.Decimal
}

// parsePaymentLine pulls the amount columns out of a composition line.
// The line may carry extra numbers on the left (revenue code, period),
// so the four columns are the LAST four amount tokens. Returns nil when
// the line has fewer than four.
func parsePaymentLine(line string) *paymentValues {
	tokens := amountPattern.FindAllString(line, -1)
	if len(tokens) < 4 {
		return nil
	}

	last := tokens[len(tokens)-4:]
	vals := make([]decimal.Decimal, 4)
	for i, tok := range last {
		v, err := money.ParseBR(tok)
		if err != nil {
			return nil
		}
		vals[i] = v
	}

	return &paymentValues{Principal: vals[0], Fine: vals[1], Interest: vals[2], Total: vals[3]}
}

// totalsValues are the document-level totals plus the combined fine and
// interest amount that becomes its own export entry.
type totalsValues struct {
	Principal       decimal.Decimal
	Fine            decimal.Decimal
	Interest        decimal.Decimal
	Total           decimal.Decimal
	FineAndInterest decimal.Decimal
}

// parseTotalsLine parses the line after the "Totais" marker. It must
// carry exactly four amounts; dashes read as zero.
func parseTotalsLine(line string) *totalsValues {
	tokens := plainAmountPattern.FindAllString(strings.ReplaceAll(line, "-", "0,00"), -1)
	if len(tokens) != 4 {
		return nil
	}

	vals := make([]decimal.Decimal, 4)
	for i, tok := range tokens {
		v, err := money.ParseBR(tok)
		if err != nil {
			return nil
		}
		vals[i] = v
	}

	return &totalsValues{
		Principal:       vals[0],
		Fine:            vals[1],
		Interest:        vals[2],
		Total:           vals[3],
		FineAndInterest: money.Round2(vals[1].Add(vals[2])),
	}
}
