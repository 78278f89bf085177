package classification

import (
	"context"
	"log/slog"
	"strings"
)

// CodePair is the debit/credit assignment for one receipt description.
type CodePair struct {
	Debit  int
	Credit int
}

// codeEntry is one (match term, code) pair. Entries are evaluated
// top-to-bottom and the first term contained in the description wins.
type codeEntry struct {
	term string
	code int
}

// defaultDebitTable mirrors the stock chart of accounts used before a
// user customizes their tax rules. Credits have no static default; they
// only come from persisted rules.
var defaultDebitTable = []codeEntry{
	{"SIMPLES NACIONAL", 531},
	{"PIS", 179},
	{"COFINS", 180},
	{"IRPJ", 174},
	{"CSLL", 175},
	{"ISS", 173},
	{"MULTA E JUROS", 352},
	{"MULTA", 350},
	{"DESCONHECIDO", 350},
	{"INSS", 191},
	{"IRRF", 178},
}

// ReceiptMapper resolves aggregated receipt descriptions to account
// codes using the user's tax-rule table.
type ReceiptMapper struct {
	rules  TaxRuleRepository
	logger *slog.Logger
}

func NewReceiptMapper(rules TaxRuleRepository, logger *slog.Logger) *ReceiptMapper {
	return &ReceiptMapper{rules: rules, logger: logger}
}

// MapCodes returns one CodePair per description, resolved independently
// for the debit and credit side. Unmatched descriptions get code 0.
func (m *ReceiptMapper) MapCodes(ctx context.Context, userID string, descriptions []string) ([]CodePair, error) {
	rules, err := m.rules.ListWithCodes(ctx, userID)
	if err != nil {
		return nil, err
	}

	debitTable := buildCodeTable(rules, func(r TaxRule) int { return r.DebitCode })
	creditTable := buildCodeTable(rules, func(r TaxRule) int { return r.CreditCode })
	if len(debitTable) == 0 {
		m.logger.Debug("no tax rules for user, using default debit table", slog.String("user_id", userID))
		debitTable = defaultDebitTable
	}

	pairs := make([]CodePair, len(descriptions))
	for i, desc := range descriptions {
		pairs[i] = CodePair{
			Debit:  matchCode(desc, debitTable),
			Credit: matchCode(desc, creditTable),
		}
	}
	return pairs, nil
}

// buildCodeTable turns the user's rules into an ordered match table.
// Rule names are normalized (uppercase, underscores to spaces). Rules
// mentioning MULTA also cover the synthetic MULTA E JUROS and
// DESCONHECIDO descriptions the extractor produces.
func buildCodeTable(rules []TaxRule, code func(TaxRule) int) []codeEntry {
	var table []codeEntry
	for _, rule := range rules {
		c := code(rule)
		if c == 0 || rule.Name == "" {
			continue
		}
		name := strings.ToUpper(strings.ReplaceAll(rule.Name, "_", " "))
		table = append(table, codeEntry{term: name, code: c})

		if strings.Contains(name, "MULTA JUROS") {
			table = append(table, codeEntry{term: "MULTA E JUROS", code: c})
		}
		if strings.Contains(name, "MULTA") {
			table = append(table, codeEntry{term: "DESCONHECIDO", code: c})
		}
	}
	return table
}

func matchCode(description string, table []codeEntry) int {
	upper := strings.ToUpper(description)
	for _, entry := range table {
		if strings.Contains(upper, entry.term) {
			return entry.code
		}
	}
	return 0
}
