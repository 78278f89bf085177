// Package parser extracts bank transactions from OFX/SGML statements.
// Bank OFX exports are rarely well-formed XML: tags may be unclosed,
// encodings vary, and header lines use a key:value preamble. The parser
// is a line-oriented state machine keyed on <STMTTRN> blocks.
package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// BankTransaction is one statement line.
type BankTransaction struct {
	Date        string          // dd/mm/yyyy
	Amount      decimal.Decimal // signed, 2 decimals
	Description string          // MEMO with trailing "QTD <n>" stripped
	BankCode    string          // BANKID when present in the block's context
}

// Sign returns the amount-sign bucket used for rule scoping.
func (t BankTransaction) Sign() string {
	if t.Amount.IsNegative() {
		return "NEGATIVO"
	}
	return "POSITIVO"
}

// header prefixes of the OFX SGML preamble, skipped wholesale
var headerPrefixes = []string{
	"OFXHEADER:", "DATA:", "VERSION:", "SECURITY:", "ENCODING:",
	"CHARSET:", "COMPRESSION:", "OLDFILEUID:", "NEWFILEUID:",
}

var qtdSuffix = regexp.MustCompile(`\s+QTD\s+\d+\s*$`)

// Parser walks OFX text and collects transactions.
type Parser struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse returns the transactions in document order. No deduplication
// happens here; grouping is the classifier's job.
func (p *Parser) Parse(content string) ([]BankTransaction, error) {
	var (
		transactions  []BankTransaction
		current       *BankTransaction
		inTransaction bool
		bankCode      string
	)

	for _, raw := range strings.FieldsFunc(content, func(r rune) bool { return r == '\n' || r == '\r' }) {
		line := strings.TrimSpace(raw)
		if line == "" || isHeaderLine(line) {
			continue
		}

		switch {
		case line == "<STMTTRN>":
			current = &BankTransaction{BankCode: bankCode}
			inTransaction = true
			continue
		case line == "</STMTTRN>":
			if current != nil {
				transactions = append(transactions, *current)
			}
			current = nil
			inTransaction = false
			continue
		}

		// BANKID lives outside the transaction blocks, in BANKACCTFROM
		if !inTransaction && strings.HasPrefix(line, "<BANKID>") {
			bankCode = tagValue(line, "BANKID")
			continue
		}

		if inTransaction && current != nil {
			p.applyField(line, current)
		}
	}

	p.logger.Info("ofx parsing completed", slog.Int("transactions", len(transactions)))
	return transactions, nil
}

func (p *Parser) applyField(line string, tx *BankTransaction) {
	switch {
	case strings.HasPrefix(line, "<DTPOSTED>"):
		date, err := formatDate(tagValue(line, "DTPOSTED"))
		if err != nil {
			p.logger.Warn("unparseable posting date", slog.String("line", line), slog.Any("error", err))
			return
		}
		tx.Date = date

	case strings.HasPrefix(line, "<TRNAMT>"):
		value := tagValue(line, "TRNAMT")
		amount, err := decimal.NewFromString(value)
		if err != nil {
			p.logger.Warn("unparseable amount", slog.String("value", value))
			return
		}
		tx.Amount = amount

	case strings.HasPrefix(line, "<MEMO>"):
		tx.Description = stripQuantitySuffix(tagValue(line, "MEMO"))
	}
}

// tagValue extracts the value of a tag from one line. Matched open/close
// tags are preferred; with an SGML-style unclosed tag the value runs
// until the next '<' or the end of the line.
func tagValue(line, tag string) string {
	open := "<" + tag + ">"
	idx := strings.Index(line, open)
	if idx < 0 {
		return ""
	}
	rest := line[idx+len(open):]

	if end := strings.Index(rest, "</"+tag+">"); end >= 0 {
		return strings.TrimSpace(rest[:end])
	}
	if end := strings.IndexByte(rest, '<'); end >= 0 {
		return strings.TrimSpace(rest[:end])
	}
	return strings.TrimSpace(rest)
}

// formatDate converts an OFX timestamp to dd/mm/yyyy. The first 8 digits
// are yyyymmdd; any trailing time and bracketed timezone ("[-3:GMT]") are
// dropped.
func formatDate(ofxDate string) (string, error) {
	if idx := strings.IndexByte(ofxDate, '['); idx >= 0 {
		ofxDate = ofxDate[:idx]
	}
	if len(ofxDate) < 8 {
		return "", fmt.Errorf("date too short: %q", ofxDate)
	}
	for _, r := range ofxDate[:8] {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("non-numeric date: %q", ofxDate)
		}
	}
	return ofxDate[6:8] + "/" + ofxDate[4:6] + "/" + ofxDate[0:4], nil
}

// stripQuantitySuffix removes a trailing "QTD <n>" marker some banks
// append to the memo.
func stripQuantitySuffix(memo string) string {
	return strings.TrimSpace(qtdSuffix.ReplaceAllString(memo, ""))
}

func isHeaderLine(line string) bool {
	if strings.HasPrefix(line, "<!--") {
		return true
	}
	for _, prefix := range headerPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
