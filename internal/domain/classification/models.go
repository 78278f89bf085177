// Package classification resolves bank transactions and receipt entries
// to debit/credit account codes, learning new rules from human review.
package classification

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Amount-sign buckets used to scope rules.
const (
	SignPositive = "POSITIVO"
	SignNegative = "NEGATIVO"
)

// SignOf buckets a signed amount.
func SignOf(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return SignNegative
	}
	return SignPositive
}

// SpecialTerm is a persisted classification rule for bank transactions,
// scoped per user and counterparty tax id. Description matching is exact
// and case-insensitive.
type SpecialTerm struct {
	ID          uuid.UUID
	UserID      string
	TaxID       string
	BankCode    int
	Description string
	Sign        string
	DebitCode   int
	CreditCode  int
}

// TaxRule is a receipt-mode mapping from a named tax term to an account
// code pair. Rules are matched by substring in position order.
type TaxRule struct {
	ID         uuid.UUID
	UserID     string
	Name       string
	DebitCode  int
	CreditCode int
	Position   int
}

// TermKey identifies a rule within one (user, taxId) scope.
type TermKey struct {
	Description string // lowercased
	Sign        string
}

func KeyFor(description, sign string) TermKey {
	return TermKey{Description: strings.ToLower(description), Sign: sign}
}

// Entry is one dated occurrence inside a group.
type Entry struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// Line is one fully resolved transaction ready for export.
type Line struct {
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Sign        string          `json:"sign"`
	DebitCode   int             `json:"debitCode"`
	CreditCode  int             `json:"creditCode"`
	BankCode    int             `json:"bankCode"`
}

// ClassifiedGroup aggregates transactions sharing (description, sign)
// that resolved against the rule store. Code slices keep every distinct
// non-zero code seen, since historical rules may disagree per line.
type ClassifiedGroup struct {
	Description string `json:"description"`
	Sign        string `json:"sign"`
	Lines       []Line `json:"lines"`
	DebitCodes  []int  `json:"debitCodes"`
	CreditCodes []int  `json:"creditCodes"`
	BankCodes   []int  `json:"bankCodes"`
}

// PendingGroup aggregates transactions sharing (description, sign) that
// no rule resolves. It lives only for the duration of one request; its
// resolution becomes a SpecialTerm.
type PendingGroup struct {
	Description        string   `json:"description"`
	Sign               string   `json:"sign"`
	Entries            []Entry  `json:"entries"`
	CandidateBankCodes []int    `json:"candidateBankCodes"`
	Suggestions        []string `json:"suggestions,omitempty"`
}

// Resolution is one human-supplied classification for a pending group.
// Individual resolutions apply to a single line matched by the exact
// (description, date, amount) triple and are never persisted as rules.
type Resolution struct {
	Description string          `json:"description"`
	Sign        string          `json:"sign"`
	DebitCode   int             `json:"debitCode"`
	CreditCode  int             `json:"creditCode"`
	BankCode    int             `json:"bankCode"`
	Date        string          `json:"date,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Individual  bool            `json:"individual,omitempty"`
}

// Status of one processing request.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
)

// Outcome is the request result. Partial outcomes carry pending groups
// for human review; completed outcomes carry the export location.
type Outcome struct {
	Status     Status            `json:"status"`
	Message    string            `json:"message"`
	Classified []ClassifiedGroup `json:"classified"`
	Pending    []PendingGroup    `json:"pending,omitempty"`
	OutputPath string            `json:"outputPath,omitempty"`
}
