package receipt

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/contaflux/contaflux/internal/domain/classification"
	"github.com/contaflux/contaflux/pkg/money"
)

// Section markers of the bank collection receipt layout.
const (
	headerMarker      = "Agência Estabelecimento Valor Reservado/Restituído Referência"
	compositionMarker = "Composição do Documento de Arrecadação"
	totalsPrefix      = "Totais"
)

// FineAndInterestDescription is the synthetic entry added when the
// document totals carry a non-zero fine or interest amount.
const FineAndInterestDescription = "PG. MULTA E JUROS XX"

// Receipt is one collection document found in the PDF. The four slices
// are parallel: entry i is Descriptions[i] with Totals[i] and its code
// pair.
type Receipt struct {
	CollectionDate string
	Descriptions   []string
	Totals         []decimal.Decimal
	DebitCodes     []int
	CreditCodes    []int
}

// CodeMapper resolves aggregated descriptions to debit/credit codes.
type CodeMapper interface {
	MapCodes(ctx context.Context, userID string, descriptions []string) ([]classification.CodePair, error)
}

// Extractor walks the text lines of a receipt PDF and accumulates
// documents. Each call to Extract starts from clean state, so one
// Extractor can serve concurrent uploads.
type Extractor struct {
	mapper CodeMapper
	logger *slog.Logger
}

func NewExtractor(mapper CodeMapper, logger *slog.Logger) *Extractor {
	return &Extractor{mapper: mapper, logger: logger}
}

// docState accumulates one document while its lines stream past.
type docState struct {
	current      Receipt
	descriptions []string
	principals   []decimal.Decimal
}

func (s *docState) reset() {
	s.current = Receipt{}
	s.clearPending()
}

func (s *docState) clearPending() {
	s.descriptions = nil
	s.principals = nil
}

// Extract runs the line state machine over the whole document text.
// A header line starts (or closes) a document; the composition section
// lists one payment line per tax; the totals line may add a synthetic
// fine-and-interest entry that belongs to the document closed by the
// NEXT header.
func (e *Extractor) Extract(ctx context.Context, lines []string, userID string) ([]Receipt, error) {
	var (
		state         docState
		receipts      []Receipt
		collecting    bool
		waitingFinish bool
	)

	for i, line := range lines {
		if strings.Contains(line, headerMarker) {
			if i+1 < len(lines) {
				if date := datePattern.FindString(lines[i+1]); date != "" {
					state.current.CollectionDate = date
				}
			}
			if waitingFinish {
				finishDocument(&state, &receipts)
				waitingFinish = false
			}
			continue
		}

		if strings.Contains(line, compositionMarker) {
			collecting = true
			continue
		}

		if collecting {
			if strings.HasPrefix(line, totalsPrefix) {
				collecting = false
				if err := e.closeComposition(ctx, &state, userID); err != nil {
					return nil, err
				}
			} else if paymentLinePattern.MatchString(line) {
				e.collectPaymentLine(&state, line)
			}
		}

		if line == totalsPrefix && i+1 < len(lines) {
			if err := e.collectFineAndInterest(ctx, &state, lines[i+1], userID); err != nil {
				return nil, err
			}
			waitingFinish = true
		}
	}

	finishDocument(&state, &receipts)
	e.logger.Debug("receipt extraction finished",
		slog.Int("lines", len(lines)),
		slog.Int("documents", len(receipts)))
	return receipts, nil
}

func (e *Extractor) collectPaymentLine(state *docState, line string) {
	vals := parsePaymentLine(line)
	if vals == nil {
		return
	}
	state.principals = append(state.principals, vals.Principal)
	state.descriptions = append(state.descriptions, ExtractDescription(line))
}

// closeComposition aggregates the collected payment lines by
// description and resolves their account codes.
func (e *Extractor) closeComposition(ctx context.Context, state *docState, userID string) error {
	descriptions, totals := aggregateEntries(state.descriptions, state.principals)

	pairs, err := e.mapper.MapCodes(ctx, userID, descriptions)
	if err != nil {
		return err
	}

	date := state.current.CollectionDate
	state.current = Receipt{CollectionDate: date, Descriptions: descriptions, Totals: totals}
	for _, pair := range pairs {
		state.current.DebitCodes = append(state.current.DebitCodes, pair.Debit)
		state.current.CreditCodes = append(state.current.CreditCodes, pair.Credit)
	}

	state.clearPending()
	return nil
}

// collectFineAndInterest parses the document totals line and, when fine
// plus interest is non-zero, appends the synthetic entry.
func (e *Extractor) collectFineAndInterest(ctx context.Context, state *docState, totalsLine, userID string) error {
	totalsLine = strings.TrimSpace(totalsLine)
	if totalsLine == "" || !plainAmountPattern.MatchString(totalsLine) {
		return nil
	}

	vals := parseTotalsLine(totalsLine)
	if vals == nil || vals.FineAndInterest.IsZero() {
		return nil
	}

	pairs, err := e.mapper.MapCodes(ctx, userID, []string{FineAndInterestDescription})
	if err != nil {
		return err
	}

	state.current.Descriptions = append(state.current.Descriptions, FineAndInterestDescription)
	state.current.Totals = append(state.current.Totals, vals.FineAndInterest)
	for _, pair := range pairs {
		state.current.DebitCodes = append(state.current.DebitCodes, pair.Debit)
		state.current.CreditCodes = append(state.current.CreditCodes, pair.Credit)
	}
	return nil
}

// finishDocument commits the current document if it ever saw a header
// date, then resets for the next one.
func finishDocument(state *docState, receipts *[]Receipt) {
	if state.current.CollectionDate == "" {
		return
	}
	*receipts = append(*receipts, state.current)
	state.reset()
}

// aggregateEntries sums principals of repeated descriptions, keeping
// first-seen order. Sums are rounded to centavos.
func aggregateEntries(descriptions []string, principals []decimal.Decimal) ([]string, []decimal.Decimal) {
	sums := make(map[string]decimal.Decimal)
	var order []string
	for i, desc := range descriptions {
		if _, ok := sums[desc]; !ok {
			order = append(order, desc)
		}
		sums[desc] = sums[desc].Add(principals[i])
	}

	totals := make([]decimal.Decimal, len(order))
	for i, desc := range order {
		totals[i] = money.Round2(sums[desc])
	}
	return order, totals
}
