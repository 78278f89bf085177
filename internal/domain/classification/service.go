package classification

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/shopspring/decimal"
)

// Transaction is the classifier's view of one extracted statement line.
type Transaction struct {
	Date        string
	Amount      decimal.Decimal
	Description string
}

// Service runs the classify-or-defer workflow over a batch of bank
// transactions and folds human review back into the rule store.
type Service struct {
	terms  TermRepository
	logger *slog.Logger
}

func NewService(terms TermRepository, logger *slog.Logger) *Service {
	return &Service{terms: terms, logger: logger}
}

// Classify partitions transactions into classified and pending groups.
// Every transaction lands in exactly one group. Rules are preloaded in
// one query and bank-code candidates in another, regardless of the
// number of transactions.
func (s *Service) Classify(ctx context.Context, userID, taxID string, hintedBankCode int, txs []Transaction) (*Outcome, error) {
	rules, err := s.terms.FindAllRelevant(ctx, userID, taxID)
	if err != nil {
		return nil, fmt.Errorf("failed to preload rules: %w", err)
	}

	var bankCodes []int
	if taxID != "" {
		bankCodes, err = s.terms.DistinctBankCodes(ctx, userID, taxID, hintedBankCode)
		if err != nil {
			return nil, fmt.Errorf("failed to load bank codes: %w", err)
		}
	}

	var classified []*ClassifiedGroup
	var pending []*PendingGroup
	classifiedByKey := make(map[TermKey]*ClassifiedGroup)
	pendingByKey := make(map[TermKey]*PendingGroup)

	for _, tx := range txs {
		sign := SignOf(tx.Amount)
		key := KeyFor(tx.Description, sign)

		if rule, ok := rules[key]; ok {
			group, exists := classifiedByKey[key]
			if !exists {
				group = &ClassifiedGroup{Description: tx.Description, Sign: sign}
				classifiedByKey[key] = group
				classified = append(classified, group)
			}
			group.Lines = append(group.Lines, Line{
				Date:        tx.Date,
				Amount:      tx.Amount,
				Description: tx.Description,
				Sign:        sign,
				DebitCode:   rule.DebitCode,
				CreditCode:  rule.CreditCode,
				BankCode:    rule.BankCode,
			})
			group.DebitCodes = appendDistinct(group.DebitCodes, rule.DebitCode)
			group.CreditCodes = appendDistinct(group.CreditCodes, rule.CreditCode)
			group.BankCodes = appendDistinct(group.BankCodes, rule.BankCode)
			continue
		}

		group, exists := pendingByKey[key]
		if !exists {
			group = &PendingGroup{
				Description:        tx.Description,
				Sign:               sign,
				CandidateBankCodes: bankCodes,
				Suggestions:        suggestSimilar(tx.Description, ruleDescriptions(rules)),
			}
			pendingByKey[key] = group
			pending = append(pending, group)
		}
		group.Entries = append(group.Entries, Entry{Date: tx.Date, Amount: tx.Amount})
	}

	outcome := &Outcome{
		Classified: deref(classified),
		Pending:    deref(pending),
	}

	if len(pending) > 0 {
		outcome.Status = StatusPartial
		outcome.Message = "Processamento parcial - há transações pendentes de classificação"
		s.logger.Info("classification partial",
			slog.Int("classified_groups", len(classified)),
			slog.Int("pending_groups", len(pending)),
		)
		return outcome, nil
	}

	outcome.Status = StatusCompleted
	outcome.Message = "Processamento concluído"
	s.logger.Info("classification completed", slog.Int("classified_groups", len(classified)))
	return outcome, nil
}

// Finalize persists the human-supplied classifications as rules and
// re-resolves every transaction against the now-current store, so that
// lines sharing a description and sign get one consistent code pair.
//
// The returned error reports rule-persistence failure only; the line
// set is always usable and export generation should proceed with it.
func (s *Service) Finalize(ctx context.Context, userID, taxID string, classified []ClassifiedGroup, pending []PendingGroup, resolutions []Resolution) ([]Line, error) {
	existing, err := s.terms.FindAllRelevant(ctx, userID, taxID)
	if err != nil {
		return nil, fmt.Errorf("failed to preload rules: %w", err)
	}

	pendingKeys := make(map[TermKey]bool, len(pending))
	for _, group := range pending {
		pendingKeys[KeyFor(group.Description, group.Sign)] = true
	}

	// Collect new or changed rules for the grouped write. Individual
	// per-line overrides never become rules.
	var toPersist []SpecialTerm
	for _, res := range resolutions {
		if res.Individual {
			continue
		}
		key := KeyFor(res.Description, res.Sign)
		if !pendingKeys[key] {
			continue
		}
		term := SpecialTerm{
			UserID:      userID,
			TaxID:       taxID,
			BankCode:    res.BankCode,
			Description: res.Description,
			Sign:        res.Sign,
			DebitCode:   res.DebitCode,
			CreditCode:  res.CreditCode,
		}
		if prev, ok := existing[key]; ok &&
			prev.DebitCode == term.DebitCode &&
			prev.CreditCode == term.CreditCode &&
			prev.BankCode == term.BankCode {
			continue
		}
		toPersist = append(toPersist, term)
	}

	var persistErr error
	if len(toPersist) > 0 {
		if persistErr = s.terms.AddOrUpdateBatch(ctx, toPersist); persistErr != nil {
			s.logger.Error("failed to persist classification rules",
				slog.Int("rules", len(toPersist)),
				slog.Any("error", persistErr),
			)
			persistErr = fmt.Errorf("rules not persisted: %w", persistErr)
		} else {
			s.logger.Info("classification rules persisted", slog.Int("rules", len(toPersist)))
		}
	}

	ruleset, err := s.terms.FindAllRelevant(ctx, userID, taxID)
	if err != nil {
		s.logger.Warn("failed to reload rules, using preloaded set", slog.Any("error", err))
		ruleset = existing
	}
	if persistErr != nil {
		// Proceed with in-memory codes for the rules that failed to save.
		for _, term := range toPersist {
			ruleset[KeyFor(term.Description, term.Sign)] = term
		}
	}

	overrides := make(map[tripleKey]Resolution)
	for _, res := range resolutions {
		if res.Individual {
			overrides[tripleOf(res.Description, res.Date, res.Amount)] = res
		}
	}

	var lines []Line
	resolve := func(line Line) Line {
		if res, ok := overrides[tripleOf(line.Description, line.Date, line.Amount)]; ok {
			line.DebitCode = res.DebitCode
			line.CreditCode = res.CreditCode
			line.BankCode = res.BankCode
			return line
		}
		if rule, ok := ruleset[KeyFor(line.Description, line.Sign)]; ok {
			line.DebitCode = rule.DebitCode
			line.CreditCode = rule.CreditCode
			line.BankCode = rule.BankCode
			return line
		}
		return line // raw per-line codes
	}

	for _, group := range classified {
		for _, line := range group.Lines {
			lines = append(lines, resolve(line))
		}
	}
	for _, group := range pending {
		for _, entry := range group.Entries {
			lines = append(lines, resolve(Line{
				Date:        entry.Date,
				Amount:      entry.Amount,
				Description: group.Description,
				Sign:        group.Sign,
			}))
		}
	}

	return lines, persistErr
}

type tripleKey struct {
	description string
	date        string
	amount      string
}

func tripleOf(description, date string, amount decimal.Decimal) tripleKey {
	return tripleKey{
		description: KeyFor(description, "").Description,
		date:        date,
		amount:      amount.StringFixed(2),
	}
}

func appendDistinct(codes []int, code int) []int {
	if code == 0 || slices.Contains(codes, code) {
		return codes
	}
	return append(codes, code)
}

func ruleDescriptions(rules map[TermKey]SpecialTerm) []string {
	var descs []string
	for _, rule := range rules {
		if !slices.Contains(descs, rule.Description) {
			descs = append(descs, rule.Description)
		}
	}
	slices.Sort(descs)
	return descs
}

func deref[T any](groups []*T) []T {
	out := make([]T, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	return out
}
