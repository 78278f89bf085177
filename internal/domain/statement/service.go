// Package statement processes OFX bank statements: parse, classify
// against the user's rule store, and export what resolved.
package statement

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/contaflux/contaflux/internal/domain/classification"
	"github.com/contaflux/contaflux/internal/domain/export"
	"github.com/contaflux/contaflux/internal/domain/statement/parser"
	"github.com/contaflux/contaflux/pkg/notify"
	"github.com/contaflux/contaflux/pkg/storage"
)

// Service runs the statement pipeline end to end for one upload.
type Service struct {
	parser     *parser.Parser
	classifier *classification.Service
	workspace  *storage.Workspace
	notifier   *notify.Notifier
	logger     *slog.Logger
}

func NewService(p *parser.Parser, classifier *classification.Service, workspace *storage.Workspace, notifier *notify.Notifier, logger *slog.Logger) *Service {
	return &Service{
		parser:     p,
		classifier: classifier,
		workspace:  workspace,
		notifier:   notifier,
		logger:     logger,
	}
}

// Process reads the OFX file, classifies its transactions and, when
// everything resolved, writes the export. A partial outcome carries the
// pending groups back for human review and produces no file.
func (s *Service) Process(ctx context.Context, filePath, userID, taxID, reviewEmail string) (*classification.Outcome, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read statement: %w", err)
	}

	txs, err := s.parser.Parse(parser.Decode(data))
	if err != nil {
		return nil, fmt.Errorf("parse statement: %w", err)
	}

	outcome, err := s.classifier.Classify(ctx, userID, taxID, bankCodeHint(txs), toTransactions(txs))
	if err != nil {
		return nil, err
	}

	if outcome.Status == classification.StatusPartial {
		s.notifyPendingReview(reviewEmail, filepath.Base(filePath), outcome.Pending)
		return outcome, nil
	}

	outputPath, err := s.writeExport(classifiedLines(outcome.Classified))
	if err != nil {
		return nil, err
	}
	outcome.OutputPath = outputPath
	return outcome, nil
}

// Finalize folds the human-supplied resolutions back into the rule
// store and writes the export from the re-resolved line set.
//
// A rule-persistence failure comes back as a non-nil error alongside a
// usable outcome; the export is still written with in-memory codes.
func (s *Service) Finalize(ctx context.Context, userID, taxID string, classified []classification.ClassifiedGroup, pending []classification.PendingGroup, resolutions []classification.Resolution) (*classification.Outcome, error) {
	lines, persistErr := s.classifier.Finalize(ctx, userID, taxID, classified, pending, resolutions)
	if lines == nil && persistErr != nil {
		return nil, persistErr
	}

	outputPath, err := s.writeExport(lines)
	if err != nil {
		return nil, err
	}

	return &classification.Outcome{
		Status:     classification.StatusCompleted,
		Message:    "Processamento concluído",
		Classified: classified,
		OutputPath: outputPath,
	}, persistErr
}

func (s *Service) writeExport(lines []classification.Line) (string, error) {
	outputPath, err := s.workspace.OutputPath(export.StatementFileName)
	if err != nil {
		return "", err
	}
	rows := export.BuildRows(lineItems(lines))
	if err := export.WriteCSV(rows, outputPath); err != nil {
		return "", err
	}
	s.logger.Info("statement export written",
		slog.String("output", outputPath),
		slog.Int("rows", len(rows)))
	return outputPath, nil
}

func (s *Service) notifyPendingReview(email, fileName string, pending []classification.PendingGroup) {
	if s.notifier == nil || email == "" {
		return
	}
	items := make([]notify.PendingItem, 0, len(pending))
	for _, group := range pending {
		total := decimal.Zero
		for _, entry := range group.Entries {
			total = total.Add(entry.Amount)
		}
		items = append(items, notify.PendingItem{Description: group.Description, Total: total})
	}
	if err := s.notifier.PendingReview(email, fileName, items); err != nil {
		s.logger.Warn("pending review notification failed", slog.Any("error", err))
	}
}

func toTransactions(txs []parser.BankTransaction) []classification.Transaction {
	out := make([]classification.Transaction, len(txs))
	for i, tx := range txs {
		out[i] = classification.Transaction{
			Date:        tx.Date,
			Amount:      tx.Amount,
			Description: tx.Description,
		}
	}
	return out
}

// bankCodeHint picks the statement's own bank code so it lands among
// the candidate codes offered for pending groups.
func bankCodeHint(txs []parser.BankTransaction) int {
	for _, tx := range txs {
		code := strings.TrimSpace(tx.BankCode)
		if code == "" {
			continue
		}
		if n, err := strconv.Atoi(code); err == nil && n != 0 {
			return n
		}
	}
	return 0
}

func lineItems(lines []classification.Line) []export.LineItem {
	items := make([]export.LineItem, len(lines))
	for i, line := range lines {
		items[i] = export.LineItem{
			Date:        line.Date,
			DebitCode:   line.DebitCode,
			CreditCode:  line.CreditCode,
			Amount:      line.Amount,
			Description: line.Description,
			BankCode:    line.BankCode,
		}
	}
	return items
}

func classifiedLines(groups []classification.ClassifiedGroup) []classification.Line {
	var lines []classification.Line
	for _, group := range groups {
		lines = append(lines, group.Lines...)
	}
	return lines
}
