package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/contaflux/contaflux/internal/domain/export"
	"github.com/contaflux/contaflux/pkg/pdftext"
	"github.com/contaflux/contaflux/pkg/storage"
)

// Result is the outcome of one receipt processing run.
type Result struct {
	Message    string
	OutputPath string
	Receipts   []Receipt
}

// Service ties PDF text extraction, the document state machine and the
// export writer together.
type Service struct {
	extractor *Extractor
	workspace *storage.Workspace
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(extractor *Extractor, workspace *storage.Workspace, logger *slog.Logger) *Service {
	return &Service{
		extractor: extractor,
		workspace: workspace,
		logger:    logger,
		now:       time.Now,
	}
}

// Process extracts every collection document from the PDF at filePath
// and writes the bookkeeping export. Entries whose aggregated amount is
// zero are dropped. format selects the output flavor: "xlsx" writes a
// spreadsheet, anything else the semicolon CSV.
func (s *Service) Process(ctx context.Context, filePath, userID, format string) (*Result, error) {
	s.logger.Info("processing receipt pdf",
		slog.String("file", filePath),
		slog.String("user_id", userID))

	lines, err := pdftext.Lines(filePath)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	receipts, err := s.extractor.Extract(ctx, lines, userID)
	if err != nil {
		return nil, fmt.Errorf("extract receipts: %w", err)
	}

	rows := export.BuildRows(exportItems(receipts))

	name := export.ReceiptFileName(userID, s.now())
	write := export.WriteCSV
	if format == "xlsx" {
		name = strings.TrimSuffix(name, ".csv") + ".xlsx"
		write = export.WriteXLSX
	}

	outputPath, err := s.workspace.OutputPath(name)
	if err != nil {
		return nil, err
	}
	if err := write(rows, outputPath); err != nil {
		return nil, err
	}

	s.logger.Info("receipt export written",
		slog.String("output", outputPath),
		slog.Int("documents", len(receipts)),
		slog.Int("rows", len(rows)))

	return &Result{
		Message:    "Processamento concluído",
		OutputPath: outputPath,
		Receipts:   receipts,
	}, nil
}

// exportItems flattens receipts into export line items, skipping
// zero-amount entries and any entry missing a parallel code slot.
func exportItems(receipts []Receipt) []export.LineItem {
	var items []export.LineItem
	for _, r := range receipts {
		for i, desc := range r.Descriptions {
			if i >= len(r.Totals) || i >= len(r.DebitCodes) || i >= len(r.CreditCodes) {
				continue
			}
			if r.Totals[i].IsZero() {
				continue
			}
			items = append(items, export.LineItem{
				Date:        r.CollectionDate,
				DebitCode:   r.DebitCodes[i],
				CreditCode:  r.CreditCodes[i],
				Amount:      r.Totals[i],
				Description: desc,
			})
		}
	}
	return items
}
