// Package notify sends operator email notifications through Resend.
package notify

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v2"
	"github.com/shopspring/decimal"

	"github.com/contaflux/contaflux/pkg/money"
)

// PendingItem is one unclassified description with the summed amount of
// its occurrences, as presented to the reviewer.
type PendingItem struct {
	Description string
	Total       decimal.Decimal
}

// Notifier emails the operator when a processing run leaves groups
// waiting for manual classification. A nil-client notifier is valid and
// logs instead of sending.
type Notifier struct {
	client    *resend.Client
	logger    *slog.Logger
	fromEmail string
}

func New(apiKey, fromEmail string, logger *slog.Logger) *Notifier {
	var client *resend.Client
	if apiKey != "" {
		client = resend.NewClient(apiKey)
	}
	if fromEmail == "" {
		fromEmail = "ContaFlux <noreply@contaflux.app>"
	}
	return &Notifier{client: client, logger: logger, fromEmail: fromEmail}
}

// PendingReview tells the operator which statement descriptions still
// need an account code, and how much money each one is holding up.
func (n *Notifier) PendingReview(to, fileName string, items []PendingItem) error {
	if n.client == nil {
		n.logger.Warn("resend client not configured, skipping pending review email",
			slog.String("file", fileName),
			slog.Int("pending", len(items)),
		)
		return nil
	}
	if to == "" {
		return fmt.Errorf("no recipient configured for pending review email")
	}

	_, err := n.client.Emails.Send(&resend.SendEmailRequest{
		From:    n.fromEmail,
		To:      []string{to},
		Subject: fmt.Sprintf("Classificações pendentes: %s", fileName),
		Html:    pendingReviewHTML(fileName, items),
	})
	return err
}

func pendingReviewHTML(fileName string, items []PendingItem) string {
	var list strings.Builder
	for _, item := range items {
		list.WriteString("<li>")
		list.WriteString(item.Description)
		list.WriteString(" (")
		list.WriteString(money.DisplayBRL(item.Total))
		list.WriteString(")</li>")
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body>
  <p>O arquivo <strong>%s</strong> foi processado, mas %d descrições ainda
  não possuem código de conta:</p>
  <ul>%s</ul>
  <p>Classifique os lançamentos pendentes para gerar a exportação completa.</p>
</body>
</html>
`, fileName, len(items), list.String())
}
