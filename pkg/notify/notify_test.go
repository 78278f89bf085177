package notify

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingReviewHTML(t *testing.T) {
	html := pendingReviewHTML("extrato.ofx", []PendingItem{
		{Description: "PAGAMENTO FORNECEDOR", Total: decimal.NewFromFloat(-1234.56)},
		{Description: "TARIFA BANCARIA", Total: decimal.NewFromFloat(-9.90)},
	})

	assert.Contains(t, html, "extrato.ofx")
	assert.Contains(t, html, "2 descrições")
	assert.Contains(t, html, "PAGAMENTO FORNECEDOR (-R$1.234,56)")
	assert.Contains(t, html, "TARIFA BANCARIA (-R$9,90)")
}

func TestPendingReview_NoClientSkips(t *testing.T) {
	n := New("", "", slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := n.PendingReview("op@example.com", "extrato.ofx", []PendingItem{
		{Description: "PAGAMENTO FORNECEDOR", Total: decimal.NewFromInt(-150)},
	})
	require.NoError(t, err)
}
