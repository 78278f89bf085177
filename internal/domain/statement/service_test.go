package statement

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaflux/contaflux/internal/domain/classification"
	"github.com/contaflux/contaflux/internal/domain/statement/parser"
	"github.com/contaflux/contaflux/pkg/storage"
)

type memTermRepo struct {
	terms map[classification.TermKey]classification.SpecialTerm
	codes []int
}

func newMemTermRepo() *memTermRepo {
	return &memTermRepo{terms: make(map[classification.TermKey]classification.SpecialTerm)}
}

func (r *memTermRepo) Find(_ context.Context, _, _ string, _ int, description, sign string) (*classification.SpecialTerm, error) {
	if term, ok := r.terms[classification.KeyFor(description, sign)]; ok {
		return &term, nil
	}
	return nil, nil
}

func (r *memTermRepo) FindAllRelevant(_ context.Context, _, _ string) (map[classification.TermKey]classification.SpecialTerm, error) {
	out := make(map[classification.TermKey]classification.SpecialTerm, len(r.terms))
	for k, v := range r.terms {
		out[k] = v
	}
	return out, nil
}

func (r *memTermRepo) AddOrUpdateBatch(_ context.Context, terms []classification.SpecialTerm) error {
	for _, term := range terms {
		r.terms[classification.KeyFor(term.Description, term.Sign)] = term
	}
	return nil
}

func (r *memTermRepo) DistinctBankCodes(_ context.Context, _, _ string, hinted int) ([]int, error) {
	codes := append([]int(nil), r.codes...)
	if hinted != 0 {
		codes = append(codes, hinted)
	}
	return codes, nil
}

const sampleOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
CHARSET:1252

<OFX>
<BANKACCTFROM>
<BANKID>0341
<ACCTID>12345-6
</BANKACCTFROM>
<BANKTRANLIST>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240315120000[-3:GMT]
<TRNAMT>-150.00
<MEMO>PAGAMENTO FORNECEDOR QTD 3
</STMTTRN>
</BANKTRANLIST>
</OFX>
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, repo classification.TermRepository) (*Service, string) {
	t.Helper()
	outputDir := t.TempDir()
	workspace := storage.NewWorkspace(outputDir, t.TempDir(), testLogger())
	svc := NewService(
		parser.New(testLogger()),
		classification.NewService(repo, testLogger()),
		workspace,
		nil,
		testLogger(),
	)
	return svc, outputDir
}

func writeStatement(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "extrato.ofx")
	require.NoError(t, os.WriteFile(path, []byte(sampleOFX), 0644))
	return path
}

func TestProcess(t *testing.T) {
	t.Run("fully classified statement writes the export", func(t *testing.T) {
		repo := newMemTermRepo()
		repo.terms[classification.KeyFor("PAGAMENTO FORNECEDOR", classification.SignNegative)] = classification.SpecialTerm{
			UserID:      "user-1",
			TaxID:       "12345678000190",
			BankCode:    341,
			Description: "PAGAMENTO FORNECEDOR",
			Sign:        classification.SignNegative,
			DebitCode:   412,
			CreditCode:  5,
		}
		svc, outputDir := newTestService(t, repo)

		outcome, err := svc.Process(context.Background(), writeStatement(t), "user-1", "12345678000190", "")
		require.NoError(t, err)

		assert.Equal(t, classification.StatusCompleted, outcome.Status)
		assert.Empty(t, outcome.Pending)
		require.Equal(t, filepath.Join(outputDir, "EXTRATO.csv"), outcome.OutputPath)

		data, err := os.ReadFile(outcome.OutputPath)
		require.NoError(t, err)
		assert.Equal(t, "15/03/2024;412,00;5,00;150,00;PAGAMENTO FORNECEDOR;\n", string(data))
	})

	t.Run("unknown description defers without writing a file", func(t *testing.T) {
		svc, outputDir := newTestService(t, newMemTermRepo())

		outcome, err := svc.Process(context.Background(), writeStatement(t), "user-1", "12345678000190", "")
		require.NoError(t, err)

		assert.Equal(t, classification.StatusPartial, outcome.Status)
		require.Len(t, outcome.Pending, 1)
		group := outcome.Pending[0]
		assert.Equal(t, "PAGAMENTO FORNECEDOR", group.Description)
		assert.Equal(t, classification.SignNegative, group.Sign)
		// the statement's own bank code is offered as a candidate
		assert.Contains(t, group.CandidateBankCodes, 341)
		assert.Empty(t, outcome.OutputPath)

		_, statErr := os.Stat(filepath.Join(outputDir, "EXTRATO.csv"))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("unreadable file is fatal", func(t *testing.T) {
		svc, _ := newTestService(t, newMemTermRepo())
		_, err := svc.Process(context.Background(), "/nonexistent/extrato.ofx", "user-1", "", "")
		assert.Error(t, err)
	})
}

func TestFinalize(t *testing.T) {
	repo := newMemTermRepo()
	svc, outputDir := newTestService(t, repo)

	outcome, err := svc.Process(context.Background(), writeStatement(t), "user-1", "12345678000190", "")
	require.NoError(t, err)
	require.Equal(t, classification.StatusPartial, outcome.Status)

	final, err := svc.Finalize(context.Background(), "user-1", "12345678000190",
		outcome.Classified, outcome.Pending,
		[]classification.Resolution{{
			Description: "PAGAMENTO FORNECEDOR",
			Sign:        classification.SignNegative,
			DebitCode:   412,
			CreditCode:  5,
			BankCode:    341,
		}})
	require.NoError(t, err)

	assert.Equal(t, classification.StatusCompleted, final.Status)
	assert.Equal(t, filepath.Join(outputDir, "EXTRATO.csv"), final.OutputPath)

	data, err := os.ReadFile(final.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "15/03/2024;412,00;5,00;150,00;PAGAMENTO FORNECEDOR;\n", string(data))

	// the resolution became a persisted rule
	rule, err := repo.Find(context.Background(), "user-1", "12345678000190", 341, "PAGAMENTO FORNECEDOR", classification.SignNegative)
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, 412, rule.DebitCode)
}
