package parser

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const sampleOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<BANKMSGSRSV1>
<STMTTRNRS>
<STMTRS>
<BANKACCTFROM>
<BANKID>0341
<ACCTID>12345-6
</BANKACCTFROM>
<BANKTRANLIST>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240315120000[-3:GMT]
<TRNAMT>-150.00
<FITID>202403150001
<MEMO>PAGAMENTO FORNECEDOR QTD 3
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240316
<TRNAMT>2500.50
<FITID>202403160001
<MEMO>TED RECEBIDA CLIENTE
</STMTTRN>
</BANKTRANLIST>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestParser_Parse(t *testing.T) {
	p := New(testLogger())

	txs, err := p.Parse(sampleOFX)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	first := txs[0]
	assert.Equal(t, "15/03/2024", first.Date)
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("-150.00")))
	assert.Equal(t, "PAGAMENTO FORNECEDOR", first.Description)
	assert.Equal(t, "0341", first.BankCode)
	assert.Equal(t, "NEGATIVO", first.Sign())

	second := txs[1]
	assert.Equal(t, "16/03/2024", second.Date)
	assert.True(t, second.Amount.Equal(decimal.RequireFromString("2500.50")))
	assert.Equal(t, "TED RECEBIDA CLIENTE", second.Description)
	assert.Equal(t, "POSITIVO", second.Sign())
}

func TestParser_MatchedCloseTags(t *testing.T) {
	p := New(testLogger())

	txs, err := p.Parse(`<STMTTRN>
<DTPOSTED>20231201</DTPOSTED>
<TRNAMT>10.00</TRNAMT>
<MEMO>PIX RECEBIDO</MEMO>
</STMTTRN>`)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "01/12/2023", txs[0].Date)
	assert.Equal(t, "PIX RECEBIDO", txs[0].Description)
}

func TestParser_BadFieldsAreSkippedNotFatal(t *testing.T) {
	p := New(testLogger())

	txs, err := p.Parse(`<STMTTRN>
<DTPOSTED>garbage
<TRNAMT>not-a-number
<MEMO>SAQUE
</STMTTRN>`)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Empty(t, txs[0].Date)
	assert.True(t, txs[0].Amount.IsZero())
	assert.Equal(t, "SAQUE", txs[0].Description)
}

func TestParser_NoTransactions(t *testing.T) {
	p := New(testLogger())

	txs, err := p.Parse("OFXHEADER:100\n<OFX>\n</OFX>")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestStripQuantitySuffix(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"with suffix", "PAGAMENTO FORNECEDOR QTD 3", "PAGAMENTO FORNECEDOR"},
		{"multi digit", "TARIFA BANCARIA QTD 12", "TARIFA BANCARIA"},
		{"no suffix", "TED RECEBIDA", "TED RECEBIDA"},
		{"qtd mid-text stays", "QTD 3 ESTORNO", "QTD 3 ESTORNO"},
		{"qtd without number stays", "PAGAMENTO QTD", "PAGAMENTO QTD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripQuantitySuffix(tt.in))
		})
	}
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"with time and tz", "20240315120000[-3:GMT]", "15/03/2024", false},
		{"date only", "20240316", "16/03/2024", false},
		{"too short", "2024", "", true},
		{"non numeric", "abcdefgh", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode(t *testing.T) {
	t.Run("valid utf8 passes through", func(t *testing.T) {
		assert.Equal(t, "TRANSFERÊNCIA", Decode([]byte("TRANSFERÊNCIA")))
	})

	t.Run("latin1 fallback", func(t *testing.T) {
		// "TRANSFERÊNCIA" with Ê as a single Latin-1 byte
		raw := []byte("TRANSFER\xcaNCIA")
		assert.Equal(t, "TRANSFERÊNCIA", Decode(raw))
	})

	t.Run("declared windows-1252", func(t *testing.T) {
		raw := []byte("CHARSET:1252\nSALDO DISPON\xcdVEL")
		assert.Contains(t, Decode(raw), "SALDO DISPONÍVEL")
	})
}
