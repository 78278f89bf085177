package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBuildRows(t *testing.T) {
	t.Run("bank code collapses to a single row", func(t *testing.T) {
		rows := BuildRows([]LineItem{{
			Date:        "15/03/2024",
			DebitCode:   412,
			CreditCode:  5,
			Amount:      dec("-150.00"),
			Description: "PAGAMENTO FORNECEDOR",
			BankCode:    341,
		}})

		require.Len(t, rows, 1)
		assert.Equal(t, "15/03/2024", rows[0].Date)
		assert.Equal(t, "412,00", rows[0].Debit)
		assert.Equal(t, "5,00", rows[0].Credit)
		assert.Equal(t, "150,00", rows[0].Amount)
		assert.Equal(t, "PAGAMENTO FORNECEDOR", rows[0].Description)
		assert.Empty(t, rows[0].Division)
	})

	t.Run("no bank code splits into debit and credit rows", func(t *testing.T) {
		rows := BuildRows([]LineItem{{
			Date:        "20/03/2024",
			DebitCode:   531,
			CreditCode:  5,
			Amount:      dec("1234.56"),
			Description: "PG. SIMPLES NACIONAL PARCELAMENTO XX",
		}})

		require.Len(t, rows, 2)

		debit, credit := rows[0], rows[1]
		assert.Equal(t, "531,00", debit.Debit)
		assert.Empty(t, debit.Credit)
		assert.Equal(t, "1", debit.Division)

		assert.Empty(t, credit.Debit)
		assert.Equal(t, "5,00", credit.Credit)
		assert.Empty(t, credit.Division)

		for _, row := range rows {
			assert.Equal(t, "20/03/2024", row.Date)
			assert.Equal(t, "1234,56", row.Amount)
			assert.Equal(t, "PG. SIMPLES NACIONAL PARCELAMENTO XX", row.Description)
		}
	})

	t.Run("negative amount without bank code is written absolute", func(t *testing.T) {
		rows := BuildRows([]LineItem{{
			Date:       "01/04/2024",
			DebitCode:  179,
			CreditCode: 5,
			Amount:     dec("-88.40"),
		}})

		require.Len(t, rows, 2)
		assert.Equal(t, "88,40", rows[0].Amount)
		assert.Equal(t, "88,40", rows[1].Amount)
	})

	t.Run("empty input gives no rows", func(t *testing.T) {
		assert.Empty(t, BuildRows(nil))
	})

	t.Run("code cells use the numeric cell format", func(t *testing.T) {
		rows := BuildRows([]LineItem{{
			Date:        "15/03/2024",
			DebitCode:   412,
			CreditCode:  5,
			Amount:      dec("10.00"),
			Description: "TARIFA",
			BankCode:    341,
		}})

		require.Len(t, rows, 1)
		// codes render like every other number cell, never bare integers
		assert.Equal(t, "412,00", rows[0].Debit)
		assert.Equal(t, "5,00", rows[0].Credit)
	})
}

func TestWriteCSV(t *testing.T) {
	t.Run("semicolon delimited without header", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "EXTRATO.csv")
		rows := BuildRows([]LineItem{{
			Date:        "15/03/2024",
			DebitCode:   412,
			CreditCode:  5,
			Amount:      dec("150.00"),
			Description: "PAGAMENTO FORNECEDOR",
			BankCode:    341,
		}})

		require.NoError(t, WriteCSV(rows, path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "15/03/2024;412,00;5,00;150,00;PAGAMENTO FORNECEDOR;\n", string(data))
	})

	t.Run("empty export is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "EXTRATO.csv")
		err := WriteCSV(nil, path)
		assert.ErrorIs(t, err, ErrNoRows)
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "PGTO.xlsx")
	rows := BuildRows([]LineItem{{
		Date:        "20/03/2024",
		DebitCode:   531,
		CreditCode:  5,
		Amount:      dec("1234.56"),
		Description: "PG. SIMPLES NACIONAL PARCELAMENTO XX",
	}})

	require.NoError(t, WriteXLSX(rows, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(0)
	got, err := f.GetCellValue(sheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "531,00", got)

	got, err = f.GetCellValue(sheet, "F1")
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	got, err = f.GetCellValue(sheet, "C2")
	require.NoError(t, err)
	assert.Equal(t, "5,00", got)
}

func TestReceiptFileName(t *testing.T) {
	at := time.Date(2024, 3, 20, 14, 5, 9, 0, time.UTC)
	assert.Equal(t, "PGTO_joao_20240320_140509.csv", ReceiptFileName("joao", at))
}
