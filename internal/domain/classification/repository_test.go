package classification

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func termColumns() []string {
	return []string{"id", "user_id", "tax_id", "bank_code", "description", "sign", "debit_code", "credit_code"}
}

func TestPostgresTermRepository_Find(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresTermRepository(mock)
	id := uuid.New()

	mock.ExpectQuery(`SELECT id, user_id, tax_id, bank_code, description, sign, debit_code, credit_code`).
		WithArgs("u1", "11222333000144", "TARIFA BANCARIA", SignNegative, 0).
		WillReturnRows(pgxmock.NewRows(termColumns()).
			AddRow(id, "u1", "11222333000144", 341, "TARIFA BANCARIA", SignNegative, 100, 5))

	term, err := repo.Find(context.Background(), "u1", "11222333000144", 0, "TARIFA BANCARIA", SignNegative)
	require.NoError(t, err)
	require.NotNil(t, term)
	assert.Equal(t, 100, term.DebitCode)
	assert.Equal(t, 341, term.BankCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTermRepository_FindMiss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresTermRepository(mock)

	mock.ExpectQuery(`SELECT id, user_id, tax_id, bank_code, description, sign, debit_code, credit_code`).
		WithArgs("u1", "t1", "DESCONHECIDA", SignPositive, 0).
		WillReturnRows(pgxmock.NewRows(termColumns()))

	term, err := repo.Find(context.Background(), "u1", "t1", 0, "DESCONHECIDA", SignPositive)
	require.NoError(t, err)
	assert.Nil(t, term)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTermRepository_FindAllRelevant(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresTermRepository(mock)

	mock.ExpectQuery(`SELECT id, user_id, tax_id, bank_code, description, sign, debit_code, credit_code`).
		WithArgs("u1", "t1").
		WillReturnRows(pgxmock.NewRows(termColumns()).
			AddRow(uuid.New(), "u1", "t1", 341, "Tarifa Bancaria", SignNegative, 100, 5).
			AddRow(uuid.New(), "u1", "t1", 237, "TED RECEBIDA", SignPositive, 5, 300))

	terms, err := repo.FindAllRelevant(context.Background(), "u1", "t1")
	require.NoError(t, err)
	require.Len(t, terms, 2)

	// keys are lowercased for case-insensitive lookup
	term, ok := terms[KeyFor("TARIFA BANCARIA", SignNegative)]
	require.True(t, ok)
	assert.Equal(t, 100, term.DebitCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTermRepository_AddOrUpdateBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresTermRepository(mock)

	batch := mock.ExpectBatch()
	batch.ExpectExec(`INSERT INTO special_terms`).
		WithArgs("u1", "t1", 341, "PIX ENVIADO", SignNegative, 150, 5).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	batch.ExpectExec(`INSERT INTO special_terms`).
		WithArgs("u1", "t1", 237, "TED RECEBIDA", SignPositive, 5, 300).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.AddOrUpdateBatch(context.Background(), []SpecialTerm{
		{UserID: "u1", TaxID: "t1", BankCode: 341, Description: "PIX ENVIADO", Sign: SignNegative, DebitCode: 150, CreditCode: 5},
		{UserID: "u1", TaxID: "t1", BankCode: 237, Description: "TED RECEBIDA", Sign: SignPositive, DebitCode: 5, CreditCode: 300},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTermRepository_DistinctBankCodes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresTermRepository(mock)

	mock.ExpectQuery(`SELECT DISTINCT bank_code`).
		WithArgs("u1", "t1").
		WillReturnRows(pgxmock.NewRows([]string{"bank_code"}).AddRow(237).AddRow(341))

	codes, err := repo.DistinctBankCodes(context.Background(), "u1", "t1", 104)
	require.NoError(t, err)
	// the hinted code is appended even though it was never persisted
	assert.Equal(t, []int{237, 341, 104}, codes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTaxRuleRepository_ListWithCodes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresTaxRuleRepository(mock)

	mock.ExpectQuery(`SELECT id, user_id, description, debit_code, credit_code, position`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "description", "debit_code", "credit_code", "position"}).
			AddRow(uuid.New(), "u1", "SIMPLES NACIONAL", 531, 5, 0).
			AddRow(uuid.New(), "u1", "PIS", 179, 5, 1))

	rules, err := repo.ListWithCodes(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "SIMPLES NACIONAL", rules[0].Name)
	assert.Equal(t, 531, rules[0].DebitCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}
