package classification

import (
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repositories need. pgxmock pools
// satisfy it too.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// TermRepository persists bank-transaction classification rules.
type TermRepository interface {
	// Find returns the rule for the exact scope, nil when absent.
	// A bankCode of 0 matches any bank.
	Find(ctx context.Context, userID, taxID string, bankCode int, description, sign string) (*SpecialTerm, error)

	// FindAllRelevant preloads every rule in the (user, taxId) scope,
	// keyed by lowercased description and sign.
	FindAllRelevant(ctx context.Context, userID, taxID string) (map[TermKey]SpecialTerm, error)

	// AddOrUpdateBatch upserts rules as one grouped write.
	AddOrUpdateBatch(ctx context.Context, terms []SpecialTerm) error

	// DistinctBankCodes lists the bank codes previously seen for the
	// counterparty. A non-zero hint is included even if never persisted.
	DistinctBankCodes(ctx context.Context, userID, taxID string, hinted int) ([]int, error)
}

// TaxRuleRepository lists receipt-mode tax rules.
type TaxRuleRepository interface {
	ListWithCodes(ctx context.Context, userID string) ([]TaxRule, error)
}

// PostgresTermRepository implements TermRepository on pgx.
type PostgresTermRepository struct {
	db DB
}

func NewPostgresTermRepository(db DB) *PostgresTermRepository {
	return &PostgresTermRepository{db: db}
}

func (r *PostgresTermRepository) Find(ctx context.Context, userID, taxID string, bankCode int, description, sign string) (*SpecialTerm, error) {
	query := `
		SELECT id, user_id, tax_id, bank_code, description, sign, debit_code, credit_code
		FROM special_terms
		WHERE user_id = $1 AND tax_id = $2 AND lower(description) = lower($3) AND sign = $4
		  AND ($5 = 0 OR bank_code = $5)
	`

	var term SpecialTerm
	err := r.db.QueryRow(ctx, query, userID, taxID, description, sign, bankCode).Scan(
		&term.ID,
		&term.UserID,
		&term.TaxID,
		&term.BankCode,
		&term.Description,
		&term.Sign,
		&term.DebitCode,
		&term.CreditCode,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find special term: %w", err)
	}

	return &term, nil
}

func (r *PostgresTermRepository) FindAllRelevant(ctx context.Context, userID, taxID string) (map[TermKey]SpecialTerm, error) {
	query := `
		SELECT id, user_id, tax_id, bank_code, description, sign, debit_code, credit_code
		FROM special_terms
		WHERE user_id = $1 AND tax_id = $2
	`

	rows, err := r.db.Query(ctx, query, userID, taxID)
	if err != nil {
		return nil, fmt.Errorf("failed to load special terms: %w", err)
	}
	defer rows.Close()

	terms := make(map[TermKey]SpecialTerm)
	for rows.Next() {
		var term SpecialTerm
		if err := rows.Scan(
			&term.ID,
			&term.UserID,
			&term.TaxID,
			&term.BankCode,
			&term.Description,
			&term.Sign,
			&term.DebitCode,
			&term.CreditCode,
		); err != nil {
			return nil, err
		}
		terms[KeyFor(term.Description, term.Sign)] = term
	}

	return terms, rows.Err()
}

func (r *PostgresTermRepository) AddOrUpdateBatch(ctx context.Context, terms []SpecialTerm) error {
	query := `
		INSERT INTO special_terms (user_id, tax_id, bank_code, description, sign, debit_code, credit_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, tax_id, lower(description), sign) DO UPDATE SET
			bank_code = EXCLUDED.bank_code,
			debit_code = EXCLUDED.debit_code,
			credit_code = EXCLUDED.credit_code,
			updated_at = now()
	`

	batch := &pgx.Batch{}
	for _, term := range terms {
		batch.Queue(query,
			term.UserID,
			term.TaxID,
			term.BankCode,
			term.Description,
			term.Sign,
			term.DebitCode,
			term.CreditCode,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for _, term := range terms {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert rule %q: %w", term.Description, err)
		}
	}
	return nil
}

func (r *PostgresTermRepository) DistinctBankCodes(ctx context.Context, userID, taxID string, hinted int) ([]int, error) {
	query := `
		SELECT DISTINCT bank_code
		FROM special_terms
		WHERE user_id = $1 AND tax_id = $2 AND bank_code <> 0
		ORDER BY bank_code
	`

	rows, err := r.db.Query(ctx, query, userID, taxID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bank codes: %w", err)
	}
	defer rows.Close()

	var codes []int
	for rows.Next() {
		var code int
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if hinted != 0 && !slices.Contains(codes, hinted) {
		codes = append(codes, hinted)
	}
	return codes, nil
}

// PostgresTaxRuleRepository implements TaxRuleRepository on pgx.
type PostgresTaxRuleRepository struct {
	db DB
}

func NewPostgresTaxRuleRepository(db DB) *PostgresTaxRuleRepository {
	return &PostgresTaxRuleRepository{db: db}
}

func (r *PostgresTaxRuleRepository) ListWithCodes(ctx context.Context, userID string) ([]TaxRule, error) {
	query := `
		SELECT id, user_id, description, debit_code, credit_code, position
		FROM tax_rules
		WHERE user_id = $1
		ORDER BY position, created_at
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tax rules: %w", err)
	}
	defer rows.Close()

	var rules []TaxRule
	for rows.Next() {
		var rule TaxRule
		if err := rows.Scan(
			&rule.ID,
			&rule.UserID,
			&rule.Name,
			&rule.DebitCode,
			&rule.CreditCode,
			&rule.Position,
		); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}
