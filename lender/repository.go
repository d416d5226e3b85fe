package lender

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested lender does not exist.
var ErrNotFound = errors.New("lender: not found")

// Repository provides read access to the lender catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed catalog store.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const lenderColumns = `
	id, name, category,
	max_ltv_residential, max_ltv_buy_to_let,
	min_income_residential, min_income_buy_to_let,
	self_employed_accepted, min_trading_years,
	max_age_at_term_end, max_loan_at_max_ltv,
	fast_processing, active, created_at, updated_at
`

// ListActive fetches every active lender, optionally filtered by catalog
// category, ordered by name.
func (r *Repository) ListActive(ctx context.Context, category string) ([]Lender, error) {
	query := `SELECT ` + lenderColumns + ` FROM lenders WHERE active = TRUE`
	args := []any{}
	if category != "" {
		query += ` AND category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lender: list active: %w", err)
	}
	defer rows.Close()

	lenders := make([]Lender, 0, 16)
	for rows.Next() {
		l, err := scanLender(rows)
		if err != nil {
			return nil, fmt.Errorf("lender: scan: %w", err)
		}
		lenders = append(lenders, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lender: iterate: %w", err)
	}
	return lenders, nil
}

// GetByID fetches a single lender row.
func (r *Repository) GetByID(ctx context.Context, id string) (Lender, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+lenderColumns+` FROM lenders WHERE id = $1`, id)
	l, err := scanLender(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lender{}, ErrNotFound
		}
		return Lender{}, fmt.Errorf("lender: get by id: %w", err)
	}
	return l, nil
}

func scanLender(row pgx.Row) (Lender, error) {
	var l Lender
	err := row.Scan(
		&l.ID, &l.Name, &l.Category,
		&l.MaxLTVResidential, &l.MaxLTVBuyToLet,
		&l.MinIncomeResidential, &l.MinIncomeBuyToLet,
		&l.SelfEmployedAccepted, &l.MinTradingYears,
		&l.MaxAgeAtTermEnd, &l.MaxLoanAtMaxLTV,
		&l.FastProcessing, &l.Active, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}
