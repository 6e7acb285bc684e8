package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	apperrors "github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/models"
	"github.com/paper-trader/internal/types"
	"github.com/shopspring/decimal"
)

// TransactionRepository reads the append-only trade history. Writes happen
// only inside a ledger trade, never through this repository.
type TransactionRepository struct {
	db *PostgresDB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *PostgresDB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// ListByPortfolio returns fills for a portfolio, newest first.
func (r *TransactionRepository) ListByPortfolio(ctx context.Context, portfolioID string, limit int) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, portfolio_id, symbol, side, quantity::text, price_per_share::text, total_amount::text, executed_at
		FROM transactions
		WHERE portfolio_id = $1
		ORDER BY executed_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, portfolioID, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list transactions", err)
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseError("scan transaction", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("iterate transactions", err)
	}

	return txns, nil
}

// CountBySide returns how many fills of one side a portfolio has.
func (r *TransactionRepository) CountBySide(ctx context.Context, portfolioID string, side types.TradeSide) (int64, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE portfolio_id = $1 AND side = $2`

	var count int64
	if err := r.db.Pool().QueryRow(ctx, query, portfolioID, string(side)).Scan(&count); err != nil {
		return 0, apperrors.NewDatabaseError("count transactions", err)
	}

	return count, nil
}

// NetQuantity sums signed fill quantities for one symbol: buys add, sells
// subtract. The consistency checker compares this against the live position.
func (r *TransactionRepository) NetQuantity(ctx context.Context, portfolioID, symbol string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN side = 'buy' THEN quantity ELSE -quantity END), 0)::text
		FROM transactions
		WHERE portfolio_id = $1 AND symbol = $2
	`

	var raw string
	if err := r.db.Pool().QueryRow(ctx, query, portfolioID, symbol).Scan(&raw); err != nil {
		return decimal.Zero, apperrors.NewDatabaseError("sum transaction quantities", err)
	}

	net, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperrors.NewDatabaseError("parse net quantity", err)
	}

	return net, nil
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var (
		t                      models.Transaction
		side                   string
		quantity, price, total string
	)

	err := row.Scan(&t.ID, &t.PortfolioID, &t.Symbol, &side, &quantity, &price, &total, &t.ExecutedAt)
	if err != nil {
		return nil, err
	}

	t.Side = types.TradeSide(side)
	if t.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, err
	}
	if t.PricePerShare, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	if t.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}

	return &t, nil
}
