package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	apperrors "github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/models"
	"github.com/shopspring/decimal"
)

// PortfolioRepository handles portfolio and holding persistence. Numeric
// columns cross the boundary as text and are mapped explicitly to
// decimal.Decimal; no generic row mapping.
type PortfolioRepository struct {
	db *PostgresDB
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db *PostgresDB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// CreateWithTx creates a portfolio within an existing transaction (used at
// signup so the user row and the funded portfolio commit together).
func (r *PortfolioRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, portfolio *models.Portfolio) error {
	if portfolio.ID == "" {
		portfolio.ID = uuid.New().String()
	}

	now := time.Now()
	portfolio.CreatedAt = now
	portfolio.UpdatedAt = now

	query := `
		INSERT INTO portfolios (id, user_id, cash_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := tx.Exec(ctx, query,
		portfolio.ID,
		portfolio.UserID,
		portfolio.CashBalance.String(),
		portfolio.CreatedAt,
		portfolio.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}

	return nil
}

func scanPortfolio(row pgx.Row) (*models.Portfolio, error) {
	var (
		p    models.Portfolio
		cash string
	)
	if err := row.Scan(&p.ID, &p.UserID, &cash, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	balance, err := decimal.NewFromString(cash)
	if err != nil {
		return nil, fmt.Errorf("invalid cash balance %q: %w", cash, err)
	}
	p.CashBalance = balance
	return &p, nil
}

// GetByID retrieves a portfolio by ID
func (r *PortfolioRepository) GetByID(ctx context.Context, id string) (*models.Portfolio, error) {
	query := `
		SELECT id, user_id, cash_balance::text, created_at, updated_at
		FROM portfolios
		WHERE id = $1
	`

	p, err := scanPortfolio(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewPortfolioNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	return p, nil
}

// GetByUser retrieves the portfolio owned by a user
func (r *PortfolioRepository) GetByUser(ctx context.Context, userID string) (*models.Portfolio, error) {
	query := `
		SELECT id, user_id, cash_balance::text, created_at, updated_at
		FROM portfolios
		WHERE user_id = $1
	`

	p, err := scanPortfolio(r.db.Pool().QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewPortfolioNotFoundError("user:" + userID)
		}
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	return p, nil
}

func scanHolding(row pgx.Row) (*models.Holding, error) {
	var (
		h        models.Holding
		quantity string
		avgPrice string
		current  *string
	)
	if err := row.Scan(&h.PortfolioID, &h.Symbol, &quantity, &avgPrice, &current, &h.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if h.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, fmt.Errorf("invalid quantity %q: %w", quantity, err)
	}
	if h.AvgBuyPrice, err = decimal.NewFromString(avgPrice); err != nil {
		return nil, fmt.Errorf("invalid avg buy price %q: %w", avgPrice, err)
	}
	if current != nil {
		price, err := decimal.NewFromString(*current)
		if err != nil {
			return nil, fmt.Errorf("invalid current price %q: %w", *current, err)
		}
		h.CurrentPrice = &price
	}
	return &h, nil
}

const holdingColumns = `portfolio_id, symbol, quantity::text, avg_buy_price::text, current_price::text, updated_at`

// ListHoldings returns all holdings of a portfolio ordered by symbol.
func (r *PortfolioRepository) ListHoldings(ctx context.Context, portfolioID string) ([]*models.Holding, error) {
	query := `
		SELECT ` + holdingColumns + `
		FROM holdings
		WHERE portfolio_id = $1
		ORDER BY symbol
	`

	rows, err := r.db.Pool().Query(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	defer rows.Close()

	var holdings []*models.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate holdings: %w", err)
	}

	return holdings, nil
}

// GetHolding returns one holding, or nil when the position is absent.
func (r *PortfolioRepository) GetHolding(ctx context.Context, portfolioID, symbol string) (*models.Holding, error) {
	query := `
		SELECT ` + holdingColumns + `
		FROM holdings
		WHERE portfolio_id = $1 AND symbol = $2
	`

	h, err := scanHolding(r.db.Pool().QueryRow(ctx, query, portfolioID, symbol))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}

	return h, nil
}

// UpdateHoldingPrice records the last-known market price on a holding. Used
// by valuation refreshes; runs outside the trade lock.
func (r *PortfolioRepository) UpdateHoldingPrice(ctx context.Context, portfolioID, symbol string, price decimal.Decimal) error {
	query := `
		UPDATE holdings
		SET current_price = $1, updated_at = $2
		WHERE portfolio_id = $3 AND symbol = $4
	`

	_, err := r.db.Pool().Exec(ctx, query, price.String(), time.Now(), portfolioID, symbol)
	if err != nil {
		return fmt.Errorf("failed to update holding price: %w", err)
	}

	return nil
}
