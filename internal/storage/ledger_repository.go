package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/models"
	"github.com/shopspring/decimal"
)

// Postgres error code for lock_timeout expiry.
const pgLockNotAvailable = "55P03"

// Ledger is the view of one locked portfolio inside a trade. All reads and
// writes go through the same database transaction; nothing is visible to
// other trades until Trade commits.
type Ledger interface {
	// Portfolio returns the locked portfolio row as read at lock time.
	Portfolio() *models.Portfolio
	// Holding returns the position for a symbol, or nil when absent.
	Holding(ctx context.Context, symbol string) (*models.Holding, error)
	// SetCash replaces the portfolio's cash balance.
	SetCash(ctx context.Context, balance decimal.Decimal) error
	// UpsertHolding creates or replaces a position. Quantity must be > 0.
	UpsertHolding(ctx context.Context, h *models.Holding) error
	// DeleteHolding removes a position entirely.
	DeleteHolding(ctx context.Context, symbol string) error
	// AppendTransaction records an immutable trade fill.
	AppendTransaction(ctx context.Context, t *models.Transaction) error
}

// TradeFunc runs inside a portfolio's critical section. Returning an error
// rolls back every mutation made through the Ledger.
type TradeFunc func(ctx context.Context, led Ledger) error

// LedgerRepository serializes trades per portfolio using a row-level lock on
// the portfolio row. Trades on different portfolios do not contend.
type LedgerRepository struct {
	db          *PostgresDB
	lockTimeout time.Duration
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *PostgresDB, lockTimeout time.Duration) *LedgerRepository {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &LedgerRepository{db: db, lockTimeout: lockTimeout}
}

// Trade executes fn atomically against one portfolio. The portfolio row is
// locked with SELECT ... FOR UPDATE so concurrent trades on the same
// portfolio serialize; a lock wait beyond the configured timeout surfaces as
// a retryable LOCK_TIMEOUT error rather than a hang.
func (r *LedgerRepository) Trade(ctx context.Context, portfolioID string, fn TradeFunc) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return apperrors.NewDatabaseError("begin trade", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	// lock_timeout cannot be bound as a parameter; the value comes from
	// config, not user input.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
		return apperrors.NewDatabaseError("set lock timeout", err)
	}

	portfolio, err := lockPortfolio(ctx, tx, portfolioID)
	if err != nil {
		return err
	}

	led := &pgLedger{tx: tx, portfolio: portfolio}
	if err := fn(ctx, led); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewDatabaseError("commit trade", err)
	}

	return nil
}

func lockPortfolio(ctx context.Context, tx pgx.Tx, portfolioID string) (*models.Portfolio, error) {
	query := `
		SELECT id, user_id, cash_balance::text, created_at, updated_at
		FROM portfolios
		WHERE id = $1
		FOR UPDATE
	`

	p, err := scanPortfolio(tx.QueryRow(ctx, query, portfolioID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewPortfolioNotFoundError(portfolioID)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
			return nil, apperrors.NewLockTimeoutError(portfolioID)
		}
		return nil, apperrors.NewDatabaseError("lock portfolio", err)
	}

	return p, nil
}

// pgLedger implements Ledger on top of one open pgx transaction.
type pgLedger struct {
	tx        pgx.Tx
	portfolio *models.Portfolio
}

func (l *pgLedger) Portfolio() *models.Portfolio {
	return l.portfolio
}

func (l *pgLedger) Holding(ctx context.Context, symbol string) (*models.Holding, error) {
	query := `
		SELECT ` + holdingColumns + `
		FROM holdings
		WHERE portfolio_id = $1 AND symbol = $2
	`

	h, err := scanHolding(l.tx.QueryRow(ctx, query, l.portfolio.ID, symbol))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewDatabaseError("get holding", err)
	}

	return h, nil
}

func (l *pgLedger) SetCash(ctx context.Context, balance decimal.Decimal) error {
	query := `
		UPDATE portfolios
		SET cash_balance = $1, updated_at = $2
		WHERE id = $3
	`

	if _, err := l.tx.Exec(ctx, query, balance.String(), time.Now(), l.portfolio.ID); err != nil {
		return apperrors.NewDatabaseError("update cash balance", err)
	}

	l.portfolio.CashBalance = balance
	return nil
}

func (l *pgLedger) UpsertHolding(ctx context.Context, h *models.Holding) error {
	if !h.Quantity.IsPositive() {
		return apperrors.NewInternalError("refusing to persist non-positive holding quantity", nil)
	}

	h.PortfolioID = l.portfolio.ID
	h.UpdatedAt = time.Now()

	var current *string
	if h.CurrentPrice != nil {
		s := h.CurrentPrice.String()
		current = &s
	}

	query := `
		INSERT INTO holdings (portfolio_id, symbol, quantity, avg_buy_price, current_price, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (portfolio_id, symbol) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			avg_buy_price = EXCLUDED.avg_buy_price,
			current_price = EXCLUDED.current_price,
			updated_at = EXCLUDED.updated_at
	`

	_, err := l.tx.Exec(ctx, query,
		h.PortfolioID,
		h.Symbol,
		h.Quantity.String(),
		h.AvgBuyPrice.String(),
		current,
		h.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewDatabaseError("upsert holding", err)
	}

	return nil
}

func (l *pgLedger) DeleteHolding(ctx context.Context, symbol string) error {
	query := `DELETE FROM holdings WHERE portfolio_id = $1 AND symbol = $2`

	if _, err := l.tx.Exec(ctx, query, l.portfolio.ID, symbol); err != nil {
		return apperrors.NewDatabaseError("delete holding", err)
	}

	return nil
}

func (l *pgLedger) AppendTransaction(ctx context.Context, t *models.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.PortfolioID = l.portfolio.ID
	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = time.Now()
	}

	query := `
		INSERT INTO transactions (id, portfolio_id, symbol, side, quantity, price_per_share, total_amount, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := l.tx.Exec(ctx, query,
		t.ID,
		t.PortfolioID,
		t.Symbol,
		string(t.Side),
		t.Quantity.String(),
		t.PricePerShare.String(),
		t.TotalAmount.String(),
		t.ExecutedAt,
	)
	if err != nil {
		return apperrors.NewDatabaseError("append transaction", err)
	}

	return nil
}
