package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/paper-trader/internal/models"
)

// BarRepository handles daily OHLCV bar persistence in ClickHouse
type BarRepository struct {
	db *ClickHouseDB
}

// NewBarRepository creates a new bar repository
func NewBarRepository(db *ClickHouseDB) *BarRepository {
	return &BarRepository{db: db}
}

// BatchInsert inserts daily bars in a batch. Bars are insert-only; the table
// deduplicates on (symbol, date) via its ReplacingMergeTree engine.
func (r *BarRepository) BatchInsert(ctx context.Context, bars []*models.DailyBar) error {
	if len(bars) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO daily_bars (symbol, date, open, high, low, close, volume)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, bar := range bars {
		symbol, err := ValidateSymbol(bar.Symbol)
		if err != nil {
			return fmt.Errorf("invalid symbol %q: %w", bar.Symbol, err)
		}

		if err := batch.Append(
			symbol,
			bar.Date,
			bar.Open,
			bar.High,
			bar.Low,
			bar.Close,
			bar.Volume,
		); err != nil {
			return fmt.Errorf("failed to append bar %s/%s: %w", symbol, bar.Date.Format("2006-01-02"), err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	return nil
}

// GetHistory returns up to `days` most recent bars for a symbol, ascending
// by date.
func (r *BarRepository) GetHistory(ctx context.Context, symbol string, days int) ([]*models.DailyBar, error) {
	symbol, err := ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 252
	}

	query := `
		SELECT symbol, date, open, high, low, close, volume
		FROM daily_bars FINAL
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT ?
	`

	rows, err := r.db.Conn().Query(ctx, query, symbol, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query bar history: %w", err)
	}
	defer rows.Close()

	var bars []*models.DailyBar
	for rows.Next() {
		var bar models.DailyBar
		if err := rows.Scan(
			&bar.Symbol,
			&bar.Date,
			&bar.Open,
			&bar.High,
			&bar.Low,
			&bar.Close,
			&bar.Volume,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		bars = append(bars, &bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bars: %w", err)
	}

	// Query is newest-first for the LIMIT; callers want chronological order.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}

	return bars, nil
}

// GetLatestClose returns the most recent stored daily bar for a symbol, or
// nil when no history exists. It is the degraded-mode price source when the
// live quote feed is down.
func (r *BarRepository) GetLatestClose(ctx context.Context, symbol string) (*models.DailyBar, error) {
	symbol, err := ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT symbol, date, open, high, low, close, volume
		FROM daily_bars FINAL
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT 1
	`

	var bar models.DailyBar
	row := r.db.Conn().QueryRow(ctx, query, symbol)
	if err := row.Scan(&bar.Symbol, &bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read latest close for %s: %w", symbol, err)
	}

	return &bar, nil
}

// Symbols returns the distinct set of symbols with stored bars.
func (r *BarRepository) Symbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.Conn().Query(ctx, `SELECT DISTINCT symbol FROM daily_bars ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}
