package storage

import (
	"context"
	"time"

	apperrors "github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/models"
)

// WatchlistRepository persists per-user watched symbols
type WatchlistRepository struct {
	db *PostgresDB
}

// NewWatchlistRepository creates a new watchlist repository
func NewWatchlistRepository(db *PostgresDB) *WatchlistRepository {
	return &WatchlistRepository{db: db}
}

// Add inserts a symbol into a user's watchlist. Adding a symbol that is
// already present is a no-op and returns false.
func (r *WatchlistRepository) Add(ctx context.Context, userID, symbol string) (bool, error) {
	query := `
		INSERT INTO watchlist_entries (user_id, symbol, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, symbol) DO NOTHING
	`

	tag, err := r.db.Pool().Exec(ctx, query, userID, symbol, time.Now())
	if err != nil {
		return false, apperrors.NewDatabaseError("add watchlist entry", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Remove deletes a symbol from a user's watchlist and reports whether the
// entry existed.
func (r *WatchlistRepository) Remove(ctx context.Context, userID, symbol string) (bool, error) {
	query := `DELETE FROM watchlist_entries WHERE user_id = $1 AND symbol = $2`

	tag, err := r.db.Pool().Exec(ctx, query, userID, symbol)
	if err != nil {
		return false, apperrors.NewDatabaseError("remove watchlist entry", err)
	}

	return tag.RowsAffected() > 0, nil
}

// List returns a user's watchlist ordered by symbol.
func (r *WatchlistRepository) List(ctx context.Context, userID string) ([]*models.WatchlistEntry, error) {
	query := `
		SELECT user_id, symbol, added_at
		FROM watchlist_entries
		WHERE user_id = $1
		ORDER BY symbol
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list watchlist", err)
	}
	defer rows.Close()

	var entries []*models.WatchlistEntry
	for rows.Next() {
		var e models.WatchlistEntry
		if err := rows.Scan(&e.UserID, &e.Symbol, &e.AddedAt); err != nil {
			return nil, apperrors.NewDatabaseError("scan watchlist entry", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("iterate watchlist", err)
	}

	return entries, nil
}
