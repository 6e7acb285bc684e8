package service

import (
	"context"

	"github.com/paper-trader/internal/logging"
	"github.com/paper-trader/internal/models"
	"github.com/paper-trader/internal/storage"
)

// WatchlistStore persists watched symbols
type WatchlistStore interface {
	Add(ctx context.Context, userID, symbol string) (bool, error)
	Remove(ctx context.Context, userID, symbol string) (bool, error)
	List(ctx context.Context, userID string) ([]*models.WatchlistEntry, error)
}

// WatchlistService manages per-user watched symbols
type WatchlistService struct {
	store  WatchlistStore
	quotes *QuoteService
}

// NewWatchlistService creates a new watchlist service
func NewWatchlistService(store WatchlistStore, quotes *QuoteService) *WatchlistService {
	return &WatchlistService{store: store, quotes: quotes}
}

// WatchlistItem is one watched symbol with its latest price when available
type WatchlistItem struct {
	Symbol string                 `json:"symbol"`
	Quote  *models.Quote          `json:"quote,omitempty"`
	Entry  *models.WatchlistEntry `json:"-"`
}

// Add puts a symbol on the user's watchlist. Re-adding an existing symbol
// succeeds without creating a duplicate.
func (s *WatchlistService) Add(ctx context.Context, userID, symbol string) (*models.WatchlistEntry, error) {
	normalized, err := storage.ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}

	created, err := s.store.Add(ctx, userID, normalized)
	if err != nil {
		return nil, err
	}
	if created {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"userId": userID,
			"symbol": normalized,
		}).Info("Watchlist symbol added")
	}

	return &models.WatchlistEntry{UserID: userID, Symbol: normalized}, nil
}

// Remove deletes a symbol from the user's watchlist and reports whether it
// was present.
func (s *WatchlistService) Remove(ctx context.Context, userID, symbol string) (bool, error) {
	normalized, err := storage.ValidateSymbol(symbol)
	if err != nil {
		return false, err
	}

	return s.store.Remove(ctx, userID, normalized)
}

// List returns the user's watched symbols with best-effort quotes attached.
// A symbol whose quote fails still appears, just without a price.
func (s *WatchlistService) List(ctx context.Context, userID string) ([]*WatchlistItem, error) {
	entries, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx)

	items := make([]*WatchlistItem, 0, len(entries))
	for _, e := range entries {
		item := &WatchlistItem{Symbol: e.Symbol, Entry: e}
		if s.quotes != nil {
			quote, err := s.quotes.GetQuote(ctx, e.Symbol)
			if err != nil {
				logger.WithError(err).WithField("symbol", e.Symbol).Debug("Watchlist quote unavailable")
			} else {
				item.Quote = quote
			}
		}
		items = append(items, item)
	}

	return items, nil
}
