package service

import (
	"context"
	"time"

	apperrors "github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/logging"
	"github.com/paper-trader/internal/models"
	"github.com/paper-trader/internal/storage"
	"github.com/shopspring/decimal"
)

// QuoteFetcher fetches live prices from the market data vendor
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// QuoteCache caches live quotes with a short TTL
type QuoteCache interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	SetQuote(ctx context.Context, quote *models.Quote) error
}

// BarStore reads and writes daily OHLCV history
type BarStore interface {
	GetHistory(ctx context.Context, symbol string, days int) ([]*models.DailyBar, error)
	GetLatestClose(ctx context.Context, symbol string) (*models.DailyBar, error)
	BatchInsert(ctx context.Context, bars []*models.DailyBar) error
}

// HoldingPriceWriter marks stored positions with their latest price
type HoldingPriceWriter interface {
	UpdateHoldingPrice(ctx context.Context, portfolioID, symbol string, price decimal.Decimal) error
}

// QuoteService serves prices with three tiers of freshness: Redis cache
// first, then the live vendor, then the last stored daily close marked
// stale when the vendor is down.
type QuoteService struct {
	fetcher QuoteFetcher
	cache   QuoteCache
	bars    BarStore
	prices  HoldingPriceWriter
}

// NewQuoteService creates a new quote service
func NewQuoteService(fetcher QuoteFetcher, cache QuoteCache, bars BarStore, prices HoldingPriceWriter) *QuoteService {
	return &QuoteService{
		fetcher: fetcher,
		cache:   cache,
		bars:    bars,
		prices:  prices,
	}
}

// GetQuote returns the best available price for a symbol. A quote served
// from stored history instead of the live feed carries Stale=true so
// callers can surface degraded data.
func (s *QuoteService) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol, err := storage.ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx).WithField("symbol", symbol)

	cached, err := s.cache.GetQuote(ctx, symbol)
	if err != nil {
		// Cache trouble is not a reason to fail a quote lookup.
		logger.WithError(err).Warn("Quote cache read failed")
	}
	if cached != nil {
		return cached, nil
	}

	quote, fetchErr := s.fetcher.FetchQuote(ctx, symbol)
	if fetchErr == nil {
		quote.Symbol = symbol
		if err := s.cache.SetQuote(ctx, quote); err != nil {
			logger.WithError(err).Warn("Quote cache write failed")
		}
		return quote, nil
	}

	logger.WithError(fetchErr).Warn("Live quote unavailable, falling back to stored close")

	bar, err := s.bars.GetLatestClose(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if bar == nil {
		return nil, apperrors.NewUpstreamUnavailableError("quote", fetchErr)
	}

	return &models.Quote{
		Symbol:    symbol,
		Price:     bar.Close,
		FetchedAt: bar.Date,
		Stale:     true,
	}, nil
}

// RefreshHoldingPrices re-quotes every position and stores the result on the
// holding rows. A symbol whose quote fails keeps its previous price; the
// refresh is best effort per symbol.
func (s *QuoteService) RefreshHoldingPrices(ctx context.Context, portfolioID string, holdings []*models.Holding) int {
	logger := logging.FromContext(ctx).WithField("portfolioId", portfolioID)

	updated := 0
	for _, h := range holdings {
		quote, err := s.GetQuote(ctx, h.Symbol)
		if err != nil {
			logger.WithError(err).WithField("symbol", h.Symbol).Warn("Price refresh skipped")
			continue
		}

		price := decimal.NewFromFloat(quote.Price)
		if err := s.prices.UpdateHoldingPrice(ctx, portfolioID, h.Symbol, price); err != nil {
			logger.WithError(err).WithField("symbol", h.Symbol).Warn("Price write failed")
			continue
		}

		h.CurrentPrice = &price
		h.UpdatedAt = time.Now()
		updated++
	}

	return updated
}

// GetHistory returns up to days of daily bars for a symbol, oldest first.
func (s *QuoteService) GetHistory(ctx context.Context, symbol string, days int) ([]*models.DailyBar, error) {
	symbol, err := storage.ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}

	return s.bars.GetHistory(ctx, symbol, days)
}

// LoadBars bulk-inserts daily history, used by the seeding job.
func (s *QuoteService) LoadBars(ctx context.Context, bars []*models.DailyBar) error {
	for _, b := range bars {
		normalized, err := storage.ValidateSymbol(b.Symbol)
		if err != nil {
			return err
		}
		b.Symbol = normalized
	}

	return s.bars.BatchInsert(ctx, bars)
}
