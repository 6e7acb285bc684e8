package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/paper-trader/internal/config"
	apperrors "github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/logging"
	"github.com/paper-trader/internal/models"
	"github.com/paper-trader/internal/retry"
	"golang.org/x/time/rate"
)

// QuoteClient fetches live prices over HTTP from a market data vendor.
// Requests are paced against the vendor quota; a failing endpoint triggers
// failover to the secondary before the next retry.
type QuoteClient struct {
	feed    QuoteFeed
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// quoteResponse is the vendor wire format for a single quote
type quoteResponse struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// NewQuoteClient creates a quote client from config
func NewQuoteClient(cfg *config.QuoteConfig) (*QuoteClient, error) {
	feed, err := NewEndpointPair(cfg.PrimaryURL, cfg.SecondaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to configure quote feed: %w", err)
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}

	return &QuoteClient{
		feed:   feed,
		apiKey: cfg.APIKey,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm/6+1),
	}, nil
}

// Feed exposes the underlying feed for health reporting.
func (c *QuoteClient) Feed() QuoteFeed {
	return c.feed
}

// FetchQuote returns the live price of one symbol. It retries transient
// failures with backoff, failing over to the secondary endpoint between
// attempts.
func (c *QuoteClient) FetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	logger := logging.FromContext(ctx).WithField("symbol", symbol)

	var quote *models.Quote
	err := retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			if err := c.feed.Failover(); err != nil {
				logger.WithError(err).Debug("Quote feed failover unavailable")
			}
		}

		q, err := c.fetchOnce(ctx, symbol)
		if err != nil {
			return err
		}
		quote = q
		return nil
	})
	if err != nil {
		return nil, err
	}

	return quote, nil
}

func (c *QuoteClient) fetchOnce(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewUpstreamTimeoutError("quote")
	}

	base, err := c.feed.CurrentURL()
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("quote", err)
	}

	endpoint := fmt.Sprintf("%s/v1/quote?symbol=%s", base, url.QueryEscape(symbol))

	start := time.Now()
	quote, err := c.doQuoteRequest(ctx, endpoint)
	if err != nil {
		c.feed.RecordFailure(err)
		return nil, err
	}
	c.feed.RecordSuccess(time.Since(start))

	return quote, nil
}

func (c *QuoteClient) doQuoteRequest(ctx context.Context, endpoint string) (*models.Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build quote request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewUpstreamTimeoutError("quote")
		}
		return nil, apperrors.NewUpstreamUnavailableError("quote", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("quote", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewUpstreamUnavailableError("quote",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	var wire quoteResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("quote", fmt.Errorf("malformed quote response: %w", err))
	}
	if wire.Price <= 0 {
		return nil, apperrors.NewUpstreamUnavailableError("quote", fmt.Errorf("non-positive price %v for %s", wire.Price, wire.Symbol))
	}

	fetchedAt := time.Now()
	if wire.Timestamp > 0 {
		fetchedAt = time.Unix(wire.Timestamp, 0)
	}

	return &models.Quote{
		Symbol:    wire.Symbol,
		Price:     wire.Price,
		FetchedAt: fetchedAt,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
