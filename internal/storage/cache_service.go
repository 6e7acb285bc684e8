package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/paper-trader/internal/models"
)

// CacheService provides high-level caching operations for the trading service
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewCacheService creates a new cache service
func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{
		redis: redis,
		ttl:   ttl,
	}
}

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeyQuote is for live quotes
	CacheKeyQuote CacheKeyType = "quote"
	// CacheKeyRefreshToken is for login refresh tokens
	CacheKeyRefreshToken CacheKeyType = "refresh"
)

// GenerateCacheKey generates a cache key for a given type and parameters
// Format: <type>:<param1>:<param2>:...
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	// Normalize all parameters to lowercase for consistency
	normalized := make([]string, len(params))
	for i, param := range params {
		normalized[i] = strings.ToLower(param)
	}

	parts := append([]string{string(keyType)}, normalized...)
	return strings.Join(parts, ":")
}

// QuoteKey generates a cache key for a symbol's live quote
// Format: quote:<symbol>
func (c *CacheService) QuoteKey(symbol string) string {
	return c.GenerateCacheKey(CacheKeyQuote, symbol)
}

// RefreshTokenKey generates a cache key for a refresh token
// Format: refresh:<token>
func (c *CacheService) RefreshTokenKey(token string) string {
	return string(CacheKeyRefreshToken) + ":" + token
}

// SetQuote caches a live quote with the configured TTL.
func (c *CacheService) SetQuote(ctx context.Context, quote *models.Quote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}
	return c.redis.Set(ctx, c.QuoteKey(quote.Symbol), data, c.ttl)
}

// GetQuote returns a cached quote, or (nil, nil) on a cache miss.
func (c *CacheService) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	raw, err := c.redis.Get(ctx, c.QuoteKey(symbol))
	if err != nil {
		if IsCacheMiss(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached quote: %w", err)
	}

	var quote models.Quote
	if err := json.Unmarshal([]byte(raw), &quote); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached quote: %w", err)
	}
	return &quote, nil
}

// StoreRefreshToken records a refresh token for a user with the given TTL.
func (c *CacheService) StoreRefreshToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	return c.redis.Set(ctx, c.RefreshTokenKey(token), userID, ttl)
}

// LookupRefreshToken returns the user ID a refresh token was issued to, or
// empty string if the token is unknown or expired.
func (c *CacheService) LookupRefreshToken(ctx context.Context, token string) (string, error) {
	userID, err := c.redis.Get(ctx, c.RefreshTokenKey(token))
	if err != nil {
		if IsCacheMiss(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up refresh token: %w", err)
	}
	return userID, nil
}

// RevokeRefreshToken deletes a refresh token.
func (c *CacheService) RevokeRefreshToken(ctx context.Context, token string) error {
	return c.redis.Del(ctx, c.RefreshTokenKey(token))
}
