package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/paper-trader/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCacheService(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCacheService(NewRedisCacheFromClient(client), 20*time.Second), mr
}

func TestQuoteRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, _ := setupCacheService(t)

	quote := &models.Quote{
		Symbol:    "AAPL",
		Price:     215.30,
		FetchedAt: time.Now().Truncate(time.Second),
	}
	require.NoError(t, cache.SetQuote(ctx, quote))

	got, err := cache.GetQuote(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, 215.30, got.Price)
	assert.False(t, got.Stale)
}

func TestQuoteMissReturnsNil(t *testing.T) {
	ctx := context.Background()
	cache, _ := setupCacheService(t)

	got, err := cache.GetQuote(ctx, "MSFT")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestQuoteExpires(t *testing.T) {
	ctx := context.Background()
	cache, mr := setupCacheService(t)

	require.NoError(t, cache.SetQuote(ctx, &models.Quote{Symbol: "TSLA", Price: 250.00, FetchedAt: time.Now()}))

	mr.FastForward(21 * time.Second)

	got, err := cache.GetQuote(ctx, "TSLA")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestQuoteKeyNormalizesSymbol(t *testing.T) {
	cache, _ := setupCacheService(t)

	assert.Equal(t, "quote:aapl", cache.QuoteKey("AAPL"))
	assert.Equal(t, "quote:brk.b", cache.QuoteKey("BRK.B"))
}

func TestRefreshTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	cache, mr := setupCacheService(t)

	require.NoError(t, cache.StoreRefreshToken(ctx, "tok-123", "user-1", time.Hour))

	userID, err := cache.LookupRefreshToken(ctx, "tok-123")
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	// Unknown tokens resolve to nobody rather than an error.
	userID, err = cache.LookupRefreshToken(ctx, "tok-999")
	require.NoError(t, err)
	assert.Empty(t, userID)

	require.NoError(t, cache.RevokeRefreshToken(ctx, "tok-123"))
	userID, err = cache.LookupRefreshToken(ctx, "tok-123")
	require.NoError(t, err)
	assert.Empty(t, userID)

	// Expiry behaves like revocation.
	require.NoError(t, cache.StoreRefreshToken(ctx, "tok-456", "user-2", time.Minute))
	mr.FastForward(2 * time.Minute)
	userID, err = cache.LookupRefreshToken(ctx, "tok-456")
	require.NoError(t, err)
	assert.Empty(t, userID)
}
