package service

import (
	"context"
	"testing"

	"github.com/paper-trader/internal/models"
	"github.com/paper-trader/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (m *memLedger) NetQuantity(ctx context.Context, portfolioID, symbol string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	net := decimal.Zero
	for _, t := range m.txns {
		if t.Symbol != symbol {
			continue
		}
		if t.Side == "buy" {
			net = net.Add(t.Quantity)
		} else {
			net = net.Sub(t.Quantity)
		}
	}
	return net, nil
}

func (m *memLedger) CountBySide(ctx context.Context, portfolioID string, side types.TradeSide) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, t := range m.txns {
		if t.Side == side {
			count++
		}
	}
	return count, nil
}

func TestAuditPassesAfterTrades(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestLedgerService("100000.00")

	_, err := svc.ExecuteBuy(ctx, buy("AAPL", "50", "215.30"))
	require.NoError(t, err)
	_, err = svc.ExecuteBuy(ctx, buy("MSFT", "10", "300.00"))
	require.NoError(t, err)
	_, err = svc.ExecuteSell(ctx, buy("AAPL", "20", "230.00"))
	require.NoError(t, err)

	checker := NewConsistencyChecker(store, store, decimal.RequireFromString("100000.00"))
	result, err := checker.CheckPortfolio(ctx, "user-1")
	require.NoError(t, err)

	assert.True(t, result.Consistent, "inconsistencies: %v", result.Inconsistencies)
	assert.Equal(t, result.CashBalance, result.ExpectedCash)
	assert.Equal(t, int64(2), result.BuyCount)
	assert.Equal(t, int64(1), result.SellCount)
}

func TestAuditDetectsCashDrift(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestLedgerService("100000.00")

	_, err := svc.ExecuteBuy(ctx, buy("AAPL", "10", "200.00"))
	require.NoError(t, err)

	// Corrupt the stored balance behind the ledger's back.
	store.portfolio.CashBalance = store.portfolio.CashBalance.Add(decimal.RequireFromString("0.01"))

	checker := NewConsistencyChecker(store, store, decimal.RequireFromString("100000.00"))
	result, err := checker.CheckPortfolio(ctx, "user-1")
	require.NoError(t, err)

	assert.False(t, result.Consistent)
	require.NotEmpty(t, result.Inconsistencies)
	assert.Contains(t, result.Inconsistencies[0], "cash mismatch")
}

func TestAuditDetectsOrphanPosition(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestLedgerService("100000.00")

	_, err := svc.ExecuteBuy(ctx, buy("AAPL", "10", "200.00"))
	require.NoError(t, err)

	// A position that no fill ever created.
	store.holdings["GHOST"] = &models.Holding{
		PortfolioID: store.portfolio.ID,
		Symbol:      "GHOST",
		Quantity:    decimal.RequireFromString("1"),
		AvgBuyPrice: decimal.RequireFromString("1"),
	}

	checker := NewConsistencyChecker(store, store, decimal.RequireFromString("100000.00"))
	result, err := checker.CheckPortfolio(ctx, "user-1")
	require.NoError(t, err)

	assert.False(t, result.Consistent)
}
