package service

import (
	"context"
	"fmt"
	"time"

	"github.com/paper-trader/internal/models"
	"github.com/paper-trader/internal/types"
	"github.com/shopspring/decimal"
)

// TransactionAuditor reads aggregate fill data for audits
type TransactionAuditor interface {
	ListByPortfolio(ctx context.Context, portfolioID string, limit int) ([]*models.Transaction, error)
	CountBySide(ctx context.Context, portfolioID string, side types.TradeSide) (int64, error)
	NetQuantity(ctx context.Context, portfolioID, symbol string) (decimal.Decimal, error)
}

// ConsistencyChecker audits a portfolio against its own trade history. Cash
// must equal starting cash minus buy totals plus sell totals, and every
// position must equal the signed sum of its fills.
type ConsistencyChecker struct {
	portfolioRepo PortfolioReader
	auditor       TransactionAuditor
	startingCash  decimal.Decimal
}

// NewConsistencyChecker creates a new consistency checker
func NewConsistencyChecker(portfolioRepo PortfolioReader, auditor TransactionAuditor, startingCash decimal.Decimal) *ConsistencyChecker {
	return &ConsistencyChecker{
		portfolioRepo: portfolioRepo,
		auditor:       auditor,
		startingCash:  startingCash,
	}
}

// ConsistencyCheckResult represents the result of a ledger audit
type ConsistencyCheckResult struct {
	PortfolioID     string    `json:"portfolioId"`
	Consistent      bool      `json:"consistent"`
	CashBalance     string    `json:"cashBalance"`
	ExpectedCash    string    `json:"expectedCash"`
	BuyCount        int64     `json:"buyCount"`
	SellCount       int64     `json:"sellCount"`
	Inconsistencies []string  `json:"inconsistencies,omitempty"`
	CheckedAt       time.Time `json:"checkedAt"`
}

// auditHistoryLimit bounds how many fills one audit replays.
const auditHistoryLimit = 500

// CheckPortfolio replays the portfolio's history and compares the derived
// state against the stored state.
func (cc *ConsistencyChecker) CheckPortfolio(ctx context.Context, userID string) (*ConsistencyCheckResult, error) {
	portfolio, err := cc.portfolioRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &ConsistencyCheckResult{
		PortfolioID: portfolio.ID,
		CashBalance: portfolio.CashBalance.String(),
		CheckedAt:   time.Now(),
	}

	txns, err := cc.auditor.ListByPortfolio(ctx, portfolio.ID, auditHistoryLimit)
	if err != nil {
		return nil, err
	}

	if result.BuyCount, err = cc.auditor.CountBySide(ctx, portfolio.ID, types.SideBuy); err != nil {
		return nil, err
	}
	if result.SellCount, err = cc.auditor.CountBySide(ctx, portfolio.ID, types.SideSell); err != nil {
		return nil, err
	}

	// Counts cover the whole history; the replay below is bounded.
	if result.BuyCount+result.SellCount > int64(len(txns)) {
		result.Inconsistencies = append(result.Inconsistencies,
			fmt.Sprintf("history has %d fills, audit replays at most %d", result.BuyCount+result.SellCount, auditHistoryLimit))
	}

	expectedCash := cc.startingCash
	for _, t := range txns {
		switch t.Side {
		case "buy":
			expectedCash = expectedCash.Sub(t.TotalAmount)
		case "sell":
			expectedCash = expectedCash.Add(t.TotalAmount)
		default:
			result.Inconsistencies = append(result.Inconsistencies,
				fmt.Sprintf("transaction %s has unknown side %q", t.ID, t.Side))
		}

		if !t.Quantity.Mul(t.PricePerShare).Equal(t.TotalAmount) {
			result.Inconsistencies = append(result.Inconsistencies,
				fmt.Sprintf("transaction %s total %s does not match quantity*price", t.ID, t.TotalAmount.String()))
		}
	}
	result.ExpectedCash = expectedCash.String()

	if !portfolio.CashBalance.Equal(expectedCash) {
		result.Inconsistencies = append(result.Inconsistencies,
			fmt.Sprintf("cash mismatch: stored=%s derived=%s", portfolio.CashBalance.String(), expectedCash.String()))
	}

	holdings, err := cc.portfolioRepo.ListHoldings(ctx, portfolio.ID)
	if err != nil {
		return nil, err
	}

	held := make(map[string]decimal.Decimal, len(holdings))
	for _, h := range holdings {
		held[h.Symbol] = h.Quantity
	}

	seen := make(map[string]bool)
	for _, t := range txns {
		if seen[t.Symbol] {
			continue
		}
		seen[t.Symbol] = true

		net, err := cc.auditor.NetQuantity(ctx, portfolio.ID, t.Symbol)
		if err != nil {
			return nil, err
		}

		stored := held[t.Symbol]
		if !stored.Equal(net) {
			result.Inconsistencies = append(result.Inconsistencies,
				fmt.Sprintf("position mismatch for %s: stored=%s derived=%s", t.Symbol, stored.String(), net.String()))
		}
	}

	// A holding with no fills at all is always wrong.
	for _, h := range holdings {
		if !seen[h.Symbol] {
			result.Inconsistencies = append(result.Inconsistencies,
				fmt.Sprintf("position %s has no transaction history", h.Symbol))
		}
	}

	result.Consistent = len(result.Inconsistencies) == 0
	return result, nil
}
