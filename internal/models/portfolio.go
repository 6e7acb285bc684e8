package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio holds a user's virtual cash. One per user; its holdings and
// transactions are owned exclusively by it and cascade on delete.
type Portfolio struct {
	ID          string          `json:"id" db:"id"`
	UserID      string          `json:"userId" db:"user_id"`
	CashBalance decimal.Decimal `json:"cashBalance" db:"cash_balance"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// Holding is a position in one symbol. A holding with quantity <= 0 is never
// persisted; selling a position down to zero deletes the row.
type Holding struct {
	PortfolioID string           `json:"portfolioId" db:"portfolio_id"`
	Symbol      string           `json:"symbol" db:"symbol"`
	Quantity    decimal.Decimal  `json:"quantity" db:"quantity"`
	AvgBuyPrice decimal.Decimal  `json:"avgBuyPrice" db:"avg_buy_price"`
	// CurrentPrice is the last-known market price, set on trades and
	// valuation refreshes. Nil until first observed.
	CurrentPrice *decimal.Decimal `json:"currentPrice,omitempty" db:"current_price"`
	UpdatedAt    time.Time        `json:"updatedAt" db:"updated_at"`
}

// MarketPrice returns the price used for valuation: the last-known current
// price, falling back to the cost basis when none has been observed.
func (h *Holding) MarketPrice() decimal.Decimal {
	if h.CurrentPrice != nil {
		return *h.CurrentPrice
	}
	return h.AvgBuyPrice
}

// GainLoss returns the unrealized gain or loss on the holding.
func (h *Holding) GainLoss() decimal.Decimal {
	return h.MarketPrice().Sub(h.AvgBuyPrice).Mul(h.Quantity)
}

// GainLossPercent returns the unrealized gain or loss as a percentage of the
// cost basis, or zero for a degenerate zero cost basis.
func (h *Holding) GainLossPercent() decimal.Decimal {
	basis := h.AvgBuyPrice.Mul(h.Quantity)
	if basis.IsZero() {
		return decimal.Zero
	}
	return h.GainLoss().Div(basis).Mul(decimal.NewFromInt(100))
}
