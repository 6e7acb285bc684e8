package models

import (
	"time"

	"github.com/paper-trader/internal/types"
	"github.com/shopspring/decimal"
)

// Transaction is an immutable audit record of one trade fill. Rows are
// created once and never updated or deleted.
type Transaction struct {
	ID            string          `json:"id" db:"id"`
	PortfolioID   string          `json:"portfolioId" db:"portfolio_id"`
	Symbol        string          `json:"symbol" db:"symbol"`
	Side          types.TradeSide `json:"side" db:"side"`
	Quantity      decimal.Decimal `json:"quantity" db:"quantity"`
	PricePerShare decimal.Decimal `json:"pricePerShare" db:"price_per_share"`
	TotalAmount   decimal.Decimal `json:"totalAmount" db:"total_amount"`
	ExecutedAt    time.Time       `json:"executedAt" db:"executed_at"`
}
