package service

import (
	"context"
	"time"

	apperrors "github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/logging"
	"github.com/paper-trader/internal/models"
	"github.com/paper-trader/internal/storage"
	"github.com/paper-trader/internal/types"
	"github.com/shopspring/decimal"
)

// Repository interfaces for dependency injection

// LedgerStore runs trade mutations inside a per-portfolio critical section
type LedgerStore interface {
	Trade(ctx context.Context, portfolioID string, fn storage.TradeFunc) error
}

// PortfolioReader reads portfolio state outside the critical section
type PortfolioReader interface {
	GetByUser(ctx context.Context, userID string) (*models.Portfolio, error)
	ListHoldings(ctx context.Context, portfolioID string) ([]*models.Holding, error)
}

// TransactionReader reads the append-only trade history
type TransactionReader interface {
	ListByPortfolio(ctx context.Context, portfolioID string, limit int) ([]*models.Transaction, error)
}

// LedgerService executes buys and sells against a portfolio and values the
// result. Cash, position, and history move together in one trade or not at
// all.
type LedgerService struct {
	ledger        LedgerStore
	portfolioRepo PortfolioReader
	txnRepo       TransactionReader
}

// NewLedgerService creates a new ledger service
func NewLedgerService(ledger LedgerStore, portfolioRepo PortfolioReader, txnRepo TransactionReader) *LedgerService {
	return &LedgerService{
		ledger:        ledger,
		portfolioRepo: portfolioRepo,
		txnRepo:       txnRepo,
	}
}

// Input types

// TradeInput represents a buy or sell order
type TradeInput struct {
	UserID   string          `json:"userId"`
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	// Price is the execution price per share as quoted to the client.
	Price decimal.Decimal `json:"price"`
}

// Output types

// TradeResult represents a completed trade. Success is always true here;
// rejected orders surface as categorized errors and the API error body
// carries success=false, so the two response shapes line up for clients.
type TradeResult struct {
	Success       bool                `json:"success"`
	Transaction   *models.Transaction `json:"transaction"`
	CashBalance   string              `json:"cashBalance"`
	Holding       *models.Holding     `json:"holding,omitempty"`
	HoldingClosed bool                `json:"holdingClosed,omitempty"`
}

// HoldingView is one valued position
type HoldingView struct {
	Symbol          string `json:"symbol"`
	Quantity        string `json:"quantity"`
	AvgBuyPrice     string `json:"avgBuyPrice"`
	CurrentPrice    string `json:"currentPrice"`
	MarketValue     string `json:"marketValue"`
	CostBasis       string `json:"costBasis"`
	GainLoss        string `json:"gainLoss"`
	GainLossPercent string `json:"gainLossPercent"`
}

// PortfolioView represents a fully valued portfolio
type PortfolioView struct {
	PortfolioID    string        `json:"portfolioId"`
	CashBalance    string        `json:"cashBalance"`
	Holdings       []HoldingView `json:"holdings"`
	MarketValue    string        `json:"marketValue"`
	TotalValue     string        `json:"totalValue"`
	TotalCostBasis string        `json:"totalCostBasis"`
	TotalGainLoss  string        `json:"totalGainLoss"`
	AsOf           time.Time     `json:"asOf"`
}

// validateTrade checks order fields common to both sides.
func validateTrade(input *TradeInput) (string, error) {
	symbol, err := storage.ValidateSymbol(input.Symbol)
	if err != nil {
		return "", err
	}
	if !input.Quantity.IsPositive() {
		return "", apperrors.NewValidationError("quantity", "must be positive")
	}
	if !input.Price.IsPositive() {
		return "", apperrors.NewValidationError("price", "must be positive")
	}
	return symbol, nil
}

// ExecuteBuy purchases shares. The total cost is debited from cash, the
// position's average buy price is re-weighted across the old and new lots,
// and a buy fill is appended to the history.
func (s *LedgerService) ExecuteBuy(ctx context.Context, input *TradeInput) (*TradeResult, error) {
	symbol, err := validateTrade(input)
	if err != nil {
		return nil, err
	}

	portfolio, err := s.portfolioRepo.GetByUser(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"portfolioId": portfolio.ID,
		"symbol":      symbol,
		"side":        types.SideBuy,
	})

	var result *TradeResult
	err = s.ledger.Trade(ctx, portfolio.ID, func(ctx context.Context, led storage.Ledger) error {
		cash := led.Portfolio().CashBalance
		cost := input.Quantity.Mul(input.Price)

		if cash.LessThan(cost) {
			return apperrors.NewInsufficientFundsError(cost.String(), cash.String())
		}

		holding, err := led.Holding(ctx, symbol)
		if err != nil {
			return err
		}

		if holding == nil {
			holding = &models.Holding{
				Symbol:      symbol,
				Quantity:    input.Quantity,
				AvgBuyPrice: input.Price,
			}
		} else {
			// Weighted average across the existing lot and the new one.
			oldCost := holding.Quantity.Mul(holding.AvgBuyPrice)
			newQty := holding.Quantity.Add(input.Quantity)
			holding.AvgBuyPrice = oldCost.Add(cost).Div(newQty)
			holding.Quantity = newQty
		}
		price := input.Price
		holding.CurrentPrice = &price

		if err := led.UpsertHolding(ctx, holding); err != nil {
			return err
		}
		if err := led.SetCash(ctx, cash.Sub(cost)); err != nil {
			return err
		}

		txn := &models.Transaction{
			Symbol:        symbol,
			Side:          types.SideBuy,
			Quantity:      input.Quantity,
			PricePerShare: input.Price,
			TotalAmount:   cost,
		}
		if err := led.AppendTransaction(ctx, txn); err != nil {
			return err
		}

		result = &TradeResult{
			Success:     true,
			Transaction: txn,
			CashBalance: led.Portfolio().CashBalance.String(),
			Holding:     holding,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"quantity":    input.Quantity.String(),
		"price":       input.Price.String(),
		"cashBalance": result.CashBalance,
	}).Info("Buy executed")

	return result, nil
}

// ExecuteSell sells shares from an existing position. The proceeds are
// credited to cash, the position shrinks at an unchanged average buy price,
// and a position sold down to zero is removed entirely.
func (s *LedgerService) ExecuteSell(ctx context.Context, input *TradeInput) (*TradeResult, error) {
	symbol, err := validateTrade(input)
	if err != nil {
		return nil, err
	}

	portfolio, err := s.portfolioRepo.GetByUser(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"portfolioId": portfolio.ID,
		"symbol":      symbol,
		"side":        types.SideSell,
	})

	var result *TradeResult
	err = s.ledger.Trade(ctx, portfolio.ID, func(ctx context.Context, led storage.Ledger) error {
		holding, err := led.Holding(ctx, symbol)
		if err != nil {
			return err
		}
		if holding == nil {
			return apperrors.NewNoSuchHoldingError(symbol)
		}
		if holding.Quantity.LessThan(input.Quantity) {
			return apperrors.NewInsufficientSharesError(symbol, holding.Quantity.String(), input.Quantity.String())
		}

		proceeds := input.Quantity.Mul(input.Price)
		remaining := holding.Quantity.Sub(input.Quantity)

		closed := remaining.IsZero()
		if closed {
			if err := led.DeleteHolding(ctx, symbol); err != nil {
				return err
			}
			holding = nil
		} else {
			holding.Quantity = remaining
			price := input.Price
			holding.CurrentPrice = &price
			if err := led.UpsertHolding(ctx, holding); err != nil {
				return err
			}
		}

		if err := led.SetCash(ctx, led.Portfolio().CashBalance.Add(proceeds)); err != nil {
			return err
		}

		txn := &models.Transaction{
			Symbol:        symbol,
			Side:          types.SideSell,
			Quantity:      input.Quantity,
			PricePerShare: input.Price,
			TotalAmount:   proceeds,
		}
		if err := led.AppendTransaction(ctx, txn); err != nil {
			return err
		}

		result = &TradeResult{
			Success:       true,
			Transaction:   txn,
			CashBalance:   led.Portfolio().CashBalance.String(),
			Holding:       holding,
			HoldingClosed: closed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"quantity":    input.Quantity.String(),
		"price":       input.Price.String(),
		"cashBalance": result.CashBalance,
	}).Info("Sell executed")

	return result, nil
}

// ValuePortfolio returns the portfolio with every position marked to its
// last known price. Valuation reads state; it never mutates the ledger, so
// valuing twice in a row returns the same numbers.
func (s *LedgerService) ValuePortfolio(ctx context.Context, userID string) (*PortfolioView, error) {
	portfolio, err := s.portfolioRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	holdings, err := s.portfolioRepo.ListHoldings(ctx, portfolio.ID)
	if err != nil {
		return nil, err
	}

	view := &PortfolioView{
		PortfolioID: portfolio.ID,
		CashBalance: portfolio.CashBalance.String(),
		Holdings:    make([]HoldingView, 0, len(holdings)),
		AsOf:        time.Now(),
	}

	marketValue := decimal.Zero
	costBasis := decimal.Zero
	for _, h := range holdings {
		price := h.MarketPrice()
		value := h.Quantity.Mul(price)
		basis := h.Quantity.Mul(h.AvgBuyPrice)

		view.Holdings = append(view.Holdings, HoldingView{
			Symbol:          h.Symbol,
			Quantity:        h.Quantity.String(),
			AvgBuyPrice:     h.AvgBuyPrice.String(),
			CurrentPrice:    price.String(),
			MarketValue:     value.String(),
			CostBasis:       basis.String(),
			GainLoss:        h.GainLoss().String(),
			GainLossPercent: h.GainLossPercent().StringFixed(2),
		})

		marketValue = marketValue.Add(value)
		costBasis = costBasis.Add(basis)
	}

	view.MarketValue = marketValue.String()
	view.TotalValue = portfolio.CashBalance.Add(marketValue).String()
	view.TotalCostBasis = costBasis.String()
	view.TotalGainLoss = marketValue.Sub(costBasis).String()

	return view, nil
}

// ListTransactions returns the portfolio's fills, newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	portfolio, err := s.portfolioRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.txnRepo.ListByPortfolio(ctx, portfolio.ID, limit)
}
