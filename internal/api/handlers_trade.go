package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/paper-trader/internal/service"
)

type tradeRequest struct {
	Symbol   string `json:"symbol"`
	Quantity string `json:"quantity"`
	Price    string `json:"price"`
}

// toTradeInput converts the wire request into a service input. Quantity and
// price travel as strings so clients never round them through float64.
func (req *tradeRequest) toTradeInput(userID string) (*service.TradeInput, error) {
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return nil, err
	}
	return &service.TradeInput{
		UserID:   userID,
		Symbol:   req.Symbol,
		Quantity: quantity,
		Price:    price,
	}, nil
}

// handleBuy handles POST /api/trades/buy
func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	var req tradeRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body", nil)
		return
	}

	input, err := req.toTradeInput(userID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "quantity and price must be decimal strings", nil)
		return
	}

	result, err := s.ledger.ExecuteBuy(r.Context(), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// handleSell handles POST /api/trades/sell
func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	var req tradeRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body", nil)
		return
	}

	input, err := req.toTradeInput(userID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "quantity and price must be decimal strings", nil)
		return
	}

	result, err := s.ledger.ExecuteSell(r.Context(), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, result)
}
