package api

import (
	"net/http"
	"strconv"

	"github.com/paper-trader/internal/logging"
)

// handleGetPortfolio handles GET /api/portfolio. With ?refresh=true the
// held symbols are repriced from the quote pipeline before valuation.
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	if r.URL.Query().Get("refresh") == "true" && s.quotes != nil && s.portfolios != nil {
		s.refreshPrices(r, userID)
	}

	view, err := s.ledger.ValuePortfolio(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// refreshPrices is best effort. A dead quote pipeline never blocks valuation,
// the stored prices are simply served as-is.
func (s *Server) refreshPrices(r *http.Request, userID string) {
	logger := logging.FromContext(r.Context())

	portfolio, err := s.portfolios.GetByUser(r.Context(), userID)
	if err != nil {
		logger.WithError(err).Warn("Price refresh skipped, portfolio lookup failed")
		return
	}

	holdings, err := s.portfolios.ListHoldings(r.Context(), portfolio.ID)
	if err != nil {
		logger.WithError(err).Warn("Price refresh skipped, holdings lookup failed")
		return
	}

	updated := s.quotes.RefreshHoldingPrices(r.Context(), portfolio.ID, holdings)
	logger.WithFields(map[string]interface{}{
		"portfolioId": portfolio.ID,
		"updated":     updated,
		"holdings":    len(holdings),
	}).Debug("Refreshed holding prices")
}

// handleGetTransactions handles GET /api/portfolio/transactions
func (s *Server) handleGetTransactions(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "INVALID_INPUT", "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}

	transactions, err := s.ledger.ListTransactions(r.Context(), userID, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// handleAudit handles GET /api/portfolio/audit
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	result, err := s.audit.CheckPortfolio(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
