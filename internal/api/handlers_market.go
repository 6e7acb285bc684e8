package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

const (
	// defaultHistoryDays is one trading year, matching the window the
	// prediction pipeline trains on.
	defaultHistoryDays = 252
	maxHistoryDays     = 365
)

// handleGetQuote handles GET /api/market/{symbol}/quote
func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	quote, err := s.quotes.GetQuote(r.Context(), symbol)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, quote)
}

// handleGetHistory handles GET /api/market/{symbol}/history
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	days := defaultHistoryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxHistoryDays {
			respondError(w, http.StatusBadRequest, "INVALID_INPUT", "days must be between 1 and 365", nil)
			return
		}
		days = parsed
	}

	bars, err := s.quotes.GetHistory(r.Context(), symbol, days)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"days":   days,
		"bars":   bars,
		"count":  len(bars),
	})
}
