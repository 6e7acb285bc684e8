package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

type watchlistAddRequest struct {
	Symbol string `json:"symbol"`
}

// handleGetWatchlist handles GET /api/watchlist
func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	items, err := s.watchlist.List(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"watchlist": items,
		"count":     len(items),
	})
}

// handleAddWatchlist handles POST /api/watchlist
func (s *Server) handleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	var req watchlistAddRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body", nil)
		return
	}

	entry, err := s.watchlist.Add(r.Context(), userID, req.Symbol)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, entry)
}

// handleRemoveWatchlist handles DELETE /api/watchlist/{symbol}
func (s *Server) handleRemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	symbol := mux.Vars(r)["symbol"]
	existed, err := s.watchlist.Remove(r.Context(), userID, symbol)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !existed {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Symbol is not on the watchlist", nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"removed": true})
}
