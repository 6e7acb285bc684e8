package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/paper-trader/internal/types"
)

// riskProfileFromQuery builds an optional risk profile from query parameters.
// All parameters are optional and missing ones fall back to service defaults.
func riskProfileFromQuery(r *http.Request) (*types.RiskProfile, error) {
	query := r.URL.Query()
	if len(query) == 0 {
		return nil, nil
	}

	profile := &types.RiskProfile{}
	if raw := query.Get("riskTolerance"); raw != "" {
		switch types.RiskTolerance(raw) {
		case types.RiskConservative, types.RiskModerate, types.RiskAggressive:
			profile.RiskTolerance = types.RiskTolerance(raw)
		default:
			return nil, &queryError{param: "riskTolerance", value: raw}
		}
	}
	if raw := query.Get("investmentHorizon"); raw != "" {
		switch types.InvestmentHorizon(raw) {
		case types.HorizonShort, types.HorizonMedium, types.HorizonLong:
			profile.InvestmentHorizon = types.InvestmentHorizon(raw)
		default:
			return nil, &queryError{param: "investmentHorizon", value: raw}
		}
	}
	if raw := query.Get("maxLossTolerance"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			return nil, &queryError{param: "maxLossTolerance", value: raw}
		}
		profile.MaxLossTolerance = parsed
	}
	if raw := query.Get("preferredSectors"); raw != "" {
		for _, sector := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(sector); trimmed != "" {
				profile.PreferredSectors = append(profile.PreferredSectors, trimmed)
			}
		}
	}

	return profile, nil
}

type queryError struct {
	param string
	value string
}

func (e *queryError) Error() string {
	return "invalid value for " + e.param + ": " + e.value
}

// handleGetRecommendations handles GET /api/recommendations
func (s *Server) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	profile, err := riskProfileFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
		return
	}

	set, err := s.recommendations.GetRecommendations(r.Context(), userID, profile)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, set)
}
