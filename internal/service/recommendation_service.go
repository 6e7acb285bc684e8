package service

import (
	"context"
	"time"

	"github.com/paper-trader/internal/circuitbreaker"
	apperrors "github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/logging"
	"github.com/paper-trader/internal/models"
	"github.com/paper-trader/internal/types"
)

// PredictionSource generates fresh recommendations from the model service
type PredictionSource interface {
	Predict(ctx context.Context, profile *types.RiskProfile, holdings []types.HoldingRef) ([]*models.Recommendation, error)
}

// RecommendationStore persists recommendation history
type RecommendationStore interface {
	AppendBatch(ctx context.Context, userID string, recs []*models.Recommendation) error
	LatestPerSymbol(ctx context.Context, userID string, maxAge time.Duration) ([]*models.Recommendation, error)
}

// RecommendationService serves model advice with a cache-aside fallback. A
// healthy model answers live and the result is persisted; a failing model is
// fenced off by a circuit breaker and the newest persisted advice is served
// instead, flagged as cached.
type RecommendationService struct {
	source  PredictionSource
	store   RecommendationStore
	folio   PortfolioReader
	breaker *circuitbreaker.CircuitBreaker
	maxAge  time.Duration
}

// NewRecommendationService creates a new recommendation service
func NewRecommendationService(source PredictionSource, store RecommendationStore, folio PortfolioReader, maxAge time.Duration) *RecommendationService {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &RecommendationService{
		source:  source,
		store:   store,
		folio:   folio,
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig("prediction")),
		maxAge:  maxAge,
	}
}

// RecommendationSet is the advice returned for one request
type RecommendationSet struct {
	Recommendations []*models.Recommendation `json:"recommendations"`
	// Cached is true when the model was unreachable and the set was served
	// from persisted history. Message then explains the degraded mode.
	Cached      bool      `json:"cached"`
	Message     string    `json:"message,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// GetRecommendations returns advice for a user. The user's current holdings
// ride along with the risk profile so the model can reason about the
// existing book.
func (s *RecommendationService) GetRecommendations(ctx context.Context, userID string, profile *types.RiskProfile) (*RecommendationSet, error) {
	logger := logging.FromContext(ctx).WithField("userId", userID)

	if profile == nil {
		profile = &types.RiskProfile{}
	}
	if profile.RiskTolerance == "" {
		profile.RiskTolerance = types.RiskModerate
	}
	if profile.InvestmentHorizon == "" {
		profile.InvestmentHorizon = types.HorizonMedium
	}

	holdings, err := s.holdingRefs(ctx, userID)
	if err != nil {
		return nil, err
	}

	var fresh []*models.Recommendation
	callErr := s.breaker.Execute(ctx, func(ctx context.Context) error {
		recs, err := s.source.Predict(ctx, profile, holdings)
		if err != nil {
			return err
		}
		fresh = recs
		return nil
	})

	if callErr == nil {
		if err := s.store.AppendBatch(ctx, userID, fresh); err != nil {
			// A failed history write does not fail the request.
			logger.WithError(err).Warn("Failed to persist recommendations")
		}
		return &RecommendationSet{
			Recommendations: fresh,
			GeneratedAt:     time.Now(),
		}, nil
	}

	logger.WithError(callErr).Warn("Prediction source unavailable, serving cached recommendations")

	cached, err := s.store.LatestPerSymbol(ctx, userID, s.maxAge)
	if err != nil {
		return nil, err
	}
	if len(cached) == 0 {
		return nil, apperrors.NewUpstreamUnavailableError("prediction", callErr)
	}

	generatedAt := time.Time{}
	for _, rec := range cached {
		if rec.CreatedAt.After(generatedAt) {
			generatedAt = rec.CreatedAt
		}
	}

	return &RecommendationSet{
		Recommendations: cached,
		Cached:          true,
		Message:         "Prediction service unavailable, showing recommendations from " + generatedAt.Format(time.RFC3339),
		GeneratedAt:     generatedAt,
	}, nil
}

// BreakerState reports the prediction circuit state for health endpoints.
func (s *RecommendationService) BreakerState() circuitbreaker.State {
	return s.breaker.GetState()
}

func (s *RecommendationService) holdingRefs(ctx context.Context, userID string) ([]types.HoldingRef, error) {
	portfolio, err := s.folio.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	holdings, err := s.folio.ListHoldings(ctx, portfolio.ID)
	if err != nil {
		return nil, err
	}

	refs := make([]types.HoldingRef, 0, len(holdings))
	for _, h := range holdings {
		refs = append(refs, types.HoldingRef{
			Symbol:   h.Symbol,
			Quantity: h.Quantity.String(),
		})
	}

	return refs, nil
}
