package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paper-trader/internal/config"
	apperrors "github.com/paper-trader/internal/errors"
	"github.com/paper-trader/internal/models"
	"github.com/paper-trader/internal/types"
)

// PredictionClient calls the recommendation model service. One request ships
// the user's full risk profile and current holdings; the response carries one
// scored advice row per symbol.
type PredictionClient struct {
	baseURL string
	client  *http.Client
}

// predictRequest is the model service request body
type predictRequest struct {
	RiskTolerance     string             `json:"riskTolerance"`
	InvestmentHorizon string             `json:"investmentHorizon"`
	MaxLossTolerance  float64            `json:"maxLossTolerance"`
	PreferredSectors  []string           `json:"preferredSectors"`
	CurrentHoldings   []types.HoldingRef `json:"currentHoldings"`
}

// predictResponse is a single advice row in the model service response
type predictResponse struct {
	Ticker      string  `json:"ticker"`
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
	Sentiment   float64 `json:"sentiment"`
	Prediction  float64 `json:"prediction"`
	Explanation string  `json:"explanation"`
}

// NewPredictionClient creates a prediction client from config
func NewPredictionClient(cfg *config.PredictionConfig) *PredictionClient {
	return &PredictionClient{
		baseURL: cfg.URL,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Predict requests fresh recommendations for a risk profile. Rows with
// labels the model invented are dropped rather than failing the batch.
func (c *PredictionClient) Predict(ctx context.Context, profile *types.RiskProfile, holdings []types.HoldingRef) ([]*models.Recommendation, error) {
	if holdings == nil {
		holdings = []types.HoldingRef{}
	}
	sectors := profile.PreferredSectors
	if sectors == nil {
		sectors = []string{}
	}

	payload, err := json.Marshal(&predictRequest{
		RiskTolerance:     string(profile.RiskTolerance),
		InvestmentHorizon: string(profile.InvestmentHorizon),
		MaxLossTolerance:  profile.MaxLossTolerance,
		PreferredSectors:  sectors,
		CurrentHoldings:   holdings,
	})
	if err != nil {
		return nil, apperrors.NewInternalError("failed to marshal prediction request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build prediction request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewUpstreamTimeoutError("prediction")
		}
		return nil, apperrors.NewUpstreamUnavailableError("prediction", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("prediction", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewUpstreamUnavailableError("prediction",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	var rows []predictResponse
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("prediction", fmt.Errorf("malformed prediction response: %w", err))
	}

	now := time.Now()
	recs := make([]*models.Recommendation, 0, len(rows))
	for _, row := range rows {
		label := types.RecommendationLabel(row.Label)
		if !label.Valid() {
			continue
		}
		recs = append(recs, &models.Recommendation{
			Symbol:          row.Ticker,
			Label:           label,
			ConfidenceScore: row.Confidence,
			SentimentScore:  row.Sentiment,
			PredictionScore: row.Prediction,
			Explanation:     row.Explanation,
			CreatedAt:       now,
		})
	}

	return recs, nil
}
