package models

import (
	"time"

	"github.com/paper-trader/internal/types"
)

// Recommendation is one AI prediction result, persisted append-only so the
// most recent record per symbol can be served when the prediction source is
// unreachable.
type Recommendation struct {
	ID              string                    `json:"id" db:"id"`
	UserID          string                    `json:"userId" db:"user_id"`
	Symbol          string                    `json:"symbol" db:"symbol"`
	Label           types.RecommendationLabel `json:"label" db:"label"`
	ConfidenceScore float64                   `json:"confidenceScore" db:"confidence_score"`
	SentimentScore  float64                   `json:"sentimentScore" db:"sentiment_score"`
	PredictionScore float64                   `json:"predictionScore" db:"prediction_score"`
	Explanation     string                    `json:"explanation" db:"explanation"`
	CreatedAt       time.Time                 `json:"createdAt" db:"created_at"`
}
