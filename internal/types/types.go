// Package types provides common type definitions for the paper trading system.
package types

// UserTier represents the service tier level
type UserTier string

const (
	// TierFree represents the free service tier with limited features
	TierFree UserTier = "free"
	// TierPremium represents the premium service tier with higher limits
	TierPremium UserTier = "premium"
)

// TradeSide represents the direction of a trade
type TradeSide string

const (
	// SideBuy represents a buy trade
	SideBuy TradeSide = "buy"
	// SideSell represents a sell trade
	SideSell TradeSide = "sell"
)

// Valid reports whether the side is one of the known values.
func (s TradeSide) Valid() bool {
	return s == SideBuy || s == SideSell
}

// RecommendationLabel represents an AI recommendation action
type RecommendationLabel string

const (
	// LabelStrongBuy represents a high-conviction buy recommendation
	LabelStrongBuy RecommendationLabel = "strong_buy"
	// LabelBuy represents a buy recommendation
	LabelBuy RecommendationLabel = "buy"
	// LabelHold represents a hold recommendation
	LabelHold RecommendationLabel = "hold"
	// LabelSell represents a sell recommendation
	LabelSell RecommendationLabel = "sell"
	// LabelStrongSell represents a high-conviction sell recommendation
	LabelStrongSell RecommendationLabel = "strong_sell"
)

// Valid reports whether the label is one of the known values.
func (l RecommendationLabel) Valid() bool {
	switch l {
	case LabelStrongBuy, LabelBuy, LabelHold, LabelSell, LabelStrongSell:
		return true
	}
	return false
}

// RiskTolerance represents a user's risk appetite
type RiskTolerance string

const (
	// RiskConservative prefers fewer, higher-confidence recommendations
	RiskConservative RiskTolerance = "conservative"
	// RiskModerate is the default risk level
	RiskModerate RiskTolerance = "moderate"
	// RiskAggressive accepts lower-confidence recommendations
	RiskAggressive RiskTolerance = "aggressive"
)

// InvestmentHorizon represents a user's holding period preference
type InvestmentHorizon string

const (
	// HorizonShort targets days to weeks
	HorizonShort InvestmentHorizon = "short"
	// HorizonMedium targets weeks to months
	HorizonMedium InvestmentHorizon = "medium"
	// HorizonLong targets months to years
	HorizonLong InvestmentHorizon = "long"
)

// RiskProfile is the caller-supplied input to the prediction source.
type RiskProfile struct {
	RiskTolerance     RiskTolerance     `json:"riskTolerance"`
	InvestmentHorizon InvestmentHorizon `json:"investmentHorizon"`
	MaxLossTolerance  float64           `json:"maxLossTolerance"`
	PreferredSectors  []string          `json:"preferredSectors,omitempty"`
}

// HoldingRef identifies a position passed to the prediction source.
type HoldingRef struct {
	Symbol   string `json:"ticker"`
	Quantity string `json:"quantity"`
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
