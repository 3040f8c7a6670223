package model

// AdjustmentStrategy selects how the threshold adjuster reacts to the
// market. A closed set: every variant has exactly one handler.
type AdjustmentStrategy string

const (
	StrategyConservative AdjustmentStrategy = "conservative"
	StrategyBalanced     AdjustmentStrategy = "balanced"
	StrategyAggressive   AdjustmentStrategy = "aggressive"
	StrategyTimeBased    AdjustmentStrategy = "time_based"
)

// ValidAdjustmentStrategy reports whether s names a known variant.
func ValidAdjustmentStrategy(s AdjustmentStrategy) bool {
	switch s {
	case StrategyConservative, StrategyBalanced, StrategyAggressive, StrategyTimeBased:
		return true
	}
	return false
}

// MarketCondition is a breadth/volatility snapshot computed fresh for
// each adjustment request; it is never persisted.
type MarketCondition struct {
	TotalRiseCount  int     `json:"total_rise_count"`
	TotalStockCount int     `json:"total_stock_count"`
	AverageChange   float64 `json:"average_change"`
	VolatilityIndex float64 `json:"volatility_index"`
	VolumeRatio     float64 `json:"volume_ratio"`
}

// RiseRatio is the fraction of surveyed stocks trading up.
func (c MarketCondition) RiseRatio() float64 {
	if c.TotalStockCount == 0 {
		return 0
	}
	return float64(c.TotalRiseCount) / float64(c.TotalStockCount)
}

// AdjustmentRecommendation is the adjuster's advisory output.
// ConfidenceScore is metadata only and never gates the recommendation.
type AdjustmentRecommendation struct {
	CurrentThreshold     float64            `json:"current_threshold"`
	RecommendedThreshold float64            `json:"recommended_threshold"`
	AdjustmentReason     string             `json:"adjustment_reason"`
	ConfidenceScore      float64            `json:"confidence_score"`
	Strategy             AdjustmentStrategy `json:"strategy"`
}

// StrategySuggestion pairs a strategy with the reason it was proposed.
type StrategySuggestion struct {
	Strategy AdjustmentStrategy `json:"strategy"`
	Reason   string             `json:"reason"`
}
