package monitoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"daytrader/src/model"
)

// Threshold bounds for every adjustment path.
const (
	BaseThreshold = 2.0
	MinThreshold  = 0.5
	MaxThreshold  = 5.0
)

// ThresholdAdjuster computes advisory threshold changes from the
// market snapshot and the clock. All methods are pure.
type ThresholdAdjuster struct{}

// CalculateAdjustment runs one strategy over the current threshold and
// clamps the result into [MinThreshold, MaxThreshold].
func (a ThresholdAdjuster) CalculateAdjustment(currentThreshold float64, condition model.MarketCondition, now time.Time, strategy model.AdjustmentStrategy) model.AdjustmentRecommendation {
	newThreshold := currentThreshold

	switch strategy {
	case model.StrategyTimeBased:
		newThreshold = currentThreshold * TimeFactorAt(now)
	case model.StrategyConservative:
		newThreshold = conservativeAdjustment(currentThreshold, condition)
	case model.StrategyAggressive:
		newThreshold = aggressiveAdjustment(currentThreshold, condition)
	case model.StrategyBalanced:
		newThreshold = balancedAdjustment(currentThreshold, condition, now)
	}

	newThreshold = math.Max(MinThreshold, math.Min(MaxThreshold, newThreshold))

	return model.AdjustmentRecommendation{
		CurrentThreshold:     currentThreshold,
		RecommendedThreshold: math.Round(newThreshold*100) / 100,
		AdjustmentReason:     adjustmentReason(currentThreshold, newThreshold, condition, strategy),
		ConfidenceScore:      confidenceScore(condition, strategy),
		Strategy:             strategy,
	}
}

// TimeFactorAt is the session decay step table. The same factors drive
// the automatic per-phase decay in the session manager.
func TimeFactorAt(now time.Time) float64 {
	hourMinute := float64(now.Hour()) + float64(now.Minute())/60

	switch {
	case hourMinute >= 17.5:
		return 0.7
	case hourMinute >= 17.0:
		return 0.8
	case hourMinute >= 16.5:
		return 0.9
	case hourMinute >= 16.0:
		return 1.0
	default:
		return 1.0
	}
}

func conservativeAdjustment(threshold float64, condition model.MarketCondition) float64 {
	adjustment := 1.2

	if condition.VolatilityIndex > 2.0 {
		adjustment += 0.1
	}
	if condition.RiseRatio() < 0.3 {
		adjustment += 0.1
	}

	return threshold * adjustment
}

func aggressiveAdjustment(threshold float64, condition model.MarketCondition) float64 {
	adjustment := 0.8

	if condition.RiseRatio() > 0.7 {
		adjustment -= 0.1
	}
	if condition.AverageChange > 2.0 {
		adjustment -= 0.1
	}

	return threshold * math.Max(0.5, adjustment)
}

func balancedAdjustment(threshold float64, condition model.MarketCondition, now time.Time) float64 {
	timeAdjusted := threshold * TimeFactorAt(now)

	marketFactor := 1.0
	if riseRatio := condition.RiseRatio(); riseRatio > 0.6 {
		marketFactor = 0.9
	} else if riseRatio < 0.4 {
		marketFactor = 1.1
	}

	return timeAdjusted * marketFactor
}

// AnalyzeMarketCondition folds the surveyed stocks into a breadth and
// volatility snapshot.
func (a ThresholdAdjuster) AnalyzeMarketCondition(stocks []model.FilteredStock) model.MarketCondition {
	if len(stocks) == 0 {
		return model.MarketCondition{VolumeRatio: 1.0}
	}

	totalCount := len(stocks)
	riseCount := 0
	totalChange := 0.0
	totalVolume := int64(0)

	for _, stock := range stocks {
		if stock.Momentum > 0 {
			riseCount++
		}
		totalChange += stock.Momentum
		if stock.Volume > 0 {
			totalVolume += stock.Volume
		}
	}

	averageChange := totalChange / float64(totalCount)

	volatility := 0.0
	if totalCount > 1 {
		variance := 0.0
		for _, stock := range stocks {
			diff := stock.Momentum - averageChange
			variance += diff * diff
		}
		volatility = math.Sqrt(variance / float64(totalCount))
	}

	// Volume ratio against a 1M-share baseline, clamped to [0.5, 2.0].
	avgVolume := float64(totalVolume) / float64(totalCount)
	volumeRatio := math.Min(2.0, math.Max(0.5, avgVolume/1000000))

	return model.MarketCondition{
		TotalRiseCount:  riseCount,
		TotalStockCount: totalCount,
		AverageChange:   math.Round(averageChange*100) / 100,
		VolatilityIndex: math.Round(volatility*100) / 100,
		VolumeRatio:     math.Round(volumeRatio*100) / 100,
	}
}

// SuggestedStrategies proposes up to three strategies for the snapshot.
func (a ThresholdAdjuster) SuggestedStrategies(condition model.MarketCondition) []model.StrategySuggestion {
	var suggestions []model.StrategySuggestion

	riseRatio := condition.RiseRatio()
	if riseRatio > 0.7 {
		suggestions = append(suggestions, model.StrategySuggestion{
			Strategy: model.StrategyAggressive,
			Reason:   "Most stocks rising - aggressive entry",
		})
	} else if riseRatio > 0.5 {
		suggestions = append(suggestions, model.StrategySuggestion{
			Strategy: model.StrategyBalanced,
			Reason:   "Market uptrend - balanced approach",
		})
	} else if riseRatio < 0.3 {
		suggestions = append(suggestions, model.StrategySuggestion{
			Strategy: model.StrategyConservative,
			Reason:   "Weak market - conservative approach",
		})
	}

	if condition.VolatilityIndex > 3.0 {
		suggestions = append(suggestions, model.StrategySuggestion{
			Strategy: model.StrategyConservative,
			Reason:   "High volatility - cautious approach",
		})
	} else if condition.VolatilityIndex > 1.5 {
		suggestions = append(suggestions, model.StrategySuggestion{
			Strategy: model.StrategyBalanced,
			Reason:   "Moderate volatility - balanced approach",
		})
	}

	suggestions = append(suggestions, model.StrategySuggestion{
		Strategy: model.StrategyTimeBased,
		Reason:   "Automatic adjustment as the session progresses",
	})

	if len(suggestions) > 3 {
		suggestions = suggestions[:3]
	}
	return suggestions
}

func adjustmentReason(current, new float64, condition model.MarketCondition, strategy model.AdjustmentStrategy) string {
	var parts []string

	changePercent := 0.0
	if current > 0 {
		changePercent = (new - current) / current * 100
	}

	if math.Abs(changePercent) < 1 {
		parts = append(parts, "threshold unchanged")
	} else if changePercent > 0 {
		parts = append(parts, fmt.Sprintf("threshold raised %.1f%%", changePercent))
	} else {
		parts = append(parts, fmt.Sprintf("threshold lowered %.1f%%", math.Abs(changePercent)))
	}

	switch strategy {
	case model.StrategyTimeBased:
		parts = append(parts, "automatic time-based adjustment")
	case model.StrategyConservative:
		parts = append(parts, "conservative stance to reduce risk")
	case model.StrategyAggressive:
		parts = append(parts, "aggressive stance to widen opportunity")
	}

	if riseRatio := condition.RiseRatio(); riseRatio > 0.7 {
		parts = append(parts, "responding to broad rally")
	} else if riseRatio < 0.3 {
		parts = append(parts, "responding to weak market")
	}

	return strings.Join(parts, " - ")
}

func confidenceScore(condition model.MarketCondition, strategy model.AdjustmentStrategy) float64 {
	confidence := 0.7

	if condition.TotalStockCount > 100 {
		confidence += 0.1
	} else if condition.TotalStockCount < 50 {
		confidence -= 0.1
	}

	if condition.VolatilityIndex > 3.0 {
		confidence -= 0.1
	} else if condition.VolatilityIndex < 1.0 {
		confidence += 0.1
	}

	switch strategy {
	case model.StrategyTimeBased:
		confidence += 0.1
	case model.StrategyBalanced:
		confidence += 0.05
	}

	return math.Max(0, math.Min(1, confidence))
}
