package filtering

import "math"

// Component weights for the composite score.
const (
	weightVolume   = 0.25
	weightMomentum = 0.30
	weightStrength = 0.25
	weightPrice    = 0.20
)

// Scorer turns raw market figures into 0-100 component scores and the
// weighted composite. All methods are pure.
type Scorer struct{}

// VolumeScore rates current volume against the average. Ratio 2x and
// above saturates at 100.
func (Scorer) VolumeScore(volume, avgVolume int64) float64 {
	if avgVolume <= 0 {
		return 0
	}

	ratio := float64(volume) / float64(avgVolume)

	switch {
	case ratio >= 2.0:
		return 100
	case ratio >= 1.5:
		return 80 + (ratio-1.5)*40
	case ratio >= 1.0:
		return 40 + (ratio-1.0)*80
	default:
		return ratio * 40
	}
}

// MomentumScore rates the daily change percent.
func (Scorer) MomentumScore(changePercent float64) float64 {
	switch {
	case changePercent >= 10.0:
		return 100
	case changePercent >= 5.0:
		return 80 + (changePercent-5.0)*4
	case changePercent >= 2.0:
		return 60 + (changePercent-2.0)*6.67
	case changePercent >= 0.0:
		return 30 + changePercent*15
	case changePercent >= -2.0:
		return 15 + (changePercent+2.0)*7.5
	default:
		return math.Max(0, 15+(changePercent+2.0)*7.5)
	}
}

// StrengthScore rates where the price sits inside the day's range.
// Near the high scores high.
func (Scorer) StrengthScore(price, dayHigh, dayLow float64) float64 {
	if dayHigh <= dayLow {
		return 50
	}

	position := (price - dayLow) / (dayHigh - dayLow)

	switch {
	case position >= 0.9:
		return 100
	case position >= 0.8:
		return 85 + (position-0.8)*150
	case position >= 0.6:
		return 60 + (position-0.6)*125
	case position >= 0.4:
		return 35 + (position-0.4)*125
	default:
		return position * 87.5
	}
}

// PriceScore prefers the middle of the configured price band.
func (Scorer) PriceScore(price, minPrice, maxPrice float64) float64 {
	if maxPrice <= minPrice {
		return 50
	}

	midPrice := (minPrice + maxPrice) / 2
	halfWidth := (maxPrice - minPrice) / 2
	distance := math.Abs(price-midPrice) / halfWidth

	switch {
	case distance <= 0.3:
		return 100
	case distance <= 0.5:
		return 80 + (0.5-distance)*100
	case distance <= 0.8:
		return 50 + (0.8-distance)*100
	default:
		return math.Max(0, 50-(distance-0.8)*250)
	}
}

// TotalScore is the weighted composite, rounded to two decimals.
func (s Scorer) TotalScore(price float64, volume, avgVolume int64, changePercent, dayHigh, dayLow, minPrice, maxPrice float64) float64 {
	total := s.VolumeScore(volume, avgVolume)*weightVolume +
		s.MomentumScore(changePercent)*weightMomentum +
		s.StrengthScore(price, dayHigh, dayLow)*weightStrength +
		s.PriceScore(price, minPrice, maxPrice)*weightPrice

	return math.Round(total*100) / 100
}
