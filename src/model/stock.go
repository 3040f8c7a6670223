package model

// FilterConditions holds the numeric bounds for one filtering run.
// A conditions value is built once per run and never mutated afterwards.
type FilterConditions struct {
	MinPrice    float64 `json:"min_price"`
	MaxPrice    float64 `json:"max_price"`
	MinVolume   int64   `json:"min_volume"`
	MaxVolume   int64   `json:"max_volume"`
	MinMomentum float64 `json:"min_momentum"`
	MaxMomentum float64 `json:"max_momentum"`
	MinStrength float64 `json:"min_strength"`
	MaxStrength float64 `json:"max_strength"`

	ExcludedSymbols []string `json:"excluded_symbols,omitempty"`

	// Advanced momentum bounds. A nil bound imposes no constraint.
	MinLateSessionReturn      *float64 `json:"min_late_session_return,omitempty"`
	MaxLateSessionReturn      *float64 `json:"max_late_session_return,omitempty"`
	MinLateSessionVolumeRatio *float64 `json:"min_late_session_volume_ratio,omitempty"`
	MaxLateSessionVolumeRatio *float64 `json:"max_late_session_volume_ratio,omitempty"`
	MinRelativeReturn         *float64 `json:"min_relative_return,omitempty"`
	MaxRelativeReturn         *float64 `json:"max_relative_return,omitempty"`
	MinVWAPRatio              *float64 `json:"min_vwap_ratio,omitempty"`
	MaxVWAPRatio              *float64 `json:"max_vwap_ratio,omitempty"`
}

// DefaultFilterConditions returns wide-open bounds that pass everything.
func DefaultFilterConditions() FilterConditions {
	return FilterConditions{
		MinPrice:    0,
		MaxPrice:    999999,
		MinVolume:   0,
		MaxVolume:   999999999,
		MinMomentum: -100,
		MaxMomentum: 100,
		MinStrength: 0,
		MaxStrength: 100,
	}
}

func (c FilterConditions) IsExcluded(symbol string) bool {
	for _, s := range c.ExcludedSymbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// FilteredStock is one scored survivor of a filter pass. Read-only downstream.
type FilteredStock struct {
	Symbol   string   `json:"symbol"`
	Name     string   `json:"name"`
	Score    float64  `json:"score"`
	Price    float64  `json:"price"`
	Volume   int64    `json:"volume"`
	Momentum float64  `json:"momentum"`
	Strength float64  `json:"strength"`
	Sector   string   `json:"sector"`
	Reasons  []string `json:"reasons"`

	LateSessionReturn      *float64 `json:"late_session_return,omitempty"`
	LateSessionVolumeRatio *float64 `json:"late_session_volume_ratio,omitempty"`
	RelativeReturn         *float64 `json:"relative_return,omitempty"`
	VWAPRatio              *float64 `json:"vwap_ratio,omitempty"`
	VWAP                   *float64 `json:"vwap,omitempty"`
}
