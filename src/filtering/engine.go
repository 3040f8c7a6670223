package filtering

import (
	"sort"

	logger "github.com/sirupsen/logrus"

	"daytrader/src/connectors"
	"daytrader/src/model"
)

// defaultMarketReturn stands in when the index lookup fails.
const defaultMarketReturn = 2.0

// MarketData is the market access the engine needs.
type MarketData interface {
	GetAllStocksBasicInfo() ([]connectors.StockBasicInfo, error)
	GetMarketIndex() (*connectors.MarketIndex, error)
	GetMinuteMomentum(symbol string) (*connectors.MinuteMomentum, error)
}

// advancedData carries the per-symbol momentum figures. When the
// minute feed is unavailable the stock keeps neutral defaults rather
// than being dropped.
type advancedData struct {
	LateSessionReturn      float64
	LateSessionVolumeRatio float64
	VWAP                   float64
	VWAPRatio              float64
	RelativeReturn         float64
}

func neutralAdvancedData(price, changePercent, marketReturn float64) advancedData {
	return advancedData{
		LateSessionReturn:      0,
		LateSessionVolumeRatio: 15.0,
		VWAP:                   price,
		VWAPRatio:              100.0,
		RelativeReturn:         changePercent - marketReturn,
	}
}

// Engine runs the scan-score-filter pass over the market.
type Engine struct {
	market MarketData
	scorer Scorer
}

func NewEngine(market MarketData) *Engine {
	return &Engine{market: market}
}

// FilterStocks surveys the volume board, scores every candidate against
// the conditions and returns the survivors sorted by score descending.
func (e *Engine) FilterStocks(conditions model.FilterConditions) ([]model.FilteredStock, error) {
	stocks, err := e.market.GetAllStocksBasicInfo()
	if err != nil {
		return nil, err
	}

	marketReturn := defaultMarketReturn
	if index, err := e.market.GetMarketIndex(); err != nil {
		logger.WithError(err).Warn("market index unavailable, using default return")
	} else {
		marketReturn = index.MarketReturn()
	}

	filtered := make([]model.FilteredStock, 0, len(stocks))
	for _, stock := range stocks {
		candidate := e.evaluateStock(stock, conditions, marketReturn)
		if candidate != nil {
			filtered = append(filtered, *candidate)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})

	logger.WithField("candidates", len(stocks)).WithField("passed", len(filtered)).Info("stock filtering complete")
	return filtered, nil
}

func (e *Engine) evaluateStock(stock connectors.StockBasicInfo, conditions model.FilterConditions, marketReturn float64) *model.FilteredStock {
	if stock.Symbol == "" || stock.Price <= 0 {
		return nil
	}
	if !passesBasicFilters(stock, conditions) {
		return nil
	}
	if conditions.IsExcluded(stock.Symbol) {
		return nil
	}

	advanced := e.advancedMomentum(stock, marketReturn)
	if !passesAdvancedFilters(advanced, conditions) {
		return nil
	}

	score := e.scorer.TotalScore(
		stock.Price, stock.Volume, stock.AverageVolume,
		stock.ChangePercent, stock.HighPrice, stock.LowPrice,
		conditions.MinPrice, conditions.MaxPrice,
	)

	momentum := stock.ChangePercent
	strength := e.scorer.StrengthScore(stock.Price, stock.HighPrice, stock.LowPrice)

	if momentum < conditions.MinMomentum || momentum > conditions.MaxMomentum {
		return nil
	}
	if strength < conditions.MinStrength || strength > conditions.MaxStrength {
		return nil
	}

	reasons := filterReasons(score, momentum, strength, stock.Volume, stock.AverageVolume, advanced)

	return &model.FilteredStock{
		Symbol:   stock.Symbol,
		Name:     stock.Name,
		Score:    score,
		Price:    stock.Price,
		Volume:   stock.Volume,
		Momentum: momentum,
		Strength: strength,
		Sector:   stock.Sector,
		Reasons:  reasons,

		LateSessionReturn:      floatPtr(advanced.LateSessionReturn),
		LateSessionVolumeRatio: floatPtr(advanced.LateSessionVolumeRatio),
		RelativeReturn:         floatPtr(advanced.RelativeReturn),
		VWAPRatio:              floatPtr(advanced.VWAPRatio),
		VWAP:                   floatPtr(advanced.VWAP),
	}
}

func (e *Engine) advancedMomentum(stock connectors.StockBasicInfo, marketReturn float64) advancedData {
	momentum, err := e.market.GetMinuteMomentum(stock.Symbol)
	if err != nil {
		logger.WithError(err).WithField("symbol", stock.Symbol).Warn("minute data unavailable, using defaults")
		return neutralAdvancedData(stock.Price, stock.ChangePercent, defaultMarketReturn)
	}

	vwapRatio := 100.0
	if momentum.VWAP > 0 {
		vwapRatio = stock.Price / momentum.VWAP * 100
	}

	return advancedData{
		LateSessionReturn:      momentum.LateSessionReturn,
		LateSessionVolumeRatio: momentum.LateSessionVolumeRatio,
		VWAP:                   momentum.VWAP,
		VWAPRatio:              vwapRatio,
		RelativeReturn:         stock.ChangePercent - marketReturn,
	}
}

func passesBasicFilters(stock connectors.StockBasicInfo, conditions model.FilterConditions) bool {
	return stock.Price >= conditions.MinPrice && stock.Price <= conditions.MaxPrice &&
		stock.Volume >= conditions.MinVolume && stock.Volume <= conditions.MaxVolume &&
		stock.ChangePercent >= conditions.MinMomentum && stock.ChangePercent <= conditions.MaxMomentum
}

func passesAdvancedFilters(advanced advancedData, conditions model.FilterConditions) bool {
	if conditions.MinLateSessionReturn != nil && advanced.LateSessionReturn < *conditions.MinLateSessionReturn {
		return false
	}
	if conditions.MaxLateSessionReturn != nil && advanced.LateSessionReturn > *conditions.MaxLateSessionReturn {
		return false
	}
	if conditions.MinLateSessionVolumeRatio != nil && advanced.LateSessionVolumeRatio < *conditions.MinLateSessionVolumeRatio {
		return false
	}
	if conditions.MaxLateSessionVolumeRatio != nil && advanced.LateSessionVolumeRatio > *conditions.MaxLateSessionVolumeRatio {
		return false
	}
	if conditions.MinRelativeReturn != nil && advanced.RelativeReturn < *conditions.MinRelativeReturn {
		return false
	}
	if conditions.MaxRelativeReturn != nil && advanced.RelativeReturn > *conditions.MaxRelativeReturn {
		return false
	}
	if conditions.MinVWAPRatio != nil && advanced.VWAPRatio < *conditions.MinVWAPRatio {
		return false
	}
	if conditions.MaxVWAPRatio != nil && advanced.VWAPRatio > *conditions.MaxVWAPRatio {
		return false
	}
	return true
}

func filterReasons(score, momentum, strength float64, volume, avgVolume int64, advanced advancedData) []string {
	var reasons []string

	if score >= 80 {
		reasons = append(reasons, "High overall score")
	} else if score >= 60 {
		reasons = append(reasons, "Good overall score")
	}

	if momentum >= 5 {
		reasons = append(reasons, "Strong upward momentum")
	} else if momentum >= 2 {
		reasons = append(reasons, "Positive momentum")
	}

	if strength >= 80 {
		reasons = append(reasons, "Trading near daily high")
	} else if strength >= 60 {
		reasons = append(reasons, "Strong intraday position")
	}

	if float64(volume) > float64(avgVolume)*1.5 {
		reasons = append(reasons, "High volume activity")
	} else if volume > avgVolume {
		reasons = append(reasons, "Above average volume")
	}

	if advanced.LateSessionReturn >= 2.0 {
		reasons = append(reasons, "Strong late session momentum")
	} else if advanced.LateSessionReturn >= 1.0 {
		reasons = append(reasons, "Positive late session trend")
	}
	if advanced.LateSessionVolumeRatio >= 20 {
		reasons = append(reasons, "High late session volume concentration")
	}
	if advanced.RelativeReturn >= 1.0 {
		reasons = append(reasons, "Outperforming market index")
	}
	if advanced.VWAPRatio >= 102 {
		reasons = append(reasons, "Trading above VWAP")
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "Meets basic criteria")
	}
	return reasons
}

func floatPtr(v float64) *float64 {
	return &v
}
