package filtering

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daytrader/src/connectors"
	"daytrader/src/model"
)

type fakeMarket struct {
	stocks      []connectors.StockBasicInfo
	stocksErr   error
	index       *connectors.MarketIndex
	indexErr    error
	momentum    map[string]*connectors.MinuteMomentum
	momentumErr error
}

func (f *fakeMarket) GetAllStocksBasicInfo() ([]connectors.StockBasicInfo, error) {
	return f.stocks, f.stocksErr
}

func (f *fakeMarket) GetMarketIndex() (*connectors.MarketIndex, error) {
	return f.index, f.indexErr
}

func (f *fakeMarket) GetMinuteMomentum(symbol string) (*connectors.MinuteMomentum, error) {
	if f.momentumErr != nil {
		return nil, f.momentumErr
	}
	if m, ok := f.momentum[symbol]; ok {
		return m, nil
	}
	return &connectors.MinuteMomentum{}, nil
}

func testStock(symbol string, price, change float64, volume int64) connectors.StockBasicInfo {
	return connectors.StockBasicInfo{
		Symbol:        symbol,
		Name:          symbol + " Corp",
		Price:         price,
		ChangePercent: change,
		Volume:        volume,
		HighPrice:     price * 1.02,
		LowPrice:      price * 0.95,
		AverageVolume: volume / 2,
	}
}

func TestFilterStocksSortedByScore(t *testing.T) {
	market := &fakeMarket{
		stocks: []connectors.StockBasicInfo{
			testStock("005930", 50000, 1.0, 500000),
			testStock("000660", 50000, 8.0, 900000),
			testStock("035720", 50000, 4.0, 700000),
		},
		index: &connectors.MarketIndex{KospiReturn: 1.2},
	}

	engine := NewEngine(market)
	result, err := engine.FilterStocks(model.DefaultFilterConditions())
	require.NoError(t, err)
	require.Len(t, result, 3)

	assert.Equal(t, "000660", result[0].Symbol)
	assert.GreaterOrEqual(t, result[0].Score, result[1].Score)
	assert.GreaterOrEqual(t, result[1].Score, result[2].Score)
}

func TestFilterStocksBasicBounds(t *testing.T) {
	market := &fakeMarket{
		stocks: []connectors.StockBasicInfo{
			testStock("005930", 50000, 3.0, 500000),
			testStock("100000", 200, 3.0, 500000),  // below min price
			testStock("200000", 50000, 3.0, 1000),  // below min volume
			testStock("300000", 50000, -5.0, 500000), // below min momentum
		},
		index: &connectors.MarketIndex{KospiReturn: 1.0},
	}

	conditions := model.DefaultFilterConditions()
	conditions.MinPrice = 1000
	conditions.MinVolume = 100000
	conditions.MinMomentum = 0

	engine := NewEngine(market)
	result, err := engine.FilterStocks(conditions)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "005930", result[0].Symbol)
}

func TestFilterStocksExclusionList(t *testing.T) {
	market := &fakeMarket{
		stocks: []connectors.StockBasicInfo{
			testStock("005930", 50000, 3.0, 500000),
			testStock("000660", 50000, 3.0, 500000),
		},
		index: &connectors.MarketIndex{},
	}

	conditions := model.DefaultFilterConditions()
	conditions.ExcludedSymbols = []string{"000660"}

	engine := NewEngine(market)
	result, err := engine.FilterStocks(conditions)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "005930", result[0].Symbol)
}

func TestFilterStocksSkipsInvalidRows(t *testing.T) {
	market := &fakeMarket{
		stocks: []connectors.StockBasicInfo{
			{Symbol: "", Price: 50000},
			{Symbol: "005930", Price: 0},
			testStock("000660", 50000, 3.0, 500000),
		},
		index: &connectors.MarketIndex{},
	}

	engine := NewEngine(market)
	result, err := engine.FilterStocks(model.DefaultFilterConditions())
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "000660", result[0].Symbol)
}

func TestFilterStocksAdvancedBounds(t *testing.T) {
	market := &fakeMarket{
		stocks: []connectors.StockBasicInfo{
			testStock("005930", 50000, 3.0, 500000),
			testStock("000660", 50000, 3.0, 500000),
		},
		index: &connectors.MarketIndex{KospiReturn: 1.0},
		momentum: map[string]*connectors.MinuteMomentum{
			"005930": {LateSessionReturn: 2.5, LateSessionVolumeRatio: 25, VWAP: 49000},
			"000660": {LateSessionReturn: -1.0, LateSessionVolumeRatio: 10, VWAP: 51000},
		},
	}

	minLate := 1.0
	conditions := model.DefaultFilterConditions()
	conditions.MinLateSessionReturn = &minLate

	engine := NewEngine(market)
	result, err := engine.FilterStocks(conditions)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "005930", result[0].Symbol)
	require.NotNil(t, result[0].LateSessionReturn)
	assert.Equal(t, 2.5, *result[0].LateSessionReturn)
}

func TestFilterStocksMinuteDataFailureDegrades(t *testing.T) {
	market := &fakeMarket{
		stocks: []connectors.StockBasicInfo{
			testStock("005930", 50000, 3.0, 500000),
		},
		index:       &connectors.MarketIndex{KospiReturn: 1.0},
		momentumErr: errors.New("feed down"),
	}

	engine := NewEngine(market)
	result, err := engine.FilterStocks(model.DefaultFilterConditions())
	require.NoError(t, err)
	require.Len(t, result, 1)

	// Neutral defaults, not a dropped stock.
	assert.Equal(t, 0.0, *result[0].LateSessionReturn)
	assert.Equal(t, 15.0, *result[0].LateSessionVolumeRatio)
	assert.Equal(t, 100.0, *result[0].VWAPRatio)
	assert.Equal(t, 1.0, *result[0].RelativeReturn)
}

func TestFilterStocksSurveyFailure(t *testing.T) {
	market := &fakeMarket{stocksErr: errors.New("ranking unavailable")}

	engine := NewEngine(market)
	_, err := engine.FilterStocks(model.DefaultFilterConditions())
	require.Error(t, err)
}

func TestFilterStocksReasonsPopulated(t *testing.T) {
	market := &fakeMarket{
		stocks: []connectors.StockBasicInfo{
			testStock("005930", 50000, 6.0, 900000),
		},
		index: &connectors.MarketIndex{KospiReturn: 1.0},
	}

	engine := NewEngine(market)
	result, err := engine.FilterStocks(model.DefaultFilterConditions())
	require.NoError(t, err)
	require.Len(t, result, 1)

	assert.Contains(t, result[0].Reasons, "Strong upward momentum")
	assert.Contains(t, result[0].Reasons, "High volume activity")
}
