package connectors

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:        srv.URL,
		AppKey:         "test-key",
		AppSecret:      "test-secret",
		AccessToken:    "test-token",
		AccountNumber:  "12345678",
		MockTrading:    true,
		RequestTimeout: 5 * time.Second,
	})
}

func TestGetCurrentPrice(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/uapi/domestic-stock/v1/quotations/inquire-price", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "test-key", r.Header.Get("appkey"))
		assert.Equal(t, "FHKST01010100", r.Header.Get("tr_id"))
		assert.Equal(t, "005930", r.URL.Query().Get("FID_INPUT_ISCD"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rt_cd":"0","output":{"stck_prpr":"71200","prdy_ctrt":"2.45","acml_vol":"1523000"}}`))
	}))

	quote, err := client.GetCurrentPrice("005930")
	require.NoError(t, err)

	assert.Equal(t, "005930", quote.Symbol)
	assert.Equal(t, 71200.0, quote.Price)
	assert.Equal(t, 2.45, quote.ChangePercent)
	assert.Equal(t, int64(1523000), quote.Volume)
}

func TestGetCurrentPriceAPIError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rt_cd":"1","msg_cd":"EGW00123","msg1":"token expired"}`))
	}))

	_, err := client.GetCurrentPrice("005930")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token expired")
}

func TestGetStockDetailAverageVolumeFallback(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rt_cd":"0","output":{"hts_kor_isnm":"Samsung","stck_prpr":"71200","prdy_ctrt":"2.45","acml_vol":"1523000"}}`))
	}))

	detail, err := client.GetStockDetail("005930")
	require.NoError(t, err)

	// No avrg_vol in the payload: the current volume stands in so the
	// volume ratio scores neutrally.
	assert.Equal(t, int64(1523000), detail.Volume)
	assert.Equal(t, int64(1523000), detail.AverageVolume)
}

func TestPlaceBuyOrderMockTradingTrID(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/uapi/domestic-stock/v1/trading/order-cash", r.URL.Path)
		assert.Equal(t, "VTTC0802U", r.Header.Get("tr_id"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rt_cd":"0","msg1":"ok","output":{"ODNO":"0000117057"}}`))
	}))

	result, err := client.PlaceBuyOrder("005930", 10, 71200, "01")
	require.NoError(t, err)

	assert.True(t, result.Successful)
	assert.Equal(t, "0000117057", result.KISOrderID)
}

func TestPlaceSellOrderRejected(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "VTTC0801U", r.Header.Get("tr_id"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rt_cd":"1","msg_cd":"APBK0013","msg1":"insufficient balance"}`))
	}))

	result, err := client.PlaceSellOrder("005930", 10, 0, "01")
	require.NoError(t, err)

	assert.False(t, result.Successful)
	assert.Equal(t, "insufficient balance", result.Message)
}

func TestIsRetryableResp(t *testing.T) {
	assert.True(t, isRetryableResp(nil, assert.AnError))
	assert.False(t, isRetryableResp(nil, nil))
}

func TestFoldMinuteCandles(t *testing.T) {
	// Newest-first, as the feed delivers.
	candles := []minuteCandle{
		{StckCntgHour: "153000", StckPrpr: "10500", CntgVol: "300"},
		{StckCntgHour: "140000", StckPrpr: "10000", CntgVol: "100"},
		{StckCntgHour: "093000", StckPrpr: "9800", CntgVol: "600"},
	}

	m := foldMinuteCandles(candles)

	assert.Equal(t, 3, m.DataPoints)
	assert.Equal(t, int64(1000), m.TotalVolume)
	assert.Equal(t, int64(400), m.LateSessionVolume)
	assert.InDelta(t, 5.0, m.LateSessionReturn, 0.001)
	assert.InDelta(t, 40.0, m.LateSessionVolumeRatio, 0.001)
	assert.InDelta(t, (10500*300+10000*100+9800*600)/1000.0, m.VWAP, 0.001)
}

func TestFoldMinuteCandlesEmpty(t *testing.T) {
	m := foldMinuteCandles(nil)

	assert.Zero(t, m.LateSessionReturn)
	assert.Zero(t, m.VWAP)
	assert.Zero(t, m.TotalVolume)
}
