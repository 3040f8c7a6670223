// REST API CLIENT FOR KIS (KOREA INVESTMENT & SECURITIES) DOMESTIC STOCK
// RESTY ONLY + INTERNAL RETRY
package connectors

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"
)

const (
	// Default retry configuration
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

// KIS index codes for the two domestic boards.
const (
	kospiIndexCode  = "0001"
	kosdaqIndexCode = "1001"
)

// APIResponse is the common KIS envelope. rt_cd "0" means success;
// the payload arrives in one of output/output1/output2 depending on
// the endpoint.
type APIResponse struct {
	RtCd    string          `json:"rt_cd"`
	MsgCd   string          `json:"msg_cd"`
	Msg1    string          `json:"msg1"`
	Output  json.RawMessage `json:"output"`
	Output1 json.RawMessage `json:"output1"`
	Output2 json.RawMessage `json:"output2"`
}

func (r *APIResponse) IsSuccessful() bool {
	return r.RtCd == "0"
}

// PriceQuote is the parsed current-price answer for one symbol.
type PriceQuote struct {
	Symbol        string
	Price         float64
	ChangePercent float64
	Volume        int64
}

// StockBasicInfo is the detail snapshot used by the stock filter.
type StockBasicInfo struct {
	Symbol        string
	Name          string
	Price         float64
	ChangePercent float64
	Volume        int64
	HighPrice     float64
	LowPrice      float64
	AverageVolume int64
	Sector        string
}

// VolumeRankEntry is one row of the volume ranking board.
type VolumeRankEntry struct {
	Symbol        string
	Name          string
	Price         float64
	ChangePercent float64
	Volume        int64
}

// OrderResult is the parsed answer of an order-cash call.
type OrderResult struct {
	Successful bool
	KISOrderID string
	Message    string
}

// MarketIndex carries the day's index returns for both boards.
type MarketIndex struct {
	KospiReturn  float64
	KosdaqReturn float64
}

// MarketReturn is the single figure downstream consumers key off.
func (m MarketIndex) MarketReturn() float64 {
	return m.KospiReturn
}

// MinuteMomentum aggregates the 1-minute chart of one symbol into the
// late-session figures the scorer consumes. The late window is
// 14:00-15:30.
type MinuteMomentum struct {
	LateSessionReturn      float64
	LateSessionVolumeRatio float64
	VWAP                   float64
	TotalVolume            int64
	LateSessionVolume      int64
	DataPoints             int
}

type Client struct {
	config Config
	http   *resty.Client
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

func NewClient(config Config) *Client {
	retryCount := defaultRetryAttempts - 1

	if config.BaseURL == "" {
		config.BaseURL = "https://openapivts.koreainvestment.com:29443"
		logger.Warnf("No base URL provided, using default: %s", config.BaseURL)
	}

	httpClient := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.RequestTimeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &Client{
		config: config,
		http:   httpClient,
	}
}

func (c *Client) doRequest(method, path, trID string, params map[string]string, body interface{}) (*APIResponse, error) {
	req := c.http.R().
		SetHeader("Authorization", "Bearer "+c.config.AccessToken).
		SetHeader("appkey", c.config.AppKey).
		SetHeader("appsecret", c.config.AppSecret).
		SetHeader("tr_id", trID).
		SetHeader("Content-Type", "application/json; charset=utf-8")

	if params != nil {
		req = req.SetQueryParams(params)
	}
	if body != nil {
		req = req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}

	raw := resp.Body()

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(raw))
	}

	var apiResp APIResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return nil, err
	}

	return &apiResp, nil
}

// parseFloat tolerates the empty strings KIS puts in numeric fields.
func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// -----------------------------
// QUOTATION METHODS
// -----------------------------

type priceOutput struct {
	StckPrpr string `json:"stck_prpr"`
	PrdyCtrt string `json:"prdy_ctrt"`
	AcmlVol  string `json:"acml_vol"`
}

func (c *Client) GetCurrentPrice(symbol string) (*PriceQuote, error) {
	params := map[string]string{
		"FID_COND_MRKT_DIV_CODE": "J",
		"FID_INPUT_ISCD":         symbol,
	}

	resp, err := c.doRequest("GET", "/uapi/domestic-stock/v1/quotations/inquire-price", "FHKST01010100", params, nil)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccessful() {
		return nil, fmt.Errorf("KIS error %s: %s", resp.MsgCd, resp.Msg1)
	}

	var out priceOutput
	if err := json.Unmarshal(resp.Output, &out); err != nil {
		return nil, err
	}

	return &PriceQuote{
		Symbol:        symbol,
		Price:         parseFloat(out.StckPrpr),
		ChangePercent: parseFloat(out.PrdyCtrt),
		Volume:        parseInt(out.AcmlVol),
	}, nil
}

type detailOutput struct {
	StckPrpr    string `json:"stck_prpr"`
	PrdyCtrt    string `json:"prdy_ctrt"`
	AcmlVol     string `json:"acml_vol"`
	StckMxpr    string `json:"stck_mxpr"`
	StckLlam    string `json:"stck_llam"`
	AvrgVol     string `json:"avrg_vol"`
	HtsKorIsnm  string `json:"hts_kor_isnm"`
	BstpKorIsnm string `json:"bstp_kor_isnm"`
}

func (c *Client) GetStockDetail(symbol string) (*StockBasicInfo, error) {
	params := map[string]string{
		"FID_COND_MRKT_DIV_CODE": "J",
		"FID_INPUT_ISCD":         symbol,
	}

	resp, err := c.doRequest("GET", "/uapi/domestic-stock/v1/quotations/inquire-price", "FHKST01010100", params, nil)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccessful() {
		return nil, fmt.Errorf("KIS error %s: %s", resp.MsgCd, resp.Msg1)
	}

	var out detailOutput
	if err := json.Unmarshal(resp.Output, &out); err != nil {
		return nil, err
	}

	volume := parseInt(out.AcmlVol)
	avgVolume := parseInt(out.AvrgVol)
	if avgVolume <= 0 {
		// Missing average volume degrades to the current volume so the
		// volume ratio scores neutrally instead of zero.
		avgVolume = volume
	}

	return &StockBasicInfo{
		Symbol:        symbol,
		Name:          out.HtsKorIsnm,
		Price:         parseFloat(out.StckPrpr),
		ChangePercent: parseFloat(out.PrdyCtrt),
		Volume:        volume,
		HighPrice:     parseFloat(out.StckMxpr),
		LowPrice:      parseFloat(out.StckLlam),
		AverageVolume: avgVolume,
		Sector:        out.BstpKorIsnm,
	}, nil
}

type volumeRankRow struct {
	MkscShrnIscd string `json:"mksc_shrn_iscd"`
	HtsKorIsnm   string `json:"hts_kor_isnm"`
	StckPrpr     string `json:"stck_prpr"`
	PrdyCtrt     string `json:"prdy_ctrt"`
	AcmlVol      string `json:"acml_vol"`
}

func (c *Client) GetVolumeRanking() ([]VolumeRankEntry, error) {
	params := map[string]string{
		"FID_COND_MRKT_DIV_CODE": "J",
		"FID_COND_SCR_DIV_CODE":  "20171",
		"FID_INPUT_ISCD":         "0000",
		"FID_DIV_CLS_CODE":       "0",
		"FID_BLNG_CLS_CODE":      "0",
		"FID_TRGT_CLS_CODE":      "111111111",
		"FID_TRGT_EXLS_CLS_CODE": "000000",
		"FID_INPUT_PRICE_1":      "",
		"FID_INPUT_PRICE_2":      "",
		"FID_VOL_CNT":            "",
		"FID_INPUT_DATE_1":       "",
	}

	resp, err := c.doRequest("GET", "/uapi/domestic-stock/v1/quotations/volume-rank", "FHKST01010600", params, nil)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccessful() {
		return nil, fmt.Errorf("KIS error %s: %s", resp.MsgCd, resp.Msg1)
	}

	var rows []volumeRankRow
	if err := json.Unmarshal(resp.Output, &rows); err != nil {
		return nil, err
	}

	entries := make([]VolumeRankEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, VolumeRankEntry{
			Symbol:        row.MkscShrnIscd,
			Name:          row.HtsKorIsnm,
			Price:         parseFloat(row.StckPrpr),
			ChangePercent: parseFloat(row.PrdyCtrt),
			Volume:        parseInt(row.AcmlVol),
		})
	}
	return entries, nil
}

// GetAllStocksBasicInfo resolves the volume ranking board into detail
// snapshots. Symbols whose detail lookup fails are skipped, not fatal.
func (c *Client) GetAllStocksBasicInfo() ([]StockBasicInfo, error) {
	ranking, err := c.GetVolumeRanking()
	if err != nil {
		return nil, err
	}

	stocks := make([]StockBasicInfo, 0, len(ranking))
	for _, entry := range ranking {
		detail, err := c.GetStockDetail(entry.Symbol)
		if err != nil {
			logger.WithError(err).WithField("symbol", entry.Symbol).Warn("skipping stock detail")
			continue
		}
		if detail.Name == "" {
			detail.Name = entry.Name
		}
		stocks = append(stocks, *detail)
	}
	return stocks, nil
}

func (c *Client) GetMarketIndex() (*MarketIndex, error) {
	kospi, err := c.indexReturn(kospiIndexCode)
	if err != nil {
		return nil, err
	}
	kosdaq, err := c.indexReturn(kosdaqIndexCode)
	if err != nil {
		return nil, err
	}
	return &MarketIndex{KospiReturn: kospi, KosdaqReturn: kosdaq}, nil
}

func (c *Client) indexReturn(code string) (float64, error) {
	params := map[string]string{
		"FID_COND_MRKT_DIV_CODE": "U",
		"FID_INPUT_ISCD":         code,
	}

	resp, err := c.doRequest("GET", "/uapi/domestic-stock/v1/quotations/inquire-price", "FHKST01010100", params, nil)
	if err != nil {
		return 0, err
	}
	if !resp.IsSuccessful() {
		return 0, fmt.Errorf("KIS error %s: %s", resp.MsgCd, resp.Msg1)
	}

	var out priceOutput
	if err := json.Unmarshal(resp.Output, &out); err != nil {
		return 0, err
	}
	return parseFloat(out.PrdyCtrt), nil
}

type minuteCandle struct {
	StckCntgHour string `json:"stck_cntg_hour"`
	StckPrpr     string `json:"stck_prpr"`
	CntgVol      string `json:"cntg_vol"`
}

// GetMinuteMomentum pulls the 1-minute chart and folds it into the
// late-session return, volume ratio and VWAP figures.
func (c *Client) GetMinuteMomentum(symbol string) (*MinuteMomentum, error) {
	params := map[string]string{
		"FID_ETC_CLS_CODE":       "",
		"FID_COND_MRKT_DIV_CODE": "J",
		"FID_INPUT_ISCD":         symbol,
		"FID_INPUT_HOUR_1":       "153000",
		"FID_PW_DATA_INCU_YN":    "Y",
	}

	resp, err := c.doRequest("GET", "/uapi/domestic-stock/v1/quotations/inquire-time-itemchartprice", "FHKST03010200", params, nil)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccessful() {
		return nil, fmt.Errorf("KIS error %s: %s", resp.MsgCd, resp.Msg1)
	}

	var candles []minuteCandle
	if err := json.Unmarshal(resp.Output2, &candles); err != nil {
		return nil, err
	}

	return foldMinuteCandles(candles), nil
}

// foldMinuteCandles is the pure aggregation over a chronologically
// unordered candle slice. The feed delivers newest-first.
func foldMinuteCandles(candles []minuteCandle) *MinuteMomentum {
	sorted := make([]minuteCandle, len(candles))
	copy(sorted, candles)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].StckCntgHour < sorted[j-1].StckCntgHour; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	m := &MinuteMomentum{DataPoints: len(sorted)}

	var latePrices []float64
	var priceVolume float64
	for _, candle := range sorted {
		price := parseFloat(candle.StckPrpr)
		volume := parseInt(candle.CntgVol)

		m.TotalVolume += volume
		priceVolume += price * float64(volume)

		if candle.StckCntgHour >= "140000" && candle.StckCntgHour <= "153000" {
			latePrices = append(latePrices, price)
			m.LateSessionVolume += volume
		}
	}

	if len(latePrices) >= 2 && latePrices[0] > 0 {
		m.LateSessionReturn = (latePrices[len(latePrices)-1] - latePrices[0]) / latePrices[0] * 100
	}
	if m.TotalVolume > 0 {
		m.LateSessionVolumeRatio = float64(m.LateSessionVolume) / float64(m.TotalVolume) * 100
		m.VWAP = priceVolume / float64(m.TotalVolume)
	}
	return m
}

// -----------------------------
// TRADING METHODS
// -----------------------------

type orderOutput struct {
	Odno string `json:"ODNO"`
}

func (c *Client) PlaceBuyOrder(symbol string, quantity int64, price float64, orderType string) (*OrderResult, error) {
	trID := "TTTC0802U"
	if c.config.MockTrading {
		trID = "VTTC0802U"
	}
	return c.placeOrder(trID, symbol, quantity, price, orderType)
}

func (c *Client) PlaceSellOrder(symbol string, quantity int64, price float64, orderType string) (*OrderResult, error) {
	trID := "TTTC0801U"
	if c.config.MockTrading {
		trID = "VTTC0801U"
	}
	return c.placeOrder(trID, symbol, quantity, price, orderType)
}

func (c *Client) placeOrder(trID, symbol string, quantity int64, price float64, orderType string) (*OrderResult, error) {
	unitPrice := "0"
	if orderType == "00" {
		unitPrice = strconv.FormatInt(int64(price), 10)
	}

	body := map[string]string{
		"CANO":         c.config.AccountNumber,
		"ACNT_PRDT_CD": c.config.AccountProductCode,
		"PDNO":         symbol,
		"ORD_DVSN":     orderType,
		"ORD_QTY":      strconv.FormatInt(quantity, 10),
		"ORD_UNPR":     unitPrice,
	}

	logger.WithField("symbol", symbol).WithField("quantity", quantity).WithField("tr_id", trID).Info("placing order")

	resp, err := c.doRequest("POST", "/uapi/domestic-stock/v1/trading/order-cash", trID, nil, body)
	if err != nil {
		return nil, err
	}

	result := &OrderResult{
		Successful: resp.IsSuccessful(),
		Message:    resp.Msg1,
	}
	if len(resp.Output) > 0 {
		var out orderOutput
		if err := json.Unmarshal(resp.Output, &out); err == nil {
			result.KISOrderID = out.Odno
		}
	}
	return result, nil
}
