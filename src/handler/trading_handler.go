package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"daytrader/src/model"
	"daytrader/src/trading"
)

type tradingControl interface {
	Start() error
	Stop()
	Summary() trading.TradingSummary
	ManualBuy(symbol, stockName string, targetPrice, investmentAmount float64) (string, error)
	ManualSell(positionID string) error
	EmergencyStop(reason string)
}

type signalControl interface {
	ActiveSignals() []model.BuySignal
	ProcessedSignals() []model.BuySignal
	ConfirmSignal(signalID string, investmentAmount float64) error
	RejectSignal(signalID, reason string) error
	CleanupExpiredSignals() int
}

type orderControl interface {
	AllOrders() (pending, completed []model.BuyOrder)
	CancelOrder(orderID string) error
}

type positionControl interface {
	ActivePositions() []model.Position
	ClosedPositions() []model.Position
	Summary() trading.PositionSummary
	ForceLiquidateAll() int
}

type exitControl interface {
	Status() trading.ExitStrategyStatus
	EvaluateExitConditions() []model.ExitRecommendation
	ForceExitAll(reason string) int
}

type lifecycle interface {
	Start()
	Stop()
	IsRunning() bool
}

// StartComponentHandler starts one background loop (position monitor,
// exit strategy).
func StartComponentHandler(component lifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		component.Start()
		writeJSON(w, http.StatusOK, map[string]interface{}{"running": component.IsRunning()})
	}
}

// StopComponentHandler stops one background loop.
func StopComponentHandler(component lifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		component.Stop()
		writeJSON(w, http.StatusOK, map[string]interface{}{"running": component.IsRunning()})
	}
}

// StartTradingHandler starts the trading pipeline.
func StartTradingHandler(control tradingControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := control.Start(); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"started": true})
	}
}

// StopTradingHandler stops the trading pipeline.
func StopTradingHandler(control tradingControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		control.Stop()
		writeJSON(w, http.StatusOK, map[string]interface{}{"stopped": true})
	}
}

// TradingSummaryHandler reports the full pipeline state.
func TradingSummaryHandler(control tradingControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, control.Summary())
	}
}

// EmergencyStopHandler cancels orders, liquidates the book and halts
// every loop.
func EmergencyStopHandler(control tradingControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Reason string `json:"reason"`
		}
		// Body is optional.
		_ = json.NewDecoder(r.Body).Decode(&body)

		control.EmergencyStop(body.Reason)
		writeJSON(w, http.StatusOK, map[string]interface{}{"emergency_stop": true})
	}
}

// signalView decorates an active signal with the remaining
// confirmation window.
type signalView struct {
	model.BuySignal
	TimeRemainingSeconds float64 `json:"time_remaining_seconds"`
}

// ListSignalsHandler lists active signals with their remaining
// confirmation time, or processed ones with ?state=processed.
func ListSignalsHandler(signals signalControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") == "processed" {
			writeJSON(w, http.StatusOK, signals.ProcessedSignals())
			return
		}

		now := time.Now()
		active := signals.ActiveSignals()
		views := make([]signalView, 0, len(active))
		for _, signal := range active {
			views = append(views, signalView{
				BuySignal:            signal,
				TimeRemainingSeconds: signal.TimeRemaining(now).Seconds(),
			})
		}
		writeJSON(w, http.StatusOK, views)
	}
}

// CleanupSignalsHandler retires every signal whose confirmation window
// has elapsed, freeing its pending slot.
func CleanupSignalsHandler(signals signalControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"expired": signals.CleanupExpiredSignals(),
		})
	}
}

// ConfirmSignalHandler confirms an active signal, optionally
// overriding the investment amount.
func ConfirmSignalHandler(signals signalControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		signalID := chi.URLParam(r, "signalID")

		var body struct {
			InvestmentAmount float64 `json:"investment_amount"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		if err := signals.ConfirmSignal(signalID, body.InvestmentAmount); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"confirmed": signalID})
	}
}

// RejectSignalHandler rejects an active signal.
func RejectSignalHandler(signals signalControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		signalID := chi.URLParam(r, "signalID")

		var body struct {
			Reason string `json:"reason"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		if err := signals.RejectSignal(signalID, body.Reason); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"rejected": signalID})
	}
}

// ManualBuyHandler queues a buy order outside the signal pipeline.
func ManualBuyHandler(control tradingControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Symbol           string  `json:"symbol"`
			StockName        string  `json:"stock_name"`
			TargetPrice      float64 `json:"target_price"`
			InvestmentAmount float64 `json:"investment_amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.Symbol == "" || body.TargetPrice <= 0 || body.InvestmentAmount <= 0 {
			http.Error(w, "symbol, positive target_price and investment_amount required", http.StatusBadRequest)
			return
		}

		orderID, err := control.ManualBuy(body.Symbol, body.StockName, body.TargetPrice, body.InvestmentAmount)
		if err != nil {
			logger.WithError(err).WithField("symbol", body.Symbol).Error("manual buy failed")
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"order_id": orderID})
	}
}

// ListOrdersHandler lists the pending and completed order collections.
func ListOrdersHandler(orders orderControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pending, completed := orders.AllOrders()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"pending":   pending,
			"completed": completed,
		})
	}
}

// CancelOrderHandler cancels a pending order.
func CancelOrderHandler(orders orderControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")

		if err := orders.CancelOrder(orderID); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"cancelled": orderID})
	}
}

// positionView decorates an active position with the remaining hold
// time.
type positionView struct {
	model.Position
	HoldTimeRemainingSeconds float64 `json:"hold_time_remaining_seconds"`
}

// ListPositionsHandler lists active positions with their remaining hold
// time; ?state=closed for the closed set. Summary included either way.
func ListPositionsHandler(positions positionControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") == "closed" {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"positions": positions.ClosedPositions(),
				"summary":   positions.Summary(),
			})
			return
		}

		now := time.Now()
		active := positions.ActivePositions()
		views := make([]positionView, 0, len(active))
		for _, position := range active {
			views = append(views, positionView{
				Position:                 position,
				HoldTimeRemainingSeconds: position.HoldTimeRemaining(now).Seconds(),
			})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"positions": views,
			"summary":   positions.Summary(),
		})
	}
}

// ClosePositionHandler closes one position at market.
func ClosePositionHandler(control tradingControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		positionID := chi.URLParam(r, "positionID")

		if err := control.ManualSell(positionID); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"closed": positionID})
	}
}

// LiquidateAllHandler force-closes every active position.
func LiquidateAllHandler(positions positionControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		closed := positions.ForceLiquidateAll()
		writeJSON(w, http.StatusOK, map[string]interface{}{"liquidated": closed})
	}
}

// ExitStatusHandler reports the exit strategy snapshot plus current
// recommendations.
func ExitStatusHandler(exits exitControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":          exits.Status(),
			"recommendations": exits.EvaluateExitConditions(),
		})
	}
}

// ForceExitHandler liquidates the book through the exit strategy.
func ForceExitHandler(exits exitControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Reason string `json:"reason"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Reason == "" {
			body.Reason = "Manual force exit"
		}

		closed := exits.ForceExitAll(body.Reason)
		writeJSON(w, http.StatusOK, map[string]interface{}{"closed": closed})
	}
}
