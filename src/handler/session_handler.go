package handler

import (
	"encoding/json"
	"net/http"
	"time"

	logger "github.com/sirupsen/logrus"

	"daytrader/src/model"
	"daytrader/src/monitoring"
)

type sessionController interface {
	StartSession(inputs []monitoring.TargetInput) error
	StopSession()
	Status() model.SessionStatus
	AdjustThreshold(symbol string, newThreshold float64) error
}

type stockFilter interface {
	FilterStocks(conditions model.FilterConditions) ([]model.FilteredStock, error)
}

// StartSessionHandler seeds monitoring targets and starts the
// after-hours session.
func StartSessionHandler(session sessionController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Targets []monitoring.TargetInput `json:"targets"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if len(body.Targets) == 0 {
			http.Error(w, "targets must not be empty", http.StatusBadRequest)
			return
		}

		if err := session.StartSession(body.Targets); err != nil {
			logger.WithError(err).Error("failed to start monitoring session")
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"started": true,
			"targets": len(body.Targets),
		})
	}
}

// StopSessionHandler stops the monitoring session.
func StopSessionHandler(session sessionController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session.StopSession()
		writeJSON(w, http.StatusOK, map[string]interface{}{"stopped": true})
	}
}

// SessionStatusHandler reports the session snapshot.
func SessionStatusHandler(session sessionController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, session.Status())
	}
}

// AdjustThresholdHandler applies a manual per-target threshold change.
func AdjustThresholdHandler(session sessionController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Symbol    string  `json:"symbol"`
			Threshold float64 `json:"threshold"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.Symbol == "" || body.Threshold <= 0 {
			http.Error(w, "symbol and positive threshold required", http.StatusBadRequest)
			return
		}

		if err := session.AdjustThreshold(body.Symbol, body.Threshold); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"symbol":    body.Symbol,
			"threshold": body.Threshold,
		})
	}
}

// RecommendThresholdHandler surveys the market through the filter
// engine and returns a strategy-based threshold recommendation with
// alternative strategy suggestions.
func RecommendThresholdHandler(filter stockFilter) http.HandlerFunc {
	adjuster := monitoring.ThresholdAdjuster{}

	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			CurrentThreshold float64 `json:"current_threshold"`
			Strategy         string  `json:"strategy"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		strategy := model.AdjustmentStrategy(body.Strategy)
		if !model.ValidAdjustmentStrategy(strategy) {
			http.Error(w, "unknown strategy: "+body.Strategy, http.StatusBadRequest)
			return
		}
		if body.CurrentThreshold <= 0 {
			body.CurrentThreshold = monitoring.BaseThreshold
		}

		stocks, err := filter.FilterStocks(model.DefaultFilterConditions())
		if err != nil {
			logger.WithError(err).Error("market survey failed for threshold recommendation")
			http.Error(w, "market survey failed", http.StatusBadGateway)
			return
		}

		condition := adjuster.AnalyzeMarketCondition(stocks)
		recommendation := adjuster.CalculateAdjustment(body.CurrentThreshold, condition, time.Now(), strategy)

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"market_condition": condition,
			"recommendation":   recommendation,
			"suggestions":      adjuster.SuggestedStrategies(condition),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}
