package handler

import (
	"context"
	"net/http"
	"time"

	"daytrader/src/model"
)

type tradeHistory interface {
	FindByDay(ctx context.Context, day time.Time) ([]model.TradeRecord, error)
	FindLatestBySymbol(ctx context.Context, symbol string, limit int) ([]model.TradeRecord, error)
}

// ListTradesHandler returns trade history rows. ?day=2026-03-11 selects
// a calendar day (default today); ?symbol= switches to per-symbol
// latest.
func ListTradesHandler(store tradeHistory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if symbol := r.URL.Query().Get("symbol"); symbol != "" {
			trades, err := store.FindLatestBySymbol(r.Context(), symbol, 0)
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, trades)
			return
		}

		day := time.Now()
		if dayParam := r.URL.Query().Get("day"); dayParam != "" {
			parsed, err := time.ParseInLocation("2006-01-02", dayParam, time.Local)
			if err != nil {
				http.Error(w, "invalid day, want YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			day = parsed
		}

		trades, err := store.FindByDay(r.Context(), day)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, trades)
	}
}
