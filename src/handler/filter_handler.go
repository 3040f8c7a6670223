package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"daytrader/src/model"
)

type presetStore interface {
	Get(ctx context.Context, category, key string) (*model.ConditionPreset, error)
	Put(ctx context.Context, category, key, payload string) error
	Delete(ctx context.Context, category, key string) (bool, error)
	List(ctx context.Context, category string) ([]model.ConditionPreset, error)
}

// RunFilterHandler runs a filter pass with the posted conditions. An
// empty body falls back to the wide-open defaults.
func RunFilterHandler(filter stockFilter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conditions := model.DefaultFilterConditions()
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&conditions); err != nil {
				http.Error(w, "invalid filter conditions", http.StatusBadRequest)
				return
			}
		}

		stocks, err := filter.FilterStocks(conditions)
		if err != nil {
			logger.WithError(err).Error("filter pass failed")
			http.Error(w, "filter pass failed", http.StatusBadGateway)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"count":  len(stocks),
			"stocks": stocks,
		})
	}
}

// GetPresetHandler fetches one stored preset by category and key.
func GetPresetHandler(store presetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := chi.URLParam(r, "category")
		key := chi.URLParam(r, "key")

		preset, err := store.Get(r.Context(), category, key)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if preset == nil {
			http.Error(w, "preset not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, preset)
	}
}

// PutPresetHandler stores or replaces a preset payload.
func PutPresetHandler(store presetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := chi.URLParam(r, "category")
		key := chi.URLParam(r, "key")

		var body struct {
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Payload) == 0 {
			http.Error(w, "payload required", http.StatusBadRequest)
			return
		}

		if err := store.Put(r.Context(), category, key, string(body.Payload)); err != nil {
			logger.WithError(err).Error("failed to store preset")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"category": category,
			"key":      key,
		})
	}
}

// DeletePresetHandler removes a preset; 404 when it never existed.
func DeletePresetHandler(store presetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := chi.URLParam(r, "category")
		key := chi.URLParam(r, "key")

		deleted, err := store.Delete(r.Context(), category, key)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if !deleted {
			http.Error(w, "preset not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
	}
}

// ListPresetsHandler lists every preset in a category.
func ListPresetsHandler(store presetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := chi.URLParam(r, "category")

		presets, err := store.List(r.Context(), category)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, presets)
	}
}
