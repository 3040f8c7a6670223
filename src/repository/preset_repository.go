package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"daytrader/src/database"
	"daytrader/src/model"
)

// PresetRepository stores named JSON payloads (filter conditions,
// configuration presets) addressed by category and key.
type PresetRepository struct {
	db *gorm.DB
}

// NewPresetRepository creates a new repository instance using the main
// read/write database.
func NewPresetRepository() *PresetRepository {
	logger.WithField("component", "PresetRepository").
		Info("Creating new PresetRepository with MainDB")

	return &PresetRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *PresetRepository) WithDB(db *gorm.DB) *PresetRepository {
	return &PresetRepository{db: db}
}

// Get fetches a preset by category and key. Returns (nil, nil) when
// the preset does not exist.
func (r *PresetRepository) Get(ctx context.Context, category, key string) (*model.ConditionPreset, error) {
	logger.WithFields(map[string]interface{}{
		"repo":     "PresetRepository",
		"op":       "Get",
		"category": category,
		"key":      key,
	}).Debug("Fetching preset")

	var preset model.ConditionPreset
	err := r.db.WithContext(ctx).
		Where("category = ? AND key = ?", category, key).
		First(&preset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":     "PresetRepository",
			"op":       "Get",
			"category": category,
			"key":      key,
		}).WithError(err).Error("Failed to fetch preset")
		return nil, err
	}

	return &preset, nil
}

// Put creates the preset or replaces its payload when the
// category+key pair already exists.
func (r *PresetRepository) Put(ctx context.Context, category, key, payload string) error {
	logger.WithFields(map[string]interface{}{
		"repo":     "PresetRepository",
		"op":       "Put",
		"category": category,
		"key":      key,
	}).Debug("Storing preset")

	existing, err := r.Get(ctx, category, key)
	if err != nil {
		return err
	}

	if existing == nil {
		preset := &model.ConditionPreset{Category: category, Key: key, Payload: payload}
		if err := r.db.WithContext(ctx).Create(preset).Error; err != nil {
			logger.WithFields(map[string]interface{}{
				"repo":     "PresetRepository",
				"op":       "Put",
				"category": category,
				"key":      key,
			}).WithError(err).Error("Failed to create preset")
			return err
		}
		return nil
	}

	err = r.db.WithContext(ctx).
		Model(&model.ConditionPreset{}).
		Where("id = ?", existing.ID).
		Update("payload", payload).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "PresetRepository",
			"op":       "Put",
			"category": category,
			"key":      key,
		}).WithError(err).Error("Failed to update preset")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "PresetRepository",
		"op":       "Put",
		"category": category,
		"key":      key,
	}).Info("Preset stored")

	return nil
}

// Delete removes a preset. Returns false when nothing matched.
func (r *PresetRepository) Delete(ctx context.Context, category, key string) (bool, error) {
	logger.WithFields(map[string]interface{}{
		"repo":     "PresetRepository",
		"op":       "Delete",
		"category": category,
		"key":      key,
	}).Debug("Deleting preset")

	result := r.db.WithContext(ctx).
		Where("category = ? AND key = ?", category, key).
		Delete(&model.ConditionPreset{})
	if result.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "PresetRepository",
			"op":       "Delete",
			"category": category,
			"key":      key,
		}).WithError(result.Error).Error("Failed to delete preset")
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// List returns every preset in a category, newest first.
func (r *PresetRepository) List(ctx context.Context, category string) ([]model.ConditionPreset, error) {
	logger.WithFields(map[string]interface{}{
		"repo":     "PresetRepository",
		"op":       "List",
		"category": category,
	}).Debug("Listing presets")

	var presets []model.ConditionPreset
	err := r.db.WithContext(ctx).
		Where("category = ?", category).
		Order("id DESC").
		Find(&presets).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "PresetRepository",
			"op":       "List",
			"category": category,
		}).WithError(err).Error("Failed to list presets")
		return nil, err
	}

	return presets, nil
}
