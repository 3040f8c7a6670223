package repository

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"daytrader/src/database"
	"daytrader/src/model"
)

// TradeRepository handles persistence for closed-trade history rows.
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new repository instance using the main
// read/write database.
func NewTradeRepository() *TradeRepository {
	logger.WithField("component", "TradeRepository").
		Info("Creating new TradeRepository with MainDB")

	return &TradeRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// SaveTradeRecord appends a closed-trade row. The position manager
// calls this on every close; failures are the caller's to tolerate.
func (r *TradeRepository) SaveTradeRecord(record *model.TradeRecord) error {
	return r.Create(context.Background(), record)
}

// Create inserts a new trade record.
func (r *TradeRepository) Create(ctx context.Context, record *model.TradeRecord) error {
	logger.WithFields(map[string]interface{}{
		"repo":        "TradeRepository",
		"op":          "Create",
		"position_id": record.PositionID,
		"symbol":      record.Symbol,
		"pnl":         record.Pnl,
	}).Debug("Creating trade record")

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create trade record")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo": "TradeRepository",
		"op":   "Create",
		"id":   record.ID,
	}).Info("Trade record created")

	return nil
}

// FindByDay returns every trade that exited on the given calendar day,
// oldest first.
func (r *TradeRepository) FindByDay(ctx context.Context, day time.Time) ([]model.TradeRecord, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	logger.WithFields(map[string]interface{}{
		"repo": "TradeRepository",
		"op":   "FindByDay",
		"day":  start.Format("2006-01-02"),
	}).Debug("Fetching trade records by day")

	var records []model.TradeRecord
	err := r.db.WithContext(ctx).
		Where("exit_time >= ? AND exit_time < ?", start, end).
		Order("exit_time ASC").
		Find(&records).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "FindByDay",
		}).WithError(err).Error("Failed to fetch trade records by day")
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "TradeRepository",
		"op":          "FindByDay",
		"rows_return": len(records),
	}).Info("Trade records by day fetched")

	return records, nil
}

// FindLatestBySymbol returns the latest trades for a symbol, newest
// first.
func (r *TradeRepository) FindLatestBySymbol(ctx context.Context, symbol string, limit int) ([]model.TradeRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	logger.WithFields(map[string]interface{}{
		"repo":   "TradeRepository",
		"op":     "FindLatestBySymbol",
		"symbol": symbol,
		"limit":  limit,
	}).Debug("Fetching latest trade records by symbol")

	var records []model.TradeRecord
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TradeRepository",
			"op":     "FindLatestBySymbol",
			"symbol": symbol,
		}).WithError(err).Error("Failed to fetch latest trade records by symbol")
		return nil, err
	}

	return records, nil
}
