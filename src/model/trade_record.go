package model

import "time"

// TradeRecord is the durable row written when a position closes.
// Best-effort history only; in-memory state stays authoritative while
// the system runs.
type TradeRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PositionID string    `gorm:"size:60;index" json:"position_id"`
	Symbol     string    `gorm:"size:20;index" json:"symbol"`
	StockName  string    `gorm:"size:120" json:"stock_name"`
	Quantity   int64     `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Pnl        float64   `json:"pnl"`
	PnlPercent float64   `json:"pnl_percent"`
	ExitReason string    `gorm:"size:40" json:"exit_reason"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `gorm:"index" json:"exit_time"`
	CreatedAt  time.Time `json:"created_at"`
}

func (TradeRecord) TableName() string {
	return "trade_records"
}

// ConditionPreset stores a named JSON payload (filter conditions,
// configuration presets) addressed by category and key.
type ConditionPreset struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Category  string    `gorm:"size:60;uniqueIndex:idx_presets_category_key" json:"category"`
	Key       string    `gorm:"size:120;uniqueIndex:idx_presets_category_key" json:"key"`
	Payload   string    `gorm:"type:text" json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ConditionPreset) TableName() string {
	return "condition_presets"
}
