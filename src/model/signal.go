package model

import "time"

// BuySignal is one qualifying price move waiting for confirmation.
// Active signals live in the processor's active set until confirmed,
// rejected or expired; all three outcomes are terminal.
type BuySignal struct {
	SignalID      string  `json:"signal_id"`
	Symbol        string  `json:"symbol"`
	StockName     string  `json:"stock_name"`
	TriggerPrice  float64 `json:"trigger_price"`
	CurrentPrice  float64 `json:"current_price"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	TriggerReason string  `json:"trigger_reason"`

	InvestmentAmount    float64       `json:"investment_amount"`
	AutoConfirm         bool          `json:"auto_confirm"`
	ConfirmationTimeout time.Duration `json:"confirmation_timeout"`

	IsConfirmed bool       `json:"is_confirmed"`
	IsProcessed bool       `json:"is_processed"`
	OrderID     string     `json:"order_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// TimeRemaining reports how long the signal may still be confirmed.
func (s *BuySignal) TimeRemaining(now time.Time) time.Duration {
	remaining := s.ConfirmationTimeout - now.Sub(s.CreatedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the confirmation window has elapsed.
func (s *BuySignal) Expired(now time.Time) bool {
	return now.Sub(s.CreatedAt) > s.ConfirmationTimeout
}
