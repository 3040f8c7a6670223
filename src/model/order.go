package model

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusExecuting OrderStatus = "executing"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether the status belongs in the completed collection.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed || s == OrderStatusCancelled
}

// OrderType carries the KIS order division code on the wire.
type OrderType string

const (
	OrderTypeMarket OrderType = "01"
	OrderTypeLimit  OrderType = "00"
)

// BuyOrder is a queued buy waiting for the executor. An order lives in
// exactly one of the pending or completed collections.
type BuyOrder struct {
	OrderID     string      `json:"order_id"`
	Symbol      string      `json:"symbol"`
	StockName   string      `json:"stock_name"`
	TargetPrice float64     `json:"target_price"`
	Quantity    int64       `json:"quantity"`
	OrderType   OrderType   `json:"order_type"`
	AutoExecute bool        `json:"auto_execute"`
	Status      OrderStatus `json:"status"`

	RetryCount    int        `json:"retry_count"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	KISOrderID    string     `json:"kis_order_id,omitempty"`
	ActualPrice   *float64   `json:"actual_price,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ExecutedAt    *time.Time `json:"executed_at,omitempty"`
}
