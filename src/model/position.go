package model

import (
	"math"
	"time"
)

type PositionStatus string

const (
	PositionStatusActive      PositionStatus = "active"
	PositionStatusMonitoring  PositionStatus = "monitoring"
	PositionStatusExitPending PositionStatus = "exit_pending"
	PositionStatusClosed      PositionStatus = "closed"
	PositionStatusLiquidated  PositionStatus = "liquidated"
)

type ExitReason string

const (
	ExitReasonProfitTarget     ExitReason = "profit_target"
	ExitReasonStopLoss         ExitReason = "stop_loss"
	ExitReasonTimeBased        ExitReason = "time_based"
	ExitReasonManual           ExitReason = "manual"
	ExitReasonForceLiquidation ExitReason = "force_liquidation"
)

// priceHistoryCap bounds the per-position price update ring.
const priceHistoryCap = 100

// PriceUpdate is one recorded tick of a position's market price.
type PriceUpdate struct {
	Timestamp  time.Time `json:"timestamp"`
	Price      float64   `json:"price"`
	Pnl        float64   `json:"pnl"`
	PnlPercent float64   `json:"pnl_percent"`
}

// Position is one open trade and its lifecycle state. The position
// manager owns every instance; a position moves from the active map to
// the closed map exactly once.
type Position struct {
	PositionID string    `json:"position_id"`
	Symbol     string    `json:"symbol"`
	StockName  string    `json:"stock_name"`
	EntryPrice float64   `json:"entry_price"`
	Quantity   int64     `json:"quantity"`
	EntryTime  time.Time `json:"entry_time"`

	TargetProfitPercent float64 `json:"target_profit_percent"`
	StopLossPercent     float64 `json:"stop_loss_percent"`
	MaxHoldHours        float64 `json:"max_hold_hours"`

	Status            PositionStatus `json:"status"`
	CurrentPrice      float64        `json:"current_price"`
	CurrentPnl        float64        `json:"current_pnl"`
	CurrentPnlPercent float64        `json:"current_pnl_percent"`

	ExitPrice   *float64   `json:"exit_price,omitempty"`
	ExitTime    *time.Time `json:"exit_time,omitempty"`
	ExitReason  ExitReason `json:"exit_reason,omitempty"`
	ExitOrderID string     `json:"exit_order_id,omitempty"`

	HighestPrice float64       `json:"highest_price"`
	LowestPrice  float64       `json:"lowest_price"`
	PriceUpdates []PriceUpdate `json:"price_updates,omitempty"`
}

// UpdatePrice applies a new market price: pnl, running extremes and the
// capped history ring are all recomputed here and nowhere else.
func (p *Position) UpdatePrice(newPrice float64, now time.Time) {
	p.CurrentPrice = newPrice
	p.HighestPrice = math.Max(p.HighestPrice, newPrice)
	p.LowestPrice = math.Min(p.LowestPrice, newPrice)

	p.CurrentPnl = (newPrice - p.EntryPrice) * float64(p.Quantity)
	p.CurrentPnlPercent = (newPrice - p.EntryPrice) / p.EntryPrice * 100

	p.PriceUpdates = append(p.PriceUpdates, PriceUpdate{
		Timestamp:  now,
		Price:      newPrice,
		Pnl:        p.CurrentPnl,
		PnlPercent: p.CurrentPnlPercent,
	})
	if len(p.PriceUpdates) > priceHistoryCap {
		p.PriceUpdates = p.PriceUpdates[len(p.PriceUpdates)-priceHistoryCap:]
	}
}

// ShouldExit checks the exit conditions in fixed priority order:
// profit target, then stop loss, then max hold time. The first match
// wins, so one evaluation reports exactly one reason.
func (p *Position) ShouldExit(now time.Time) (bool, ExitReason) {
	if p.CurrentPnlPercent >= p.TargetProfitPercent {
		return true, ExitReasonProfitTarget
	}
	if p.CurrentPnlPercent <= p.StopLossPercent {
		return true, ExitReasonStopLoss
	}
	if now.Sub(p.EntryTime).Hours() >= p.MaxHoldHours {
		return true, ExitReasonTimeBased
	}
	return false, ""
}

// HoldTimeRemaining reports how long the position may still be held.
func (p *Position) HoldTimeRemaining(now time.Time) time.Duration {
	remaining := p.MaxHoldHours - now.Sub(p.EntryTime).Hours()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(remaining * float64(time.Hour))
}
