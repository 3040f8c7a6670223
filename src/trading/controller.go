package trading

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"daytrader/src/model"
	"daytrader/src/notify"
)

// defaultSignalThreshold applies when a buy signal arrives without a
// session-managed threshold attached.
const defaultSignalThreshold = 2.0

// Regular and after-hours windows, minutes from midnight.
const (
	afterHoursStartMinute = 16 * 60
	afterHoursEndMinute   = 17*60 + 40
)

// DailyStats accumulates the day's trading results.
type DailyStats struct {
	TradesExecuted  int     `json:"trades_executed"`
	PositionsOpened int     `json:"positions_opened"`
	PositionsClosed int     `json:"positions_closed"`
	WinningTrades   int     `json:"winning_trades"`
	TotalPnl        float64 `json:"total_pnl"`
	WinRate         float64 `json:"win_rate"`
}

// InvestmentLimits reports the daily budget state.
type InvestmentLimits struct {
	MaxDailyInvestment     float64 `json:"max_daily_investment"`
	CurrentDailyInvestment float64 `json:"current_daily_investment"`
	RemainingBudget        float64 `json:"remaining_budget"`
}

// MarketStatus is the clock-derived market state.
type MarketStatus struct {
	IsMarketHours bool   `json:"is_market_hours"`
	IsAfterHours  bool   `json:"is_after_hours"`
	CurrentTime   string `json:"current_time"`
	MarketPhase   string `json:"market_phase"`
}

// TradingSummary is the controller's full state report.
type TradingSummary struct {
	SystemRunning    bool               `json:"system_running"`
	MarketStatus     MarketStatus       `json:"market_status"`
	DailyStats       DailyStats         `json:"daily_stats"`
	InvestmentLimits InvestmentLimits   `json:"investment_limits"`
	Positions        PositionSummary    `json:"positions"`
	PendingOrders    []model.BuyOrder   `json:"pending_orders"`
	CompletedOrders  []model.BuyOrder   `json:"completed_orders"`
	ActiveSignals    []model.BuySignal  `json:"active_signals"`
	ExitStrategy     ExitStrategyStatus `json:"exit_strategy"`
}

// Controller owns the trading pipeline: it wires signals to orders to
// positions, enforces the position and daily budget caps and opens a
// position for every completed buy fill.
type Controller struct {
	config    Config
	signals   *SignalProcessor
	orders    *OrderExecutor
	positions *PositionManager
	exits     *ExitStrategy
	events    notify.Sink
	now       func() time.Time

	mu              sync.Mutex
	isRunning       bool
	dailyInvestment decimal.Decimal
	stats           DailyStats

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewController(config Config, signals *SignalProcessor, orders *OrderExecutor, positions *PositionManager, exits *ExitStrategy, events notify.Sink) *Controller {
	if events == nil {
		events = notify.NopSink{}
	}
	return &Controller{
		config:          config,
		signals:         signals,
		orders:          orders,
		positions:       positions,
		exits:           exits,
		events:          events,
		now:             time.Now,
		dailyInvestment: decimal.Zero,
	}
}

// Start launches the whole pipeline. The exit strategy only starts
// during market hours.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return fmt.Errorf("trading system is already running")
	}
	c.isRunning = true
	c.stop = make(chan struct{})
	c.mu.Unlock()

	logger.Info("starting integrated trading system")

	c.orders.Start()
	c.positions.Start()
	if c.isMarketHours() {
		c.exits.Start()
	}

	c.wg.Add(1)
	go c.consumeFills(c.stop)

	c.wg.Add(1)
	go c.signalCleanupLoop(c.stop)

	logger.Info("all trading components started")
	return nil
}

// signalCleanupLoop retires stale signals so they free the pending
// budget; without it ten unconfirmed signals block the pipeline for
// the rest of the day.
func (c *Controller) signalCleanupLoop(stop chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.SignalCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.sweepExpiredSignals()
		}
	}
}

func (c *Controller) sweepExpiredSignals() {
	if expired := c.signals.CleanupExpiredSignals(); expired > 0 {
		logger.WithField("expired", expired).Info("expired signals cleaned up")
	}
}

// Stop halts every component.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return
	}
	c.isRunning = false
	close(c.stop)
	c.mu.Unlock()

	logger.Info("stopping integrated trading system")

	c.orders.Stop()
	c.positions.Stop()
	c.exits.Stop()
	c.wg.Wait()

	logger.Info("all trading components stopped")
}

// IsRunning reports whether the pipeline is live.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isRunning
}

// consumeFills opens a position for every completed buy order and
// charges the fill against the daily budget.
func (c *Controller) consumeFills(stop chan struct{}) {
	defer c.wg.Done()

	for {
		select {
		case <-stop:
			return
		case fill := <-c.orders.Fills():
			c.handleFill(fill)
		}
	}
}

func (c *Controller) handleFill(fill model.BuyOrder) {
	price := fill.TargetPrice
	if fill.ActualPrice != nil {
		price = *fill.ActualPrice
	}

	positionID, err := c.positions.AddPosition(fill.Symbol, fill.StockName, price, fill.Quantity, 0, 0, 0)
	if err != nil {
		logger.WithError(err).WithField("order_id", fill.OrderID).Error("failed to open position for fill")
		return
	}

	spent := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(fill.Quantity))

	c.mu.Lock()
	c.dailyInvestment = c.dailyInvestment.Add(spent)
	c.stats.TradesExecuted++
	c.stats.PositionsOpened++
	c.mu.Unlock()

	logger.WithField("order_id", fill.OrderID).
		WithField("position_id", positionID).
		WithField("spent", spent.StringFixed(0)).
		Info("position opened from fill")
}

// RecordPositionClosed folds a closed position into the daily stats.
// The HTTP layer calls this when a position-closed event lands; the
// stats stay derived-on-close rather than recomputed per request.
func (c *Controller) RecordPositionClosed(pnl float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.PositionsClosed++
	c.stats.TotalPnl += pnl
	if pnl > 0 {
		c.stats.WinningTrades++
	}
	if c.stats.PositionsClosed > 0 {
		c.stats.WinRate = float64(c.stats.WinningTrades) / float64(c.stats.PositionsClosed) * 100
	}
}

// ProcessBuySignal feeds a price move into the signal pipeline after
// the budget and position-count guards.
func (c *Controller) ProcessBuySignal(symbol, stockName string, currentPrice, changePercent float64, volume int64, investmentAmount float64) (string, error) {
	amount := investmentAmount
	if amount <= 0 {
		amount = c.config.DefaultInvestmentAmount
	}

	if !c.canInvest(amount) {
		return "", fmt.Errorf("daily investment limit reached")
	}
	if len(c.positions.ActivePositions()) >= c.config.MaxPositions {
		return "", fmt.Errorf("maximum positions reached: %d", c.config.MaxPositions)
	}

	signal, err := c.signals.ProcessPriceUpdate(symbol, stockName, currentPrice, changePercent, volume, defaultSignalThreshold)
	if err != nil {
		return "", err
	}
	if signal == nil {
		return "", nil
	}

	logger.WithField("signal_id", signal.SignalID).Info("buy signal processed")
	return signal.SignalID, nil
}

// ProcessPriceUpdate lets the monitoring session feed triggered
// targets through the controller so the budget and position-count
// guards apply. Guard rejections drop the update without error; the
// session keeps the target triggered either way.
func (c *Controller) ProcessPriceUpdate(symbol, stockName string, currentPrice, changePercent float64, volume int64, thresholdPercent float64) (*model.BuySignal, error) {
	if !c.canInvest(c.config.DefaultInvestmentAmount) {
		logger.WithField("symbol", symbol).Warn("daily investment limit reached, dropping trigger")
		return nil, nil
	}
	if len(c.positions.ActivePositions()) >= c.config.MaxPositions {
		logger.WithField("symbol", symbol).Warn("maximum positions reached, dropping trigger")
		return nil, nil
	}
	return c.signals.ProcessPriceUpdate(symbol, stockName, currentPrice, changePercent, volume, thresholdPercent)
}

// ManualBuy queues a buy order outside the signal pipeline. The amount
// is charged against the budget at order time.
func (c *Controller) ManualBuy(symbol, stockName string, targetPrice, investmentAmount float64) (string, error) {
	if !c.canInvest(investmentAmount) {
		return "", fmt.Errorf("investment amount exceeds daily limit")
	}

	orderID, err := c.orders.AddBuyOrder(symbol, stockName, targetPrice, investmentAmount, true, model.OrderTypeMarket)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.dailyInvestment = c.dailyInvestment.Add(decimal.NewFromFloat(investmentAmount))
	c.mu.Unlock()

	logger.WithField("order_id", orderID).Info("manual buy order created")
	return orderID, nil
}

// ManualSell closes a position at market.
func (c *Controller) ManualSell(positionID string) error {
	if err := c.positions.ClosePosition(positionID, model.ExitReasonManual, 0); err != nil {
		return err
	}
	logger.WithField("position_id", positionID).Info("manual sell executed")
	return nil
}

// EmergencyStop cancels every pending order, liquidates the book and
// halts the system. Each step is best effort.
func (c *Controller) EmergencyStop(reason string) {
	if reason == "" {
		reason = "Emergency stop triggered"
	}
	logger.WithField("reason", reason).Error("EMERGENCY STOP")

	c.events.Publish(notify.NewEvent(notify.EventEmergencyStop, map[string]interface{}{
		"reason": reason,
	}))

	pending, _ := c.orders.AllOrders()
	for _, order := range pending {
		if err := c.orders.CancelOrder(order.OrderID); err != nil {
			logger.WithError(err).WithField("order_id", order.OrderID).Warn("emergency cancel failed")
		}
	}

	c.positions.ForceLiquidateAll()
	c.Stop()
}

// Summary assembles the full state report.
func (c *Controller) Summary() TradingSummary {
	now := c.now()
	pending, completed := c.orders.AllOrders()

	c.mu.Lock()
	running := c.isRunning
	stats := c.stats
	invested, _ := c.dailyInvestment.Float64()
	c.mu.Unlock()

	return TradingSummary{
		SystemRunning: running,
		MarketStatus: MarketStatus{
			IsMarketHours: c.isMarketHours(),
			IsAfterHours:  c.isAfterHours(),
			CurrentTime:   now.Format("15:04:05"),
			MarketPhase:   c.MarketPhase(),
		},
		DailyStats: stats,
		InvestmentLimits: InvestmentLimits{
			MaxDailyInvestment:     c.config.DailyInvestmentLimit,
			CurrentDailyInvestment: invested,
			RemainingBudget:        c.config.DailyInvestmentLimit - invested,
		},
		Positions:       c.positions.Summary(),
		PendingOrders:   pending,
		CompletedOrders: completed,
		ActiveSignals:   c.signals.ActiveSignals(),
		ExitStrategy:    c.exits.Status(),
	}
}

// MarketPhase labels the current slot of the trading day.
func (c *Controller) MarketPhase() string {
	minute := model.MinuteOfDay(c.now())

	switch {
	case minute < marketOpenMinute:
		return "pre_market"
	case minute <= marketCloseMinute:
		return "regular_hours"
	case minute >= afterHoursStartMinute && minute <= afterHoursEndMinute:
		return "after_hours"
	default:
		return "closed"
	}
}

func (c *Controller) canInvest(amount float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	limit := decimal.NewFromFloat(c.config.DailyInvestmentLimit)
	return c.dailyInvestment.Add(decimal.NewFromFloat(amount)).LessThanOrEqual(limit)
}

func (c *Controller) isMarketHours() bool {
	minute := model.MinuteOfDay(c.now())
	return minute >= marketOpenMinute && minute <= marketCloseMinute
}

func (c *Controller) isAfterHours() bool {
	minute := model.MinuteOfDay(c.now())
	return minute >= afterHoursStartMinute && minute <= afterHoursEndMinute
}
