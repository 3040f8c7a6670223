package trading

import (
	"fmt"
	"math"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"daytrader/src/connectors"
	"daytrader/src/model"
	"daytrader/src/notify"
)

// forceLiquidationMinute is 15:20, ten minutes before market close.
const forceLiquidationMinute = 15*60 + 20

// PositionBroker is the market access the position manager needs.
type PositionBroker interface {
	PlaceSellOrder(symbol string, quantity int64, price float64, orderType string) (*connectors.OrderResult, error)
	GetCurrentPrice(symbol string) (*connectors.PriceQuote, error)
}

// TradeStore persists closed positions. Persistence is best effort;
// a store failure never blocks the close.
type TradeStore interface {
	SaveTradeRecord(record *model.TradeRecord) error
}

// PositionSummary aggregates the active book.
type PositionSummary struct {
	ActivePositions   int              `json:"active_positions"`
	TotalInvestment   float64          `json:"total_investment"`
	TotalCurrentValue float64          `json:"total_current_value"`
	TotalPnl          float64          `json:"total_pnl"`
	TotalPnlPercent   float64          `json:"total_pnl_percent"`
	Positions         []model.Position `json:"positions"`
}

// PositionManager tracks open positions, polls their prices and closes
// them when an exit condition fires. Past 15:20 everything still open
// is force liquidated.
type PositionManager struct {
	config Config
	broker PositionBroker
	store  TradeStore
	events notify.Sink
	now    func() time.Time

	mu        sync.Mutex
	isRunning bool
	active    map[string]*model.Position
	closed    map[string]*model.Position

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewPositionManager(config Config, broker PositionBroker, store TradeStore, events notify.Sink) *PositionManager {
	if events == nil {
		events = notify.NopSink{}
	}
	return &PositionManager{
		config: config,
		broker: broker,
		store:  store,
		events: events,
		now:    time.Now,
		active: make(map[string]*model.Position),
		closed: make(map[string]*model.Position),
	}
}

func (m *PositionManager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		logger.Warn("position manager is already running")
		return
	}

	m.isRunning = true
	m.stop = make(chan struct{})
	m.wg.Add(1)
	go m.monitoringLoop(m.stop)

	logger.Info("position manager started")
}

func (m *PositionManager) Stop() {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = false
	close(m.stop)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		logger.Warn("timed out waiting for position manager to stop")
	}

	logger.Info("position manager stopped")
}

// IsRunning reports whether the monitoring loop is live.
func (m *PositionManager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRunning
}

// AddPosition opens a new position. Zero target/stop/hold values take
// the configured defaults.
func (m *PositionManager) AddPosition(symbol, stockName string, entryPrice float64, quantity int64, targetProfit, stopLoss, maxHoldHours float64) (string, error) {
	if entryPrice <= 0 || quantity <= 0 {
		return "", fmt.Errorf("invalid position parameters: price %.2f, quantity %d", entryPrice, quantity)
	}

	if targetProfit == 0 {
		targetProfit = m.config.TargetProfitPercent
	}
	if stopLoss == 0 {
		stopLoss = m.config.StopLossPercent
	}
	if maxHoldHours == 0 {
		maxHoldHours = m.config.MaxHoldHours
	}

	now := m.now()
	position := &model.Position{
		PositionID:          newEntityID("POS", symbol, now),
		Symbol:              symbol,
		StockName:           stockName,
		EntryPrice:          entryPrice,
		Quantity:            quantity,
		EntryTime:           now,
		TargetProfitPercent: targetProfit,
		StopLossPercent:     stopLoss,
		MaxHoldHours:        maxHoldHours,
		Status:              model.PositionStatusActive,
		CurrentPrice:        entryPrice,
		HighestPrice:        entryPrice,
		LowestPrice:         entryPrice,
	}

	m.mu.Lock()
	m.active[position.PositionID] = position
	m.mu.Unlock()

	logger.WithField("position_id", position.PositionID).
		WithField("symbol", symbol).
		WithField("quantity", quantity).
		Info("position added")

	m.events.Publish(notify.NewEvent(notify.EventPositionOpened, map[string]interface{}{
		"position_id": position.PositionID,
		"symbol":      symbol,
		"entry_price": entryPrice,
		"quantity":    quantity,
	}))
	return position.PositionID, nil
}

// ClosePosition sells the position at market and moves it to the
// closed set. The move happens exactly once; a repeat close reports
// the position as missing.
func (m *PositionManager) ClosePosition(positionID string, reason model.ExitReason, exitPrice float64) error {
	m.mu.Lock()
	position, ok := m.active[positionID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("position not found: %s", positionID)
	}
	if position.Status == model.PositionStatusExitPending {
		m.mu.Unlock()
		return fmt.Errorf("position already closing: %s", positionID)
	}
	position.Status = model.PositionStatusExitPending
	symbol := position.Symbol
	quantity := position.Quantity
	if exitPrice == 0 {
		exitPrice = position.CurrentPrice
	}
	m.mu.Unlock()

	result, err := m.broker.PlaceSellOrder(symbol, quantity, 0, string(model.OrderTypeMarket))
	if err != nil || !result.Successful {
		m.mu.Lock()
		if position, ok := m.active[positionID]; ok {
			position.Status = model.PositionStatusActive
		}
		m.mu.Unlock()
		if err != nil {
			return fmt.Errorf("failed to close position %s: %w", positionID, err)
		}
		return fmt.Errorf("failed to close position %s: %s", positionID, result.Message)
	}

	now := m.now()

	m.mu.Lock()
	position, ok = m.active[positionID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	position.UpdatePrice(exitPrice, now)
	position.ExitPrice = &exitPrice
	exitTime := now
	position.ExitTime = &exitTime
	position.ExitReason = reason
	position.ExitOrderID = result.KISOrderID
	if reason == model.ExitReasonForceLiquidation {
		position.Status = model.PositionStatusLiquidated
	} else {
		position.Status = model.PositionStatusClosed
	}
	delete(m.active, positionID)
	m.closed[positionID] = position
	record := tradeRecordFrom(position, now)
	snapshot := *position
	m.mu.Unlock()

	logger.WithField("position_id", positionID).
		WithField("reason", reason).
		WithField("pnl_percent", fmt.Sprintf("%.2f", snapshot.CurrentPnlPercent)).
		Info("position closed")

	m.events.Publish(notify.NewEvent(notify.EventPositionClosed, map[string]interface{}{
		"position_id": positionID,
		"symbol":      symbol,
		"reason":      string(reason),
		"pnl":         snapshot.CurrentPnl,
		"pnl_percent": snapshot.CurrentPnlPercent,
	}))

	if m.store != nil {
		if err := m.store.SaveTradeRecord(record); err != nil {
			logger.WithError(err).WithField("position_id", positionID).Warn("failed to persist trade record")
		}
	}
	return nil
}

// ForceLiquidateAll closes every active position at market.
func (m *PositionManager) ForceLiquidateAll() int {
	m.mu.Lock()
	positionIDs := make([]string, 0, len(m.active))
	for positionID := range m.active {
		positionIDs = append(positionIDs, positionID)
	}
	m.mu.Unlock()

	if len(positionIDs) == 0 {
		return 0
	}

	logger.WithField("positions", len(positionIDs)).Warn("starting force liquidation of all positions")
	m.events.Publish(notify.NewEvent(notify.EventForceLiquidation, map[string]interface{}{
		"positions": len(positionIDs),
	}))

	closed := 0
	for _, positionID := range positionIDs {
		if err := m.ClosePosition(positionID, model.ExitReasonForceLiquidation, 0); err != nil {
			logger.WithError(err).WithField("position_id", positionID).Error("force liquidation failed")
			continue
		}
		closed++
	}
	return closed
}

// ApplyPrice updates every active position on the symbol and closes
// those whose exit condition fires.
func (m *PositionManager) ApplyPrice(symbol string, newPrice float64) {
	now := m.now()

	m.mu.Lock()
	type exit struct {
		positionID string
		reason     model.ExitReason
	}
	var exits []exit
	for _, position := range m.active {
		if position.Symbol != symbol || position.Status != model.PositionStatusActive {
			continue
		}
		position.UpdatePrice(newPrice, now)
		if should, reason := position.ShouldExit(now); should {
			exits = append(exits, exit{position.PositionID, reason})
		}
	}
	m.mu.Unlock()

	for _, e := range exits {
		logger.WithField("position_id", e.positionID).WithField("reason", e.reason).Info("exit condition met")
		if err := m.ClosePosition(e.positionID, e.reason, newPrice); err != nil {
			logger.WithError(err).WithField("position_id", e.positionID).Error("failed to close position")
		}
	}
}

// RetargetActive rewrites the profit target and stop loss on every
// active position. The exit strategy drives this on phase changes.
func (m *PositionManager) RetargetActive(targetProfit, stopLoss float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, position := range m.active {
		position.TargetProfitPercent = targetProfit
		position.StopLossPercent = stopLoss
	}
}

// ActivePositions snapshots the open book.
func (m *PositionManager) ActivePositions() []model.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	positions := make([]model.Position, 0, len(m.active))
	for _, position := range m.active {
		positions = append(positions, *position)
	}
	return positions
}

// ClosedPositions snapshots the closed book.
func (m *PositionManager) ClosedPositions() []model.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	positions := make([]model.Position, 0, len(m.closed))
	for _, position := range m.closed {
		positions = append(positions, *position)
	}
	return positions
}

// Summary aggregates the active book into one snapshot.
func (m *PositionManager) Summary() PositionSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := PositionSummary{Positions: make([]model.Position, 0, len(m.active))}
	for _, position := range m.active {
		summary.ActivePositions++
		summary.TotalInvestment += position.EntryPrice * float64(position.Quantity)
		summary.TotalCurrentValue += position.CurrentPrice * float64(position.Quantity)
		summary.TotalPnl += position.CurrentPnl
		summary.Positions = append(summary.Positions, *position)
	}
	if summary.TotalInvestment > 0 {
		summary.TotalPnlPercent = summary.TotalPnl / summary.TotalInvestment * 100
	}
	return summary
}

func (m *PositionManager) monitoringLoop(stop chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PositionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.monitorTick()
		}
	}
}

// monitorTick runs one pass: force liquidation past 15:20, otherwise
// time-based exits and a price refresh per distinct symbol.
func (m *PositionManager) monitorTick() {
	m.mu.Lock()
	hasActive := len(m.active) > 0
	m.mu.Unlock()
	if !hasActive {
		return
	}

	now := m.now()
	if model.MinuteOfDay(now) >= forceLiquidationMinute {
		m.ForceLiquidateAll()
		return
	}

	m.checkTimeBasedExits(now)
	m.refreshPrices()
}

func (m *PositionManager) checkTimeBasedExits(now time.Time) {
	m.mu.Lock()
	var expired []string
	for _, position := range m.active {
		if position.Status != model.PositionStatusActive {
			continue
		}
		if should, reason := position.ShouldExit(now); should && reason == model.ExitReasonTimeBased {
			expired = append(expired, position.PositionID)
		}
	}
	m.mu.Unlock()

	for _, positionID := range expired {
		if err := m.ClosePosition(positionID, model.ExitReasonTimeBased, 0); err != nil {
			logger.WithError(err).WithField("position_id", positionID).Error("time-based close failed")
		}
	}
}

func (m *PositionManager) refreshPrices() {
	m.mu.Lock()
	symbols := make(map[string]struct{})
	for _, position := range m.active {
		symbols[position.Symbol] = struct{}{}
	}
	m.mu.Unlock()

	for symbol := range symbols {
		quote, err := m.broker.GetCurrentPrice(symbol)
		if err != nil {
			logger.WithError(err).WithField("symbol", symbol).Warn("failed to update price")
			continue
		}
		if quote.Price > 0 {
			m.ApplyPrice(symbol, quote.Price)
		}
	}
}

func tradeRecordFrom(position *model.Position, now time.Time) *model.TradeRecord {
	exitPrice := position.CurrentPrice
	if position.ExitPrice != nil {
		exitPrice = *position.ExitPrice
	}
	exitTime := now
	if position.ExitTime != nil {
		exitTime = *position.ExitTime
	}
	return &model.TradeRecord{
		PositionID: position.PositionID,
		Symbol:     position.Symbol,
		StockName:  position.StockName,
		Quantity:   position.Quantity,
		EntryPrice: position.EntryPrice,
		ExitPrice:  exitPrice,
		Pnl:        math.Round(position.CurrentPnl*100) / 100,
		PnlPercent: math.Round(position.CurrentPnlPercent*100) / 100,
		ExitReason: string(position.ExitReason),
		EntryTime:  position.EntryTime,
		ExitTime:   exitTime,
	}
}
