package trading

import (
	"fmt"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"daytrader/src/model"
	"daytrader/src/notify"
)

// OrderPlacer queues a buy order for execution and returns its id.
type OrderPlacer interface {
	AddBuyOrder(symbol, stockName string, targetPrice, investmentAmount float64, autoExecute bool, orderType model.OrderType) (string, error)
}

// SignalProcessor turns qualifying price moves into buy signals and,
// once confirmed, hands them to the order placer. A symbol holds at
// most one active signal at a time.
type SignalProcessor struct {
	config Config
	orders OrderPlacer
	events notify.Sink
	now    func() time.Time

	// confirmDelay postpones auto-confirmation. Zero confirms inline.
	confirmDelay time.Duration

	mu        sync.Mutex
	active    map[string]*model.BuySignal
	processed map[string]*model.BuySignal
}

func NewSignalProcessor(config Config, orders OrderPlacer, events notify.Sink) *SignalProcessor {
	if events == nil {
		events = notify.NopSink{}
	}
	return &SignalProcessor{
		config:       config,
		orders:       orders,
		events:       events,
		now:          time.Now,
		confirmDelay: time.Second,
		active:       make(map[string]*model.BuySignal),
		processed:    make(map[string]*model.BuySignal),
	}
}

// ProcessPriceUpdate creates a signal when the move qualifies. A nil
// signal with nil error means the update was filtered out.
func (p *SignalProcessor) ProcessPriceUpdate(symbol, stockName string, currentPrice, changePercent float64, volume int64, thresholdPercent float64) (*model.BuySignal, error) {
	now := p.now()

	p.mu.Lock()
	if !p.shouldGenerateLocked(symbol, changePercent, volume, thresholdPercent) {
		p.mu.Unlock()
		return nil, nil
	}

	signal := &model.BuySignal{
		SignalID:            newEntityID("SIG", symbol, now),
		Symbol:              symbol,
		StockName:           stockName,
		TriggerPrice:        currentPrice,
		CurrentPrice:        currentPrice,
		ChangePercent:       changePercent,
		Volume:              volume,
		TriggerReason:       fmt.Sprintf("Price rose %.2f%% (threshold %.2f%%)", changePercent, thresholdPercent),
		InvestmentAmount:    p.config.DefaultInvestmentAmount,
		AutoConfirm:         p.config.AutoExecutionEnabled,
		ConfirmationTimeout: p.config.ConfirmationTimeout,
		CreatedAt:           now,
	}
	p.active[signal.SignalID] = signal
	p.mu.Unlock()

	logger.WithField("signal_id", signal.SignalID).
		WithField("symbol", symbol).
		WithField("change_percent", fmt.Sprintf("%.2f", changePercent)).
		Info("buy signal created")

	p.events.Publish(notify.NewEvent(notify.EventSignalCreated, map[string]interface{}{
		"signal_id":      signal.SignalID,
		"symbol":         symbol,
		"change_percent": changePercent,
	}))

	if signal.AutoConfirm {
		if p.confirmDelay > 0 {
			signalID := signal.SignalID
			time.AfterFunc(p.confirmDelay, func() {
				if err := p.ConfirmSignal(signalID, 0); err != nil {
					logger.WithError(err).WithField("signal_id", signalID).Warn("auto-confirm failed")
				}
			})
		} else {
			if err := p.ConfirmSignal(signal.SignalID, 0); err != nil {
				logger.WithError(err).WithField("signal_id", signal.SignalID).Warn("auto-confirm failed")
			}
		}
	}

	return signal, nil
}

func (p *SignalProcessor) shouldGenerateLocked(symbol string, changePercent float64, volume int64, thresholdPercent float64) bool {
	if changePercent < thresholdPercent {
		return false
	}
	for _, signal := range p.active {
		if signal.Symbol == symbol {
			return false
		}
	}
	if len(p.active) >= p.config.MaxPendingSignals {
		logger.WithField("max", p.config.MaxPendingSignals).Warn("maximum pending signals reached")
		return false
	}
	if volume < p.config.MinSignalVolume {
		return false
	}
	return true
}

// ConfirmSignal turns an active signal into a queued buy order.
// investmentAmount 0 keeps the signal's own amount.
func (p *SignalProcessor) ConfirmSignal(signalID string, investmentAmount float64) error {
	now := p.now()

	p.mu.Lock()
	signal, ok := p.active[signalID]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("signal not found: %s", signalID)
	}
	if signal.IsConfirmed {
		p.mu.Unlock()
		return fmt.Errorf("signal already confirmed: %s", signalID)
	}
	if signal.Expired(now) {
		p.mu.Unlock()
		return fmt.Errorf("signal expired: %s", signalID)
	}

	if investmentAmount > 0 {
		signal.InvestmentAmount = investmentAmount
	}
	signal.IsConfirmed = true
	confirmedAt := now
	signal.ConfirmedAt = &confirmedAt
	p.mu.Unlock()

	orderID, err := p.orders.AddBuyOrder(
		signal.Symbol, signal.StockName,
		signal.CurrentPrice, signal.InvestmentAmount,
		true, model.OrderTypeMarket,
	)

	p.mu.Lock()
	if err != nil {
		// Confirmation is terminal either way: a failed order retires
		// the signal instead of holding a pending slot.
		signal.IsConfirmed = false
		signal.ConfirmedAt = nil
		signal.TriggerReason = fmt.Sprintf("ORDER_FAILED: %v", err)
		signal.IsProcessed = true
		delete(p.active, signalID)
		p.processed[signalID] = signal
		p.mu.Unlock()
		return fmt.Errorf("failed to queue buy order: %w", err)
	}
	signal.OrderID = orderID
	signal.IsProcessed = true
	delete(p.active, signalID)
	p.processed[signalID] = signal
	p.mu.Unlock()

	logger.WithField("signal_id", signalID).WithField("order_id", orderID).Info("signal confirmed")
	p.events.Publish(notify.NewEvent(notify.EventSignalConfirmed, map[string]interface{}{
		"signal_id": signalID,
		"order_id":  orderID,
	}))
	return nil
}

// RejectSignal retires an active signal without ordering.
func (p *SignalProcessor) RejectSignal(signalID, reason string) error {
	p.mu.Lock()
	signal, ok := p.active[signalID]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("signal not found: %s", signalID)
	}
	if reason == "" {
		reason = "User rejected"
	}
	signal.TriggerReason = fmt.Sprintf("REJECTED: %s", reason)
	signal.IsProcessed = true
	delete(p.active, signalID)
	p.processed[signalID] = signal
	p.mu.Unlock()

	logger.WithField("signal_id", signalID).WithField("reason", reason).Info("signal rejected")
	p.events.Publish(notify.NewEvent(notify.EventSignalRejected, map[string]interface{}{
		"signal_id": signalID,
		"reason":    reason,
	}))
	return nil
}

// CleanupExpiredSignals retires every active signal whose confirmation
// window has elapsed.
func (p *SignalProcessor) CleanupExpiredSignals() int {
	now := p.now()

	p.mu.Lock()
	var expired []*model.BuySignal
	for signalID, signal := range p.active {
		if signal.Expired(now) {
			signal.IsProcessed = true
			delete(p.active, signalID)
			p.processed[signalID] = signal
			expired = append(expired, signal)
		}
	}
	p.mu.Unlock()

	for _, signal := range expired {
		logger.WithField("signal_id", signal.SignalID).Info("signal expired")
		p.events.Publish(notify.NewEvent(notify.EventSignalExpired, map[string]interface{}{
			"signal_id": signal.SignalID,
			"symbol":    signal.Symbol,
		}))
	}
	return len(expired)
}

// ActiveSignals snapshots the active set.
func (p *SignalProcessor) ActiveSignals() []model.BuySignal {
	p.mu.Lock()
	defer p.mu.Unlock()

	signals := make([]model.BuySignal, 0, len(p.active))
	for _, signal := range p.active {
		signals = append(signals, *signal)
	}
	return signals
}

// ProcessedSignals snapshots the retired set.
func (p *SignalProcessor) ProcessedSignals() []model.BuySignal {
	p.mu.Lock()
	defer p.mu.Unlock()

	signals := make([]model.BuySignal, 0, len(p.processed))
	for _, signal := range p.processed {
		signals = append(signals, *signal)
	}
	return signals
}
