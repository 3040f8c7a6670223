package monitoring

import (
	"fmt"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"daytrader/src/connectors"
	"daytrader/src/model"
	"daytrader/src/notify"
)

// After-hours phase boundaries, minutes from midnight.
const (
	phase1Start = 16 * 60
	phase2Start = 16*60 + 30
	phase3Start = 17 * 60
	phase4Start = 17*60 + 30
	sessionEnd  = 17*60 + 40
)

const stopTimeout = 5 * time.Second

// PhaseAt derives the session phase from the wall clock.
func PhaseAt(t time.Time) model.SessionPhase {
	minute := model.MinuteOfDay(t)

	switch {
	case minute < phase1Start:
		return model.PhaseWaiting
	case minute < phase2Start:
		return model.Phase1
	case minute < phase3Start:
		return model.Phase2
	case minute < phase4Start:
		return model.Phase3
	case minute < sessionEnd:
		return model.Phase4
	default:
		return model.PhaseCompleted
	}
}

// phaseDecayFactor is applied to untriggered thresholds when the phase
// is entered. Factors compound across consecutive phases.
func phaseDecayFactor(phase model.SessionPhase) float64 {
	switch phase {
	case model.Phase2:
		return 0.9
	case model.Phase3:
		return 0.8
	case model.Phase4:
		return 0.7
	default:
		return 1.0
	}
}

// nextPhaseTime reports the next boundary after t, or nil past 17:40.
func nextPhaseTime(t time.Time) *time.Time {
	minute := model.MinuteOfDay(t)

	for _, boundary := range []int{phase1Start, phase2Start, phase3Start, phase4Start, sessionEnd} {
		if minute < boundary {
			next := time.Date(t.Year(), t.Month(), t.Day(), boundary/60, boundary%60, 0, 0, t.Location())
			return &next
		}
	}
	return nil
}

// PriceSource is the market access the session manager needs.
type PriceSource interface {
	GetCurrentPrice(symbol string) (*connectors.PriceQuote, error)
}

// SignalHandler receives a target the moment its threshold is crossed.
type SignalHandler interface {
	ProcessPriceUpdate(symbol, stockName string, currentPrice, changePercent float64, volume int64, thresholdPercent float64) (*model.BuySignal, error)
}

// TargetInput seeds one monitoring target at session start.
type TargetInput struct {
	Symbol       string  `json:"symbol"`
	StockName    string  `json:"stock_name"`
	EntryPrice   float64 `json:"entry_price"`
	Volume       int64   `json:"volume"`
	BuyThreshold float64 `json:"buy_threshold"`
}

// SessionManager runs the after-hours monitoring session: a phase
// clock, per-phase threshold decay and threshold-crossing detection.
type SessionManager struct {
	config  Config
	prices  PriceSource
	signals SignalHandler
	events  notify.Sink
	now     func() time.Time

	mu           sync.Mutex
	isRunning    bool
	currentPhase model.SessionPhase
	targets      map[string]*model.MonitoringTarget

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewSessionManager(config Config, prices PriceSource, signals SignalHandler, events notify.Sink) *SessionManager {
	if events == nil {
		events = notify.NopSink{}
	}
	return &SessionManager{
		config:       config,
		prices:       prices,
		signals:      signals,
		events:       events,
		now:          time.Now,
		currentPhase: model.PhaseWaiting,
		targets:      make(map[string]*model.MonitoringTarget),
	}
}

// StartSession seeds the targets and launches the monitoring loop.
// A second start while running is rejected.
func (m *SessionManager) StartSession(inputs []TargetInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("session is already running")
	}

	m.targets = make(map[string]*model.MonitoringTarget, len(inputs))
	for _, input := range inputs {
		threshold := input.BuyThreshold
		if threshold <= 0 {
			threshold = m.config.DefaultBuyThreshold
		}
		m.targets[input.Symbol] = &model.MonitoringTarget{
			Symbol:       input.Symbol,
			StockName:    input.StockName,
			EntryPrice:   input.EntryPrice,
			CurrentPrice: input.EntryPrice,
			Volume:       input.Volume,
			BuyThreshold: threshold,
		}
	}

	m.isRunning = true
	m.currentPhase = PhaseAt(m.now())
	m.stop = make(chan struct{})
	m.wg.Add(1)
	go m.sessionLoop(m.stop)

	logger.WithField("targets", len(m.targets)).Info("after-hours monitoring session started")
	m.events.Publish(notify.NewEvent(notify.EventSessionStarted, map[string]interface{}{
		"targets": len(m.targets),
		"phase":   string(m.currentPhase),
	}))
	return nil
}

// StopSession halts the loop. Stopping an idle session is a no-op.
func (m *SessionManager) StopSession() {
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
		logger.Warn("timed out waiting for session loop to stop")
	}

	logger.Info("after-hours monitoring session stopped")
}

func (m *SessionManager) sessionLoop(stop chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.LoopPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if m.tick() {
				return
			}
		}
	}
}

// tick advances the phase clock and polls untriggered targets. It
// reports true when the session has completed.
func (m *SessionManager) tick() bool {
	now := m.now()

	m.mu.Lock()
	newPhase := PhaseAt(now)
	if newPhase != m.currentPhase {
		m.handlePhaseChange(newPhase)
	}
	completed := m.currentPhase == model.PhaseCompleted
	if completed {
		m.handleSessionComplete()
	}
	active := m.currentPhase != model.PhaseWaiting && !completed
	snapshot := m.untriggeredTargetsLocked()
	m.mu.Unlock()

	if completed {
		return true
	}
	if active {
		m.monitorTargets(snapshot, now)
	}
	return false
}

func (m *SessionManager) handlePhaseChange(newPhase model.SessionPhase) {
	oldPhase := m.currentPhase
	m.currentPhase = newPhase

	logger.WithField("from", oldPhase).WithField("to", newPhase).Info("session phase changed")

	if factor := phaseDecayFactor(newPhase); factor != 1.0 {
		for _, target := range m.targets {
			if target.IsTriggered {
				continue
			}
			old := target.BuyThreshold
			target.BuyThreshold = old * factor
			logger.WithField("symbol", target.Symbol).
				WithField("old", fmt.Sprintf("%.2f", old)).
				WithField("new", fmt.Sprintf("%.2f", target.BuyThreshold)).
				Info("auto-adjusted threshold for phase")
		}
	}

	m.events.Publish(notify.NewEvent(notify.EventSessionPhase, map[string]interface{}{
		"from": string(oldPhase),
		"to":   string(newPhase),
	}))
}

func (m *SessionManager) handleSessionComplete() {
	triggered := 0
	for _, target := range m.targets {
		if target.IsTriggered {
			triggered++
		}
	}

	logger.WithField("triggered", triggered).WithField("total", len(m.targets)).Info("after-hours monitoring session completed")
	m.isRunning = false

	m.events.Publish(notify.NewEvent(notify.EventSessionCompleted, map[string]interface{}{
		"triggered": triggered,
		"total":     len(m.targets),
	}))
}

func (m *SessionManager) untriggeredTargetsLocked() []string {
	symbols := make([]string, 0, len(m.targets))
	for symbol, target := range m.targets {
		if !target.IsTriggered {
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}

// monitorTargets polls prices outside the lock; a failed lookup skips
// the symbol, never the pass.
func (m *SessionManager) monitorTargets(symbols []string, now time.Time) {
	for _, symbol := range symbols {
		quote, err := m.prices.GetCurrentPrice(symbol)
		if err != nil {
			logger.WithError(err).WithField("symbol", symbol).Warn("failed to get price")
			continue
		}

		m.mu.Lock()
		target, ok := m.targets[symbol]
		if !ok || target.IsTriggered {
			m.mu.Unlock()
			continue
		}

		target.CurrentPrice = quote.Price
		target.ChangePercent = quote.ChangePercent
		if quote.Volume > 0 {
			target.Volume = quote.Volume
		}

		shouldTrigger := target.ChangePercent >= target.BuyThreshold
		if shouldTrigger {
			target.IsTriggered = true
			triggerTime := now
			target.TriggerTime = &triggerTime
		}
		snapshot := *target
		m.mu.Unlock()

		if shouldTrigger {
			m.triggerBuySignal(snapshot)
		}
	}
}

func (m *SessionManager) triggerBuySignal(target model.MonitoringTarget) {
	logger.WithField("symbol", target.Symbol).
		WithField("change_percent", fmt.Sprintf("%.2f", target.ChangePercent)).
		Info("buy signal triggered")

	m.events.Publish(notify.NewEvent(notify.EventTargetTriggered, map[string]interface{}{
		"symbol":         target.Symbol,
		"change_percent": target.ChangePercent,
		"threshold":      target.BuyThreshold,
	}))

	if _, err := m.signals.ProcessPriceUpdate(
		target.Symbol, target.StockName,
		target.CurrentPrice, target.ChangePercent,
		target.Volume, target.BuyThreshold,
	); err != nil {
		logger.WithError(err).WithField("symbol", target.Symbol).Error("failed to process buy signal")
	}
}

// AdjustThreshold overrides one target's threshold. Manual overrides
// are accepted for triggered targets too.
func (m *SessionManager) AdjustThreshold(symbol string, newThreshold float64) error {
	m.mu.Lock()
	target, ok := m.targets[symbol]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("target not found: %s", symbol)
	}

	old := target.BuyThreshold
	target.BuyThreshold = newThreshold
	m.mu.Unlock()

	logger.WithField("symbol", symbol).
		WithField("old", fmt.Sprintf("%.2f", old)).
		WithField("new", fmt.Sprintf("%.2f", newThreshold)).
		Info("threshold adjusted")

	m.events.Publish(notify.NewEvent(notify.EventThresholdAdjust, map[string]interface{}{
		"symbol":        symbol,
		"old_threshold": old,
		"new_threshold": newThreshold,
	}))
	return nil
}

// Status builds a point-in-time snapshot of the session.
func (m *SessionManager) Status() model.SessionStatus {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	targets := make([]model.MonitoringTarget, 0, len(m.targets))
	triggered := 0
	for _, target := range m.targets {
		targets = append(targets, *target)
		if target.IsTriggered {
			triggered++
		}
	}

	next := nextPhaseTime(now)
	remaining := time.Duration(0)
	if next != nil {
		remaining = next.Sub(now)
	}

	return model.SessionStatus{
		CurrentPhase:   m.currentPhase,
		PhaseStartTime: phaseStartTime(m.currentPhase, now),
		NextPhaseTime:  next,
		Targets:        targets,
		TotalTargets:   len(targets),
		TriggeredCount: triggered,
		RemainingTime:  remaining,
		IsRunning:      m.isRunning,
	}
}

// IsRunning reports whether the session loop is live.
func (m *SessionManager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRunning
}

func phaseStartTime(phase model.SessionPhase, now time.Time) time.Time {
	var minute int
	switch phase {
	case model.Phase1:
		minute = phase1Start
	case model.Phase2:
		minute = phase2Start
	case model.Phase3:
		minute = phase3Start
	case model.Phase4:
		minute = phase4Start
	case model.PhaseCompleted:
		minute = sessionEnd
	default:
		return now
	}
	return time.Date(now.Year(), now.Month(), now.Day(), minute/60, minute%60, 0, 0, now.Location())
}
