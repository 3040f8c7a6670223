package trading

import (
	"math"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"daytrader/src/model"
	"daytrader/src/notify"
)

// Day 2 trading window, minutes from midnight.
const (
	marketOpenMinute  = 9 * 60
	marketCloseMinute = 15*60 + 30
	forceExitMinute   = 15*60 + 20
)

// exitTargets is the static Day 2 schedule. Earlier phases hold out
// for more profit; the force window takes almost anything.
var exitTargets = map[model.ExitPhase]model.ExitTarget{
	model.ExitPhaseEarlyMorning: {
		Phase:             model.ExitPhaseEarlyMorning,
		StartMinute:       9 * 60,
		EndMinute:         11 * 60,
		ProfitTarget:      4.0,
		StopLoss:          -1.5,
		UrgencyMultiplier: 0.8,
	},
	model.ExitPhaseMidMorning: {
		Phase:             model.ExitPhaseMidMorning,
		StartMinute:       11 * 60,
		EndMinute:         13 * 60,
		ProfitTarget:      3.0,
		StopLoss:          -2.0,
		UrgencyMultiplier: 1.0,
	},
	model.ExitPhaseAfternoon: {
		Phase:             model.ExitPhaseAfternoon,
		StartMinute:       13 * 60,
		EndMinute:         15 * 60,
		ProfitTarget:      2.0,
		StopLoss:          -2.5,
		UrgencyMultiplier: 1.5,
	},
	model.ExitPhaseForceExit: {
		Phase:             model.ExitPhaseForceExit,
		StartMinute:       15 * 60,
		EndMinute:         15*60 + 30,
		ProfitTarget:      0.5,
		StopLoss:          -5.0,
		UrgencyMultiplier: 3.0,
	},
}

// ExitPhaseAt derives the Day 2 sell phase from the wall clock.
// Outside the trading window the nearest phase applies: before open
// early morning, after close the force window.
func ExitPhaseAt(t time.Time) model.ExitPhase {
	minute := model.MinuteOfDay(t)

	for phase, target := range exitTargets {
		if target.Contains(minute) {
			return phase
		}
	}
	if minute >= 15*60 {
		return model.ExitPhaseForceExit
	}
	return model.ExitPhaseEarlyMorning
}

// ExitTargetFor returns the schedule row for a phase.
func ExitTargetFor(phase model.ExitPhase) model.ExitTarget {
	return exitTargets[phase]
}

// ExitStrategyStatus is the strategy's point-in-time report.
type ExitStrategyStatus struct {
	IsRunning         bool            `json:"is_running"`
	CurrentPhase      model.ExitPhase `json:"current_phase"`
	ProfitTarget      float64         `json:"profit_target"`
	StopLoss          float64         `json:"stop_loss"`
	UrgencyMultiplier float64         `json:"urgency_multiplier"`
	NextPhaseMinute   *int            `json:"next_phase_minute,omitempty"`
	ActivePositions   int             `json:"active_positions"`
}

// ExitStrategy walks the active book through the Day 2 sell schedule.
// Phase transitions retarget every open position; each pass emits
// recommendations and, past 15:20, forces everything closed.
type ExitStrategy struct {
	config    Config
	positions *PositionManager
	events    notify.Sink
	now       func() time.Time

	mu           sync.Mutex
	isRunning    bool
	currentPhase model.ExitPhase

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewExitStrategy(config Config, positions *PositionManager, events notify.Sink) *ExitStrategy {
	if events == nil {
		events = notify.NopSink{}
	}
	return &ExitStrategy{
		config:       config,
		positions:    positions,
		events:       events,
		now:          time.Now,
		currentPhase: model.ExitPhaseEarlyMorning,
	}
}

func (s *ExitStrategy) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		logger.Warn("exit strategy is already running")
		return
	}

	s.isRunning = true
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.strategyLoop(s.stop)

	logger.Info("time-based exit strategy started")
}

func (s *ExitStrategy) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stop)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		logger.Warn("timed out waiting for exit strategy to stop")
	}

	logger.Info("time-based exit strategy stopped")
}

// IsRunning reports whether the strategy loop is live.
func (s *ExitStrategy) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *ExitStrategy) strategyLoop(stop chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ExitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := s.now()
			minute := model.MinuteOfDay(now)
			if minute < marketOpenMinute || minute > marketCloseMinute {
				continue
			}

			s.EvaluateExitConditions()

			if minute >= forceExitMinute {
				s.ForceExitAll("Market close in 10 minutes")
			}
		}
	}
}

// EvaluateExitConditions runs one strategy pass and returns the exit
// recommendations for the active book.
func (s *ExitStrategy) EvaluateExitConditions() []model.ExitRecommendation {
	now := s.now()
	phase := ExitPhaseAt(now)

	s.mu.Lock()
	if phase != s.currentPhase {
		s.phaseTransitionLocked(phase)
	}
	s.mu.Unlock()

	target := ExitTargetFor(phase)
	var recommendations []model.ExitRecommendation

	for _, position := range s.positions.ActivePositions() {
		if position.Status != model.PositionStatusActive {
			continue
		}
		if rec := s.evaluatePosition(position, target, now); rec != nil {
			recommendations = append(recommendations, *rec)
		}
	}
	return recommendations
}

func (s *ExitStrategy) phaseTransitionLocked(newPhase model.ExitPhase) {
	oldPhase := s.currentPhase
	s.currentPhase = newPhase
	target := ExitTargetFor(newPhase)

	logger.WithField("from", oldPhase).WithField("to", newPhase).Info("exit phase transition")

	s.positions.RetargetActive(target.ProfitTarget, target.StopLoss)

	s.events.Publish(notify.NewEvent(notify.EventSessionPhase, map[string]interface{}{
		"strategy":      "exit",
		"from":          string(oldPhase),
		"to":            string(newPhase),
		"profit_target": target.ProfitTarget,
		"stop_loss":     target.StopLoss,
	}))
}

func (s *ExitStrategy) evaluatePosition(position model.Position, target model.ExitTarget, now time.Time) *model.ExitRecommendation {
	if should, reason := position.ShouldExit(now); should {
		rec := &model.ExitRecommendation{
			PositionID:        position.PositionID,
			Symbol:            position.Symbol,
			Action:            "exit_immediately",
			Reason:            string(reason),
			Urgency:           model.ExitUrgencyHigh,
			CurrentPnlPercent: position.CurrentPnlPercent,
			TargetProfit:      target.ProfitTarget,
		}
		s.publishRecommendation(rec)
		return rec
	}

	adjusted := TimeAdjustedTarget(target, now)
	if position.CurrentPnlPercent >= adjusted {
		rec := &model.ExitRecommendation{
			PositionID:        position.PositionID,
			Symbol:            position.Symbol,
			Action:            "exit_recommended",
			Reason:            "time_adjusted_profit_target",
			Urgency:           model.ExitUrgencyMedium,
			CurrentPnlPercent: position.CurrentPnlPercent,
			TargetProfit:      adjusted,
		}
		s.publishRecommendation(rec)
		return rec
	}
	return nil
}

func (s *ExitStrategy) publishRecommendation(rec *model.ExitRecommendation) {
	s.events.Publish(notify.NewEvent(notify.EventExitRecommended, map[string]interface{}{
		"position_id": rec.PositionID,
		"symbol":      rec.Symbol,
		"action":      rec.Action,
		"reason":      rec.Reason,
		"urgency":     string(rec.Urgency),
	}))
}

// TimeAdjustedTarget lowers the phase's profit target as the phase
// progresses, up to 30%, scaled by the urgency multiplier and floored
// at 0.5%.
func TimeAdjustedTarget(target model.ExitTarget, now time.Time) float64 {
	minute := model.MinuteOfDay(now)

	duration := float64(target.EndMinute - target.StartMinute)
	elapsed := float64(minute - target.StartMinute)
	progress := math.Min(1, math.Max(0, elapsed/duration))

	decay := 1.0 - progress*0.3
	adjusted := target.ProfitTarget * decay * target.UrgencyMultiplier

	return math.Max(0.5, adjusted)
}

// ForceExitAll liquidates the whole book.
func (s *ExitStrategy) ForceExitAll(reason string) int {
	logger.WithField("reason", reason).Warn("force exit initiated")
	return s.positions.ForceLiquidateAll()
}

// Status reports the current phase and its targets.
func (s *ExitStrategy) Status() ExitStrategyStatus {
	now := s.now()
	phase := ExitPhaseAt(now)
	target := ExitTargetFor(phase)

	s.mu.Lock()
	running := s.isRunning
	s.mu.Unlock()

	var nextPhase *int
	minute := model.MinuteOfDay(now)
	for _, boundary := range []int{9 * 60, 11 * 60, 13 * 60, 15 * 60} {
		if minute < boundary {
			b := boundary
			nextPhase = &b
			break
		}
	}

	return ExitStrategyStatus{
		IsRunning:         running,
		CurrentPhase:      phase,
		ProfitTarget:      target.ProfitTarget,
		StopLoss:          target.StopLoss,
		UrgencyMultiplier: target.UrgencyMultiplier,
		NextPhaseMinute:   nextPhase,
		ActivePositions:   len(s.positions.ActivePositions()),
	}
}
