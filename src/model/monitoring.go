package model

import "time"

// SessionPhase is the after-hours monitoring phase, derived from wall-clock time.
type SessionPhase string

const (
	PhaseWaiting   SessionPhase = "waiting"   // before 16:00
	Phase1         SessionPhase = "phase_1"   // 16:00-16:30
	Phase2         SessionPhase = "phase_2"   // 16:30-17:00
	Phase3         SessionPhase = "phase_3"   // 17:00-17:30
	Phase4         SessionPhase = "phase_4"   // 17:30-17:40
	PhaseCompleted SessionPhase = "completed" // 17:40 onwards
)

// MonitoringTarget is one stock watched during the after-hours session.
// Owned exclusively by the session manager; is_triggered only ever flips
// false to true.
type MonitoringTarget struct {
	Symbol        string     `json:"symbol"`
	StockName     string     `json:"stock_name"`
	EntryPrice    float64    `json:"entry_price"`
	CurrentPrice  float64    `json:"current_price"`
	ChangePercent float64    `json:"change_percent"`
	Volume        int64      `json:"volume"`
	BuyThreshold  float64    `json:"buy_threshold"`
	IsTriggered   bool       `json:"is_triggered"`
	TriggerTime   *time.Time `json:"trigger_time,omitempty"`
}

// SessionStatus is a derived snapshot of the running session.
type SessionStatus struct {
	CurrentPhase   SessionPhase       `json:"current_phase"`
	PhaseStartTime time.Time          `json:"phase_start_time"`
	NextPhaseTime  *time.Time         `json:"next_phase_time,omitempty"`
	Targets        []MonitoringTarget `json:"targets"`
	TotalTargets   int                `json:"total_targets"`
	TriggeredCount int                `json:"triggered_count"`
	RemainingTime  time.Duration      `json:"remaining_time"`
	IsRunning      bool               `json:"is_running"`
}
