package model

import "time"

// ExitPhase is the Day 2 sell window, derived from wall-clock time.
type ExitPhase string

const (
	ExitPhaseEarlyMorning ExitPhase = "early_morning" // 09:00-11:00
	ExitPhaseMidMorning   ExitPhase = "mid_morning"   // 11:00-13:00
	ExitPhaseAfternoon    ExitPhase = "afternoon"     // 13:00-15:00
	ExitPhaseForceExit    ExitPhase = "force_exit"    // 15:00-15:30
)

// ExitTarget is the static profit/stop schedule for one exit phase.
// Start and End are minutes from midnight.
type ExitTarget struct {
	Phase             ExitPhase `json:"phase"`
	StartMinute       int       `json:"start_minute"`
	EndMinute         int       `json:"end_minute"`
	ProfitTarget      float64   `json:"profit_target"`
	StopLoss          float64   `json:"stop_loss"`
	UrgencyMultiplier float64   `json:"urgency_multiplier"`
}

// Contains reports whether the minute-of-day falls inside [start, end).
func (t ExitTarget) Contains(minuteOfDay int) bool {
	return minuteOfDay >= t.StartMinute && minuteOfDay < t.EndMinute
}

// MinuteOfDay converts a wall-clock time to minutes from midnight.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ExitUrgency labels how strongly an exit recommendation should be acted on.
type ExitUrgency string

const (
	ExitUrgencyHigh   ExitUrgency = "high"
	ExitUrgencyMedium ExitUrgency = "medium"
)

// ExitRecommendation is one position the exit strategy wants closed.
type ExitRecommendation struct {
	PositionID        string      `json:"position_id"`
	Symbol            string      `json:"symbol"`
	Action            string      `json:"action"`
	Reason            string      `json:"reason"`
	Urgency           ExitUrgency `json:"urgency"`
	CurrentPnlPercent float64     `json:"current_pnl_percent"`
	TargetProfit      float64     `json:"target_profit"`
}
