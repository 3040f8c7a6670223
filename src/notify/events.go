package notify

import "time"

// EventType tags every published notification.
type EventType string

const (
	EventSessionStarted   EventType = "session_started"
	EventSessionPhase     EventType = "session_phase_changed"
	EventSessionCompleted EventType = "session_completed"
	EventTargetTriggered  EventType = "target_triggered"
	EventThresholdAdjust  EventType = "threshold_adjusted"
	EventSignalCreated    EventType = "signal_created"
	EventSignalConfirmed  EventType = "signal_confirmed"
	EventSignalRejected   EventType = "signal_rejected"
	EventSignalExpired    EventType = "signal_expired"
	EventOrderQueued      EventType = "order_queued"
	EventOrderExecuting   EventType = "order_executing"
	EventOrderCompleted   EventType = "order_completed"
	EventOrderFailed      EventType = "order_failed"
	EventOrderCancelled   EventType = "order_cancelled"
	EventPositionOpened   EventType = "position_opened"
	EventPositionClosed   EventType = "position_closed"
	EventExitRecommended  EventType = "exit_recommended"
	EventForceLiquidation EventType = "force_liquidation"
	EventEmergencyStop    EventType = "emergency_stop"
)

// Event is one notification fanned out to websocket subscribers.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

func NewEvent(eventType EventType, data map[string]interface{}) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// Sink receives events. Publish must never block the caller; trading
// loops fire events inline.
type Sink interface {
	Publish(event Event)
}

// NopSink discards everything. Components take it when no hub is wired.
type NopSink struct{}

func (NopSink) Publish(Event) {}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Publish(event Event) { f(event) }

// MultiSink fans every event out to each sink in order.
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(event Event) {
		for _, sink := range sinks {
			sink.Publish(event)
		}
	})
}
