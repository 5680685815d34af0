package models

import "time"

// Lifecycle event types published on the event bus.
const (
	EventTypeToolInvoked        = "tool_invoked"
	EventTypeTaskCreated        = "task_created"
	EventTypeStatusChanged      = "status_changed"
	EventTypeCodeChanged        = "code_changed"
	EventTypeDecisionLogged     = "decision_logged"
	EventTypeSessionStarted     = "session_started"
	EventTypeSessionEnded       = "session_ended"
	EventTypeBreakStarted       = "break_started"
	EventTypeBreakEnded         = "break_ended"
	EventTypeBreakRecommended   = "break_recommended"
	EventTypeBreakRequired      = "break_required"
	EventTypeHyperfocusDetected = "hyperfocus_detected"
	EventTypeOverwhelmDetected  = "overwhelm_detected"
	EventTypeDegradedMode       = "degraded_mode"
)

// Source system names. The event bus authority matrix keys off these.
const (
	SourceSessionStore      = "session-store"
	SourceTaskPlanning      = "task-planning"
	SourceProjectManagement = "project-management"
	SourceCodeNavigation    = "code-navigation"
	SourceAttentionEngine   = "attention-engine"
	SourceBroker            = "broker"
)

// EventRouting carries delivery metadata for an event.
type EventRouting struct {
	Broadcast   bool `json:"broadcast,omitempty"`
	RequiresAck bool `json:"requires_ack,omitempty"`

	// ExpectedSequence orders events within a (source_system, event_type)
	// stream. Zero means unsequenced.
	ExpectedSequence int64 `json:"expected_sequence,omitempty"`
}

// Event is an immutable message published to the event bus.
type Event struct {
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"` // UUID
	Timestamp     time.Time      `json:"timestamp"`
	SourceSystem  string         `json:"source_system"`
	TargetSystems []string       `json:"target_systems"`
	Priority      EventPriority  `json:"priority"`
	Data          map[string]any `json:"data,omitempty"`
	Routing       EventRouting   `json:"routing,omitempty"`
}

// StreamKey identifies the FIFO stream an event belongs to. Ordering is
// guaranteed within a stream only; there is no global total order.
func (e *Event) StreamKey() string {
	return e.SourceSystem + "/" + e.EventType
}
