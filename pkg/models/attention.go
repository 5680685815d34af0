package models

import "time"

// AttentionSample is a periodic snapshot of user behavior, produced by the
// attention engine's own schedule or by explicit client reports.
type AttentionSample struct {
	ID              int64     `json:"sample_id"`
	UserID          string    `json:"user_id"`
	Timestamp       time.Time `json:"timestamp"`
	TypingCadence   float64   `json:"typing_cadence"`           // characters per minute
	SessionDuration float64   `json:"session_duration"`         // minutes since session start
	TaskSwitchRate  float64   `json:"task_switch_rate"`         // switches per hour
	ExplicitState   string    `json:"explicit_state,omitempty"` // user override, if any

	// Derived classification.
	AttentionState AttentionState `json:"attention_state"`
	EnergyLevel    EnergyLevel    `json:"energy_level"`
}

// AttentionReading is the engine's current view of a user.
type AttentionReading struct {
	UserID         string         `json:"user_id"`
	AttentionState AttentionState `json:"attention_state"`
	EnergyLevel    EnergyLevel    `json:"energy_level"`
	Since          time.Time      `json:"since"`
}

// TaskAssessment scores how well a task fits the user's current state.
type TaskAssessment struct {
	SuitabilityScore float64  `json:"suitability_score"` // 0–1
	EnergyMatch      float64  `json:"energy_match"`      // 0–1
	CognitiveLoad    float64  `json:"cognitive_load"`    // 0–1
	Recommendations  []string `json:"recommendations"`
}

// BreakUrgency grades how strongly a break is indicated.
type BreakUrgency string

const (
	BreakNone      BreakUrgency = "none"
	BreakSuggested BreakUrgency = "suggested"
	BreakWarning   BreakUrgency = "warning"
	BreakMandatory BreakUrgency = "mandatory"
)

// BreakRecommendation is the attention engine's break advice for a user.
type BreakRecommendation struct {
	Urgency         BreakUrgency `json:"urgency"`
	WorkedMinutes   float64      `json:"worked_minutes"`
	SuggestedLength int          `json:"suggested_length_minutes"`
	Message         string       `json:"message"`
}
