package models

import "time"

// ProgressStatus is the lifecycle state of a progress entry.
type ProgressStatus string

const (
	StatusTodo       ProgressStatus = "TODO"
	StatusInProgress ProgressStatus = "IN_PROGRESS"
	StatusBlocked    ProgressStatus = "BLOCKED"
	StatusDone       ProgressStatus = "DONE"
	StatusCancelled  ProgressStatus = "CANCELLED"
)

// IsValid checks if the progress status is recognized.
func (s ProgressStatus) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusBlocked, StatusDone, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status ends the entry's lifecycle.
func (s ProgressStatus) Terminal() bool {
	return s == StatusDone || s == StatusCancelled
}

// allowedTransitions is the progress state machine:
// any → BLOCKED/CANCELLED; TODO → IN_PROGRESS;
// IN_PROGRESS → DONE/BLOCKED/TODO; BLOCKED → TODO/IN_PROGRESS/CANCELLED;
// DONE and CANCELLED are terminal.
var allowedTransitions = map[ProgressStatus]map[ProgressStatus]bool{
	StatusTodo: {
		StatusInProgress: true,
		StatusBlocked:    true,
		StatusCancelled:  true,
	},
	StatusInProgress: {
		StatusDone:      true,
		StatusBlocked:   true,
		StatusTodo:      true,
		StatusCancelled: true,
	},
	StatusBlocked: {
		StatusTodo:       true,
		StatusInProgress: true,
		StatusCancelled:  true,
	},
	StatusDone:      {},
	StatusCancelled: {},
}

// CanTransition reports whether from → to is a legal progress transition.
// Same-status updates are allowed (description-only edits).
func CanTransition(from, to ProgressStatus) bool {
	if from == to {
		return true
	}
	allowed, ok := allowedTransitions[from]
	return ok && allowed[to]
}

// ProgressEntry is a unit of work the user can run, complete, or abandon.
type ProgressEntry struct {
	ID          int64          `json:"progress_id"`
	WorkspaceID string         `json:"workspace_id"`
	Status      ProgressStatus `json:"status"`
	Description string         `json:"description"`
	ParentID    *int64         `json:"parent_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`

	// Optional ADHD metadata used by the attention engine's task assessment.
	ComplexityScore  *float64 `json:"complexity_score,omitempty"` // 0.0–1.0
	EstimatedMinutes *int     `json:"estimated_minutes,omitempty"`
	EnergyRequired   *string  `json:"energy_required,omitempty"` // low, medium, high
	CognitiveLoad    *float64 `json:"cognitive_load,omitempty"`  // 0.0–1.0
	BreakPoints      []string `json:"break_points,omitempty"`
}
