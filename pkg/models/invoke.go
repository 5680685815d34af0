package models

// ErrorKind is the machine-stable classification of an invocation failure.
type ErrorKind string

const (
	ErrKindNoBackend          ErrorKind = "NoBackend"
	ErrKindBudgetExceeded     ErrorKind = "BudgetExceeded"
	ErrKindUnavailable        ErrorKind = "Unavailable"
	ErrKindIllegalTransition  ErrorKind = "IllegalTransition"
	ErrKindCancelled          ErrorKind = "Cancelled"
	ErrKindBreakRequired      ErrorKind = "BreakRequired"
	ErrKindValidationError    ErrorKind = "ValidationError"
	ErrKindStorageUnavailable ErrorKind = "StorageUnavailable"
	ErrKindInternal           ErrorKind = "Internal"
)

// Retryable reports whether a caller may reasonably retry after this kind.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrKindUnavailable, ErrKindStorageUnavailable:
		return true
	default:
		return false
	}
}

// ToolError is the structured failure returned by the broker. Message is
// machine-stable; the user-facing presentational string is produced
// separately by Friendly().
type ToolError struct {
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
	Retryable   bool      `json:"retryable"`
	EventID     string    `json:"event_id,omitempty"` // correlation id for log lookup
	BackendName string    `json:"backend_name,omitempty"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
}

func (e *ToolError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Friendly returns the encouraging presentational string for this error.
// Kept separate from Message, which callers match on.
func (e *ToolError) Friendly() string {
	switch e.Kind {
	case ErrKindBreakRequired:
		return "Break time! Great progress — let's pick this up after a short pause."
	case ErrKindBudgetExceeded:
		return "You've done a lot of work in this area today. A different task might be a good switch."
	case ErrKindNoBackend, ErrKindUnavailable:
		return "That tool isn't reachable right now. Worth a retry in a moment."
	case ErrKindIllegalTransition:
		return "That task can't move there from where it is — its current state is preserved."
	default:
		return "Something went sideways, but nothing was lost. Details are in the logs."
	}
}

// AttentionHint optionally overrides the attention engine's current reading
// for one invocation.
type AttentionHint struct {
	AttentionState AttentionState `json:"attention_state,omitempty"`
	EnergyLevel    EnergyLevel    `json:"energy_level,omitempty"`
}

// InvokeRequest is the tool-invocation request envelope.
type InvokeRequest struct {
	Tool          string         `json:"tool" binding:"required"`
	Arguments     map[string]any `json:"arguments"`
	Role          Role           `json:"role" binding:"required"`
	WorkspaceID   string         `json:"workspace_id" binding:"required"`
	UserID        string         `json:"user_id" binding:"required"`
	DeadlineMS    *int64         `json:"deadline_ms,omitempty"`
	AttentionHint *AttentionHint `json:"attention_hint,omitempty"`
}

// ToolResult is the successful outcome of a tool invocation: an opaque
// payload plus observability metadata.
type ToolResult struct {
	Payload     any    `json:"payload"`
	Cost        int    `json:"cost"` // abstract cost units
	BackendName string `json:"backend_name"`
	LatencyMS   int64  `json:"latency_ms"`
	Retries     int    `json:"retries"`
}

// InvokeResponse is the tool-invocation response envelope.
type InvokeResponse struct {
	OK          bool       `json:"ok"`
	Payload     any        `json:"payload,omitempty"`
	Cost        int        `json:"cost,omitempty"`
	BackendName string     `json:"backend_name,omitempty"`
	LatencyMS   int64      `json:"latency_ms,omitempty"`
	Error       *ToolError `json:"error,omitempty"`

	// Friendly is the presentational counterpart of Error.Message.
	Friendly string `json:"friendly,omitempty"`
}
