package models

// Role classifies the kind of work a tool invocation belongs to.
// It governs budget accounting and default timeouts.
type Role string

const (
	RoleResearch       Role = "research"
	RoleImplementation Role = "implementation"
	RoleQuality        Role = "quality"
	RoleCoordination   Role = "coordination"
)

// IsValid checks if the role is recognized.
func (r Role) IsValid() bool {
	switch r {
	case RoleResearch, RoleImplementation, RoleQuality, RoleCoordination:
		return true
	default:
		return false
	}
}

// RoleTag describes a capability a backend advertises.
type RoleTag string

const (
	RoleTagDocumentation     RoleTag = "documentation"
	RoleTagCodeSearch        RoleTag = "code-search"
	RoleTagWebResearch       RoleTag = "web-research"
	RoleTagReasoning         RoleTag = "reasoning"
	RoleTagMemory            RoleTag = "memory"
	RoleTagTaskPlanning      RoleTag = "task-planning"
	RoleTagCodeEditing       RoleTag = "code-editing"
	RoleTagRerank            RoleTag = "rerank"
	RoleTagDesktopAutomation RoleTag = "desktop-automation"
)

// IsValid checks if the role tag is recognized.
func (t RoleTag) IsValid() bool {
	switch t {
	case RoleTagDocumentation, RoleTagCodeSearch, RoleTagWebResearch,
		RoleTagReasoning, RoleTagMemory, RoleTagTaskPlanning,
		RoleTagCodeEditing, RoleTagRerank, RoleTagDesktopAutomation:
		return true
	default:
		return false
	}
}

// BackendPriority orders backends during resolution.
type BackendPriority string

const (
	PriorityCriticalPath BackendPriority = "critical_path"
	PriorityWorkflow     BackendPriority = "workflow"
	PriorityResearch     BackendPriority = "research"
	PriorityQuality      BackendPriority = "quality"
	PriorityUtility      BackendPriority = "utility"
)

// IsValid checks if the backend priority is recognized.
func (p BackendPriority) IsValid() bool {
	switch p {
	case PriorityCriticalPath, PriorityWorkflow, PriorityResearch,
		PriorityQuality, PriorityUtility:
		return true
	default:
		return false
	}
}

// Rank returns the resolution ordering for a priority (lower ranks first).
func (p BackendPriority) Rank() int {
	switch p {
	case PriorityCriticalPath:
		return 0
	case PriorityWorkflow:
		return 1
	case PriorityResearch:
		return 2
	case PriorityQuality:
		return 3
	case PriorityUtility:
		return 4
	default:
		return 5
	}
}

// TransportType defines backend transport types.
type TransportType string

const (
	// TransportTypeStdio uses subprocess communication via stdin/stdout.
	TransportTypeStdio TransportType = "stdio"
	// TransportTypeHTTP uses streamable HTTP JSON-RPC.
	TransportTypeHTTP TransportType = "http"
	// TransportTypeSSE uses Server-Sent Events.
	TransportTypeSSE TransportType = "sse"
)

// IsValid checks if the transport type is recognized.
func (t TransportType) IsValid() bool {
	return t == TransportTypeStdio || t == TransportTypeHTTP || t == TransportTypeSSE
}

// HealthState is the observed liveness of a backend.
type HealthState string

const (
	HealthUnknown  HealthState = "unknown"
	HealthUp       HealthState = "up"
	HealthDegraded HealthState = "degraded"
	HealthDown     HealthState = "down"
)

// Routable reports whether a backend in this state may receive traffic.
func (h HealthState) Routable() bool {
	return h == HealthUp || h == HealthDegraded
}

// AttentionState is the finite classification of the user's current attention.
type AttentionState string

const (
	AttentionScattered     AttentionState = "scattered"
	AttentionFocused       AttentionState = "focused"
	AttentionHyperfocused  AttentionState = "hyperfocused"
	AttentionTransitioning AttentionState = "transitioning"
	AttentionOverwhelmed   AttentionState = "overwhelmed"
)

// IsValid checks if the attention state is recognized.
func (s AttentionState) IsValid() bool {
	switch s {
	case AttentionScattered, AttentionFocused, AttentionHyperfocused,
		AttentionTransitioning, AttentionOverwhelmed:
		return true
	default:
		return false
	}
}

// EnergyLevel is the finite classification of the user's current energy.
type EnergyLevel string

const (
	EnergyVeryLow    EnergyLevel = "very_low"
	EnergyLow        EnergyLevel = "low"
	EnergyMedium     EnergyLevel = "medium"
	EnergyHigh       EnergyLevel = "high"
	EnergyHyperfocus EnergyLevel = "hyperfocus"
)

// IsValid checks if the energy level is recognized.
func (l EnergyLevel) IsValid() bool {
	switch l {
	case EnergyVeryLow, EnergyLow, EnergyMedium, EnergyHigh, EnergyHyperfocus:
		return true
	default:
		return false
	}
}

// Scale returns the energy level as an ordinal (0 = very_low .. 4 = hyperfocus).
// Used for one-step/two-step mismatch scoring in task assessment.
func (l EnergyLevel) Scale() int {
	switch l {
	case EnergyVeryLow:
		return 0
	case EnergyLow:
		return 1
	case EnergyMedium:
		return 2
	case EnergyHigh:
		return 3
	case EnergyHyperfocus:
		return 4
	default:
		return 2
	}
}

// SessionMode is the active-context work mode.
type SessionMode string

const (
	ModePlan SessionMode = "PLAN"
	ModeAct  SessionMode = "ACT"
)

// IsValid checks if the session mode is recognized.
func (m SessionMode) IsValid() bool {
	return m == ModePlan || m == ModeAct
}

// EventPriority orders events for backpressure drop policies.
type EventPriority string

const (
	EventPriorityCritical EventPriority = "critical"
	EventPriorityHigh     EventPriority = "high"
	EventPriorityMedium   EventPriority = "medium"
	EventPriorityLow      EventPriority = "low"
)

// IsValid checks if the event priority is recognized.
func (p EventPriority) IsValid() bool {
	switch p {
	case EventPriorityCritical, EventPriorityHigh, EventPriorityMedium, EventPriorityLow:
		return true
	default:
		return false
	}
}

// DropRank returns the drop ordering under backpressure (lower drops first).
func (p EventPriority) DropRank() int {
	switch p {
	case EventPriorityLow:
		return 0
	case EventPriorityMedium:
		return 1
	case EventPriorityHigh:
		return 2
	case EventPriorityCritical:
		return 3
	default:
		return 0
	}
}
