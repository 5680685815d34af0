package models

import "time"

// Decision is an immutable record of an architectural or implementation
// choice. Once logged, its content never changes.
type Decision struct {
	ID                    int64     `json:"decision_id"` // monotonic per workspace
	WorkspaceID           string    `json:"workspace_id"`
	Summary               string    `json:"summary"`
	Rationale             string    `json:"rationale"`
	ImplementationDetails string    `json:"implementation_details,omitempty"`
	Tags                  []string  `json:"tags,omitempty"`
	Timestamp             time.Time `json:"timestamp"`
}

// SystemPattern is a named, workspace-scoped free-form record.
type SystemPattern struct {
	ID          int64     `json:"pattern_id"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// CustomData is a workspace-scoped record keyed by (category, key) with
// upsert semantics. Values are arbitrary structured data.
type CustomData struct {
	WorkspaceID string    `json:"workspace_id"`
	Category    string    `json:"category"`
	Key         string    `json:"key"`
	Value       any       `json:"value"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GlossaryTerm is a workspace-scoped term definition keyed by term name.
type GlossaryTerm struct {
	WorkspaceID string    `json:"workspace_id"`
	Term        string    `json:"term"`
	Definition  string    `json:"definition"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Relationship is the vocabulary for typed links between stored items.
type Relationship string

const (
	RelBlocks      Relationship = "BLOCKS"
	RelBlockedBy   Relationship = "BLOCKED_BY"
	RelImplements  Relationship = "IMPLEMENTS"
	RelVerifies    Relationship = "VERIFIES"
	RelDependsOn   Relationship = "DEPENDS_ON"
	RelProduces    Relationship = "PRODUCES"
	RelConsumes    Relationship = "CONSUMES"
	RelDerivedFrom Relationship = "DERIVED_FROM"
	RelRelatedTo   Relationship = "RELATED_TO"
	RelClarifies   Relationship = "CLARIFIES"
	RelResolves    Relationship = "RESOLVES"
	RelTracks      Relationship = "TRACKS"
	RelInformedBy  Relationship = "INFORMED_BY"
)

// IsValid checks if the relationship is part of the vocabulary.
func (r Relationship) IsValid() bool {
	switch r {
	case RelBlocks, RelBlockedBy, RelImplements, RelVerifies, RelDependsOn,
		RelProduces, RelConsumes, RelDerivedFrom, RelRelatedTo, RelClarifies,
		RelResolves, RelTracks, RelInformedBy:
		return true
	default:
		return false
	}
}

// ItemType identifies what kind of stored item a link endpoint refers to.
type ItemType string

const (
	ItemTypeDecision   ItemType = "decision"
	ItemTypeProgress   ItemType = "progress"
	ItemTypePattern    ItemType = "system_pattern"
	ItemTypeCustomData ItemType = "custom_data"
)

// IsValid checks if the item type is recognized.
func (t ItemType) IsValid() bool {
	switch t {
	case ItemTypeDecision, ItemTypeProgress, ItemTypePattern, ItemTypeCustomData:
		return true
	default:
		return false
	}
}

// Link is a directed, typed edge between two stored items in the same
// workspace. Both endpoints must exist at write time.
type Link struct {
	ID           int64        `json:"link_id"`
	WorkspaceID  string       `json:"workspace_id"`
	SourceType   ItemType     `json:"source_type"`
	SourceID     string       `json:"source_id"`
	TargetType   ItemType     `json:"target_type"`
	TargetID     string       `json:"target_id"`
	Relationship Relationship `json:"relationship"`
	Description  string       `json:"description,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// ActivitySummary is the result of a recent-activity query: the latest
// decisions, progress entries, and patterns within a time window.
type ActivitySummary struct {
	WorkspaceID string          `json:"workspace_id"`
	Since       time.Time       `json:"since"`
	Decisions   []Decision      `json:"decisions"`
	Progress    []ProgressEntry `json:"progress"`
	Patterns    []SystemPattern `json:"patterns"`
}
