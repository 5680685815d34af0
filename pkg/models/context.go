package models

// Recognized active-context field names. The document accepts arbitrary
// extra fields; these are the ones the core reads and writes itself.
const (
	ContextFieldCurrentFocus   = "current_focus"
	ContextFieldCurrentTask    = "current_task"
	ContextFieldSessionStart   = "session_start"
	ContextFieldSessionEnd     = "session_end"
	ContextFieldSessionSaved   = "session_saved"
	ContextFieldMode           = "mode"
	ContextFieldAttentionState = "attention_state"
	ContextFieldEnergyLevel    = "energy_level"
	ContextFieldOnBreak        = "on_break"
	ContextFieldLastBreak      = "last_break"
	ContextFieldBreakStart     = "break_start"
	ContextFieldResumeTime     = "resume_time"
	ContextFieldCompletedTasks = "completed_tasks"
	ContextFieldNextSteps      = "next_steps"
	ContextFieldBlockers       = "blockers"
	ContextFieldGitState       = "git_state"
	ContextFieldOpenFiles      = "open_files"
	ContextFieldADHDMetrics    = "adhd_metrics"
)

// ActiveContext is the per-workspace singleton document describing what the
// user is doing right now. It is stored as a structured document rather than
// a fixed struct: patches overwrite named fields and preserve everything
// else, including fields the core does not recognize.
type ActiveContext map[string]any

// MergePatch applies a patch to an active context: named fields overwrite,
// unnamed fields are preserved, and nested maps are deep-merged one level.
// The receiver is not mutated; a new document is returned.
func (c ActiveContext) MergePatch(patch map[string]any) ActiveContext {
	merged := make(ActiveContext, len(c)+len(patch))
	for k, v := range c {
		merged[k] = v
	}
	for k, v := range patch {
		existing, ok := merged[k].(map[string]any)
		incoming, ok2 := v.(map[string]any)
		if ok && ok2 {
			// One-level deep merge for nested maps.
			sub := make(map[string]any, len(existing)+len(incoming))
			for sk, sv := range existing {
				sub[sk] = sv
			}
			for sk, sv := range incoming {
				sub[sk] = sv
			}
			merged[k] = sub
			continue
		}
		merged[k] = v
	}
	return merged
}

// String returns the named field as a string, or "" if absent or not a string.
func (c ActiveContext) String(field string) string {
	s, _ := c[field].(string)
	return s
}

// Bool returns the named field as a bool, or false if absent or not a bool.
func (c ActiveContext) Bool(field string) bool {
	b, _ := c[field].(bool)
	return b
}
