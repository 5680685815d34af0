package broker

import (
	"time"

	"github.com/dope-context/dope/pkg/mcp"
	"github.com/dope-context/dope/pkg/models"
)

// shapeDeadline adjusts the effective call deadline for the user's attention
// state. A scattered or overwhelmed user gets faster answers at the price of
// depth; a hyperfocused user gets more room before interruption.
func shapeDeadline(state models.AttentionState, deadline time.Duration) time.Duration {
	switch state {
	case models.AttentionScattered, models.AttentionOverwhelmed:
		return deadline / 2
	case models.AttentionHyperfocused:
		return deadline + deadline/2
	default:
		return deadline
	}
}

// shapeResult caps the result text for scattered and overwhelmed users so a
// wall of output doesn't land on someone who can't absorb it. Returns the
// possibly truncated text and whether truncation happened.
func shapeResult(state models.AttentionState, text string, maxTokens int) (string, bool) {
	if maxTokens <= 0 {
		return text, false
	}
	switch state {
	case models.AttentionScattered, models.AttentionOverwhelmed:
	default:
		return text, false
	}
	if mcp.EstimateTokens(text) <= maxTokens {
		return text, false
	}
	limit := maxTokens * 4 // inverse of the chars-per-token estimate
	if limit >= len(text) {
		return text, false
	}
	return text[:limit] + "\n[result trimmed to fit current focus]", true
}
