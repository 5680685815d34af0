package attention

import (
	"math"

	"github.com/dope-context/dope/pkg/models"
)

// TaskProfile describes a task for suitability scoring.
type TaskProfile struct {
	// Complexity is 1 (trivial) to 5 (deep design work).
	Complexity int
	// EstimatedMinutes is the expected uninterrupted effort.
	EstimatedMinutes float64
	// RequiredEnergy is the energy level the task wants.
	RequiredEnergy models.EnergyLevel
}

// AssessTask scores how well a task fits the user's current state. Scores
// are deterministic in the reading and profile, so repeated assessment of
// an unchanged situation returns the same numbers.
func AssessTask(reading models.AttentionReading, task TaskProfile) models.TaskAssessment {
	complexity := clampInt(task.Complexity, 1, 5)

	energyMatch := energyMatchScore(reading.EnergyLevel, task.RequiredEnergy)
	load := cognitiveLoad(complexity, task.EstimatedMinutes, task.RequiredEnergy)
	suitability := clamp01(energyMatch * (1 - load))

	var recs []string
	switch {
	case reading.AttentionState == models.AttentionScattered && complexity >= 4:
		// Deep work while scattered mostly produces rework.
		suitability = math.Min(suitability, 0.3)
		recs = append(recs, "This one needs sustained focus. Park it and pick a smaller task for now.")
	case reading.AttentionState == models.AttentionOverwhelmed:
		suitability = math.Min(suitability, 0.25)
		recs = append(recs, "Step away or shrink the scope before starting anything new.")
	case reading.AttentionState == models.AttentionHyperfocused && complexity >= 3:
		suitability = clamp01(suitability + 0.1)
		recs = append(recs, "Good moment for deep work. Set a timer so the session doesn't run away.")
	}

	if energyMatch <= 0.4 {
		recs = append(recs, "Energy and task demand don't line up. A warm-up task may bridge the gap.")
	}
	if task.EstimatedMinutes > 60 {
		recs = append(recs, "Long task: split it into checkpoints you can stop at cleanly.")
	}
	if len(recs) == 0 {
		recs = append(recs, "Good fit for where you are right now.")
	}

	return models.TaskAssessment{
		SuitabilityScore: round2(suitability),
		EnergyMatch:      round2(energyMatch),
		CognitiveLoad:    round2(load),
		Recommendations:  recs,
	}
}

// energyMatchScore grades the distance between current and required energy
// on the ordinal scale: exact match 1.0, one step 0.5, two or more steps 0.
func energyMatchScore(current, required models.EnergyLevel) float64 {
	diff := current.Scale() - required.Scale()
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return 1.0
	case 1:
		return 0.5
	default:
		return 0
	}
}

// cognitiveLoad combines task complexity, duration, and a task-type factor
// into a 0–1 load figure. Attention-state effects belong to the suitability
// adjustments, not the load term.
func cognitiveLoad(complexity int, estimatedMinutes float64, required models.EnergyLevel) float64 {
	load := 0.4*(float64(complexity)/5.0) + 0.3*math.Min(1, estimatedMinutes/60.0) + taskTypeFactor(required)
	return clamp01(load)
}

// taskTypeFactor is the intrinsic overhead of the kind of work, keyed off
// the energy the task demands. Always within [0.1, 0.4].
func taskTypeFactor(required models.EnergyLevel) float64 {
	switch required {
	case models.EnergyVeryLow, models.EnergyLow:
		return 0.1
	case models.EnergyMedium:
		return 0.25
	default:
		return 0.4
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
