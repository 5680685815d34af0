package attention

import (
	"github.com/dope-context/dope/pkg/config"
	"github.com/dope-context/dope/pkg/models"
)

// classify derives the attention state from one behavioral sample. An
// explicit user-reported state always wins: the user knows their own head
// better than cadence heuristics do.
func classify(cfg config.AttentionConfig, sample models.AttentionSample) models.AttentionState {
	if explicit := models.AttentionState(sample.ExplicitState); explicit.IsValid() {
		return explicit
	}

	highSwitch := sample.TaskSwitchRate >= cfg.HighSwitchRatePerHour
	fastCadence := sample.TypingCadence >= cfg.FastCadenceCPM
	minimalSwitch := sample.TaskSwitchRate <= cfg.MinimalSwitchRate

	switch {
	case sample.SessionDuration >= cfg.HyperfocusMinutes && minimalSwitch:
		return models.AttentionHyperfocused
	case highSwitch && fastCadence:
		// Producing output but bouncing between tasks.
		return models.AttentionScattered
	case highSwitch:
		// Bouncing without producing: thrashing, not working.
		return models.AttentionOverwhelmed
	default:
		return models.AttentionFocused
	}
}

// deriveEnergy maps typing cadence to an energy level. Hyperfocus is an
// attention state, not a cadence band, so it is assigned from the state.
func deriveEnergy(state models.AttentionState, cadence float64) models.EnergyLevel {
	if state == models.AttentionHyperfocused {
		return models.EnergyHyperfocus
	}
	switch {
	case cadence < 50:
		return models.EnergyVeryLow
	case cadence < 150:
		return models.EnergyLow
	case cadence < 300:
		return models.EnergyMedium
	default:
		return models.EnergyHigh
	}
}
