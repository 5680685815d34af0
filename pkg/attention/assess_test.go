package attention

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dope-context/dope/pkg/models"
)

func reading(state models.AttentionState, energy models.EnergyLevel) models.AttentionReading {
	return models.AttentionReading{UserID: "u", AttentionState: state, EnergyLevel: energy}
}

func TestEnergyMatchScore(t *testing.T) {
	assert.Equal(t, 1.0, energyMatchScore(models.EnergyMedium, models.EnergyMedium))
	assert.Equal(t, 0.5, energyMatchScore(models.EnergyMedium, models.EnergyHigh))
	assert.Equal(t, 0.5, energyMatchScore(models.EnergyMedium, models.EnergyLow))
	assert.Equal(t, 0.0, energyMatchScore(models.EnergyVeryLow, models.EnergyMedium))
	assert.Equal(t, 0.0, energyMatchScore(models.EnergyVeryLow, models.EnergyHigh))
}

func TestAssessTaskTwoStepEnergyMismatchScoresZero(t *testing.T) {
	a := AssessTask(reading(models.AttentionFocused, models.EnergyVeryLow), TaskProfile{
		Complexity:       3,
		EstimatedMinutes: 30,
		RequiredEnergy:   models.EnergyMedium,
	})
	assert.Zero(t, a.EnergyMatch)
	assert.Zero(t, a.SuitabilityScore)
}

func TestTaskTypeFactorBounds(t *testing.T) {
	levels := []models.EnergyLevel{
		models.EnergyVeryLow, models.EnergyLow, models.EnergyMedium,
		models.EnergyHigh, models.EnergyHyperfocus,
	}
	for _, level := range levels {
		f := taskTypeFactor(level)
		assert.GreaterOrEqual(t, f, 0.1, "factor for %s", level)
		assert.LessOrEqual(t, f, 0.4, "factor for %s", level)
	}
}

func TestAssessTaskBounds(t *testing.T) {
	states := []models.AttentionState{
		models.AttentionScattered, models.AttentionFocused,
		models.AttentionHyperfocused, models.AttentionTransitioning,
		models.AttentionOverwhelmed,
	}
	for _, state := range states {
		for complexity := 1; complexity <= 5; complexity++ {
			a := AssessTask(reading(state, models.EnergyMedium), TaskProfile{
				Complexity:       complexity,
				EstimatedMinutes: 45,
				RequiredEnergy:   models.EnergyMedium,
			})
			assert.GreaterOrEqual(t, a.SuitabilityScore, 0.0)
			assert.LessOrEqual(t, a.SuitabilityScore, 1.0)
			assert.GreaterOrEqual(t, a.CognitiveLoad, 0.0)
			assert.LessOrEqual(t, a.CognitiveLoad, 1.0)
			assert.NotEmpty(t, a.Recommendations)
		}
	}
}

func TestAssessTaskScatteredCapsComplexWork(t *testing.T) {
	a := AssessTask(reading(models.AttentionScattered, models.EnergyHigh), TaskProfile{
		Complexity:       5,
		EstimatedMinutes: 90,
		RequiredEnergy:   models.EnergyHigh,
	})
	assert.LessOrEqual(t, a.SuitabilityScore, 0.3)
}

func TestAssessTaskHyperfocusBoostsComplexWork(t *testing.T) {
	base := AssessTask(reading(models.AttentionFocused, models.EnergyHigh), TaskProfile{
		Complexity:       4,
		EstimatedMinutes: 30,
		RequiredEnergy:   models.EnergyHigh,
	})
	boosted := AssessTask(reading(models.AttentionHyperfocused, models.EnergyHigh), TaskProfile{
		Complexity:       4,
		EstimatedMinutes: 30,
		RequiredEnergy:   models.EnergyHigh,
	})
	assert.Greater(t, boosted.SuitabilityScore, base.SuitabilityScore)
}

func TestAssessTaskDeterministic(t *testing.T) {
	r := reading(models.AttentionFocused, models.EnergyMedium)
	profile := TaskProfile{Complexity: 3, EstimatedMinutes: 40, RequiredEnergy: models.EnergyMedium}
	first := AssessTask(r, profile)
	second := AssessTask(r, profile)
	require.Equal(t, first, second)
}

func TestAssessTaskLongTaskGetsCheckpointAdvice(t *testing.T) {
	a := AssessTask(reading(models.AttentionFocused, models.EnergyMedium), TaskProfile{
		Complexity:       2,
		EstimatedMinutes: 120,
		RequiredEnergy:   models.EnergyMedium,
	})
	found := false
	for _, rec := range a.Recommendations {
		if strings.Contains(rec, "checkpoint") {
			found = true
		}
	}
	assert.True(t, found, "long tasks should suggest checkpoints")
}
