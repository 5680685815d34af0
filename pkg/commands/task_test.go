package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dope-context/dope/pkg/models"
)

func TestComplexityBand(t *testing.T) {
	tests := []struct {
		score    float64
		expected int
	}{
		{0, 1},
		{0.1, 1},
		{0.25, 2},
		{0.5, 3},
		{0.75, 4},
		{0.9, 5},
		{1, 5},
		{-0.5, 1}, // clamped
		{1.5, 5},  // clamped
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, complexityBand(tt.score), "score %v", tt.score)
	}
}

func TestProfileFromEntry(t *testing.T) {
	t.Run("bare entry gets defaults", func(t *testing.T) {
		profile := profileFromEntry(&models.ProgressEntry{})
		assert.Equal(t, 3, profile.Complexity)
		assert.Equal(t, 30.0, profile.EstimatedMinutes)
		assert.Equal(t, models.EnergyMedium, profile.RequiredEnergy)
	})

	t.Run("stored fields win", func(t *testing.T) {
		score := 0.9
		minutes := 120
		energy := string(models.EnergyHigh)
		profile := profileFromEntry(&models.ProgressEntry{
			ComplexityScore:  &score,
			EstimatedMinutes: &minutes,
			EnergyRequired:   &energy,
		})
		assert.Equal(t, 5, profile.Complexity)
		assert.Equal(t, 120.0, profile.EstimatedMinutes)
		assert.Equal(t, models.EnergyHigh, profile.RequiredEnergy)
	})

	t.Run("unknown energy falls back to medium", func(t *testing.T) {
		energy := "cosmic"
		profile := profileFromEntry(&models.ProgressEntry{EnergyRequired: &energy})
		assert.Equal(t, models.EnergyMedium, profile.RequiredEnergy)
	})
}

func TestParamHelpers(t *testing.T) {
	t.Run("int64Param", func(t *testing.T) {
		assert.Equal(t, int64(7), int64Param(map[string]any{"id": 7}, "id"))
		assert.Equal(t, int64(7), int64Param(map[string]any{"id": float64(7)}, "id"), "JSON numbers decode as float64")
		assert.Equal(t, int64(7), int64Param(map[string]any{"id": "7"}, "id"))
		assert.Zero(t, int64Param(map[string]any{"id": "seven"}, "id"))
		assert.Zero(t, int64Param(nil, "id"))
	})

	t.Run("floatParam", func(t *testing.T) {
		assert.Equal(t, 2.5, floatParam(map[string]any{"v": 2.5}, "v", 1))
		assert.Equal(t, 2.0, floatParam(map[string]any{"v": 2}, "v", 1))
		assert.Equal(t, 1.0, floatParam(map[string]any{"v": "2"}, "v", 1))
		assert.Equal(t, 1.0, floatParam(nil, "v", 1))
	})

	t.Run("intParam", func(t *testing.T) {
		assert.Equal(t, 9, intParam(map[string]any{"limit": float64(9)}, "limit", 5))
		assert.Equal(t, 5, intParam(map[string]any{"limit": -1}, "limit", 5), "non-positive falls back")
		assert.Equal(t, 5, intParam(nil, "limit", 5))
	})

	t.Run("energyParam", func(t *testing.T) {
		assert.Equal(t, models.EnergyHigh, energyParam(map[string]any{"e": "high"}, "e"))
		assert.Equal(t, models.EnergyMedium, energyParam(map[string]any{"e": "cosmic"}, "e"))
		assert.Equal(t, models.EnergyMedium, energyParam(nil, "e"))
	})
}

func TestRunRejectsMissingIdentity(t *testing.T) {
	d := &Dispatcher{}
	_, err := d.Run(context.Background(), "stats", Request{UserID: "u"})
	assert.Equal(t, ExitValidationError, ExitCodeFor(err))

	_, err = d.Run(context.Background(), "stats", Request{WorkspaceID: "ws"})
	assert.Equal(t, ExitValidationError, ExitCodeFor(err))
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	d := &Dispatcher{}
	_, err := d.Run(context.Background(), "session.nap", Request{WorkspaceID: "ws", UserID: "u"})
	assert.Equal(t, ExitValidationError, ExitCodeFor(err))
}
