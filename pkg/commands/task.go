package commands

import (
	"context"
	"fmt"
	"math"

	"github.com/dope-context/dope/pkg/attention"
	"github.com/dope-context/dope/pkg/models"
	"github.com/dope-context/dope/pkg/services"
)

// taskAssess scores a task against the user's current attention reading.
// The task comes either from params directly or from a stored progress
// entry referenced by progress_id.
func (d *Dispatcher) taskAssess(ctx context.Context, req Request) (any, error) {
	profile, err := d.taskProfile(ctx, req)
	if err != nil {
		return nil, err
	}
	reading := d.engine.Reading(req.UserID)
	assessment := attention.AssessTask(reading, profile)
	return map[string]any{
		"attention_state": reading.AttentionState,
		"energy_level":    reading.EnergyLevel,
		"assessment":      assessment,
	}, nil
}

// taskImplement selects a task, moves it to IN_PROGRESS, and starts the
// implement-session timer: periodic auto-save plus graduated break
// escalation while the user works.
func (d *Dispatcher) taskImplement(ctx context.Context, req Request) (any, error) {
	entry, err := d.pickTask(ctx, req)
	if err != nil {
		return nil, err
	}

	if entry.Status != models.StatusInProgress {
		if err := d.store.Progress.UpdateProgress(ctx, entry.ID, models.StatusInProgress, entry.Description); err != nil {
			return nil, err
		}
		entry.Status = models.StatusInProgress
	}

	d.startTimer(req.WorkspaceID, req.UserID)
	return map[string]any{
		"task":          entry,
		"timer_started": true,
	}, nil
}

// pickTask resolves the task to implement: an explicit progress_id wins,
// otherwise the open task with the best suitability for the user's current
// state.
func (d *Dispatcher) pickTask(ctx context.Context, req Request) (*models.ProgressEntry, error) {
	if id := int64Param(req.Params, "progress_id"); id > 0 {
		return d.store.Progress.GetProgress(ctx, id)
	}

	candidates, err := d.store.Progress.ListRecent(ctx, req.WorkspaceID, 50)
	if err != nil {
		return nil, err
	}
	reading := d.engine.Reading(req.UserID)

	var best *models.ProgressEntry
	bestScore := -1.0
	for i := range candidates {
		entry := &candidates[i]
		if entry.Status != models.StatusTodo && entry.Status != models.StatusInProgress {
			continue
		}
		score := attention.AssessTask(reading, profileFromEntry(entry)).SuitabilityScore
		if score > bestScore {
			best = entry
			bestScore = score
		}
	}
	if best == nil {
		return nil, services.NewValidationError("progress_id", "no open task to implement; log one first")
	}
	return best, nil
}

// taskProfile builds an assessment profile from params or a stored entry.
func (d *Dispatcher) taskProfile(ctx context.Context, req Request) (attention.TaskProfile, error) {
	if id := int64Param(req.Params, "progress_id"); id > 0 {
		entry, err := d.store.Progress.GetProgress(ctx, id)
		if err != nil {
			return attention.TaskProfile{}, err
		}
		return profileFromEntry(entry), nil
	}

	task, ok := req.Params["task"].(map[string]any)
	if !ok {
		return attention.TaskProfile{}, services.NewValidationError("task", "provide a task object or progress_id")
	}
	return attention.TaskProfile{
		Complexity:       complexityBand(floatParam(task, "complexity_score", 0.5)),
		EstimatedMinutes: floatParam(task, "estimated_minutes", 30),
		RequiredEnergy:   energyParam(task, "energy_required"),
	}, nil
}

func profileFromEntry(entry *models.ProgressEntry) attention.TaskProfile {
	profile := attention.TaskProfile{
		Complexity:       3,
		EstimatedMinutes: 30,
		RequiredEnergy:   models.EnergyMedium,
	}
	if entry.ComplexityScore != nil {
		profile.Complexity = complexityBand(*entry.ComplexityScore)
	}
	if entry.EstimatedMinutes != nil {
		profile.EstimatedMinutes = float64(*entry.EstimatedMinutes)
	}
	if entry.EnergyRequired != nil && models.EnergyLevel(*entry.EnergyRequired).IsValid() {
		profile.RequiredEnergy = models.EnergyLevel(*entry.EnergyRequired)
	}
	return profile
}

// complexityBand maps the stored 0–1 complexity score onto the 1–5 scale
// the assessor works in.
func complexityBand(score float64) int {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return int(math.Round(score*4)) + 1
}

func int64Param(params map[string]any, key string) int64 {
	switch v := params[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		var id int64
		if _, err := fmt.Sscanf(v, "%d", &id); err == nil {
			return id
		}
	}
	return 0
}

func floatParam(params map[string]any, key string, fallback float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

func energyParam(params map[string]any, key string) models.EnergyLevel {
	if s, ok := params[key].(string); ok {
		if level := models.EnergyLevel(s); level.IsValid() {
			return level
		}
	}
	return models.EnergyMedium
}
