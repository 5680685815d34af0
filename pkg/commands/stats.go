package commands

import (
	"context"
	"time"

	"github.com/dope-context/dope/pkg/models"
	"github.com/dope-context/dope/pkg/registry"
)

// stats returns the operator's one-look dashboard: attention reading,
// recent completions, remaining budgets, and backend health.
func (d *Dispatcher) stats(ctx context.Context, req Request) (any, error) {
	reading := d.engine.Reading(req.UserID)

	completed, err := d.store.Progress.CountCompletedSince(ctx, req.WorkspaceID, d.now().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}

	budgets := make(map[string]map[string]int, len(d.cfg.Roles))
	for role, rc := range d.cfg.Roles {
		spent := d.broker.BudgetSpent(req.WorkspaceID, role)
		remaining := rc.BudgetUnits - spent
		if remaining < 0 {
			remaining = 0
		}
		budgets[string(role)] = map[string]int{
			"budget":    rc.BudgetUnits,
			"spent":     spent,
			"remaining": remaining,
		}
	}

	backends := make([]map[string]any, 0)
	healthCounts := make(map[models.HealthState]int)
	for _, s := range d.registry.List(registry.Filter{}) {
		healthCounts[s.Health]++
		backends = append(backends, map[string]any{
			"name":            s.Descriptor.Name,
			"health":          s.Health,
			"priority":        s.Descriptor.Priority,
			"last_latency_ms": s.LastLatencyMS,
		})
	}

	return map[string]any{
		"attention": map[string]any{
			"state":          reading.AttentionState,
			"energy":         reading.EnergyLevel,
			"worked_minutes": d.engine.WorkedMinutes(req.UserID),
			"break_active":   d.engine.BreakActive(req.UserID),
		},
		"completed_24h":  completed,
		"budgets":        budgets,
		"backends":       backends,
		"backend_health": healthCounts,
		"broker":         d.broker.Stats(),
	}, nil
}
