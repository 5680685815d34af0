package commands

import (
	"context"
	"time"

	"github.com/dope-context/dope/pkg/models"
)

// Implement-session timer cadence.
const (
	// timerTick is how often the timer re-evaluates the break policy.
	timerTick = time.Minute

	// autosaveInterval is how often the active context gets a save
	// timestamp while an implement session runs.
	autosaveInterval = 5 * time.Minute
)

// implementTimer runs alongside an implement session: it auto-saves the
// active context and escalates break urgency as continuous work piles up.
// One timer per user; starting a new one replaces the old.
type implementTimer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (d *Dispatcher) startTimer(workspaceID, userID string) {
	d.mu.Lock()
	if old, ok := d.timers[userID]; ok {
		delete(d.timers, userID)
		d.mu.Unlock()
		old.stop()
		d.mu.Lock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &implementTimer{cancel: cancel, done: make(chan struct{})}
	d.timers[userID] = t
	d.mu.Unlock()

	go d.runTimer(ctx, t, workspaceID, userID)
}

func (d *Dispatcher) stopTimer(userID string) {
	d.mu.Lock()
	t, ok := d.timers[userID]
	delete(d.timers, userID)
	d.mu.Unlock()
	if ok {
		t.stop()
	}
}

func (t *implementTimer) stop() {
	t.cancel()
	<-t.done
}

func (d *Dispatcher) runTimer(ctx context.Context, t *implementTimer, workspaceID, userID string) {
	defer close(t.done)

	ticker := time.NewTicker(timerTick)
	defer ticker.Stop()

	lastSave := d.now()
	lastUrgency := models.BreakNone

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if d.now().Sub(lastSave) >= autosaveInterval {
			if _, err := d.store.Context.UpdateActiveContext(ctx, workspaceID, map[string]any{
				models.ContextFieldSessionSaved: d.now().UTC().Format(time.RFC3339),
			}); err != nil {
				d.logger.Warn("Implement-session autosave failed", "workspace_id", workspaceID, "error", err)
			} else {
				lastSave = d.now()
			}
		}

		rec := d.engine.CheckBreak(userID)
		if rec.Urgency != lastUrgency && rec.Urgency != models.BreakNone {
			// Announce each escalation once. The mandatory latch itself is
			// set inside CheckBreak; this is the user-facing nudge.
			d.emitBreakEscalation(workspaceID, userID, rec)
		}
		lastUrgency = rec.Urgency
	}
}

func (d *Dispatcher) emitBreakEscalation(workspaceID, userID string, rec models.BreakRecommendation) {
	priority := models.EventPriorityMedium
	if rec.Urgency == models.BreakMandatory {
		priority = models.EventPriorityCritical
	}
	d.emit(models.EventTypeBreakRecommended, priority, map[string]any{
		"workspace_id":   workspaceID,
		"user_id":        userID,
		"urgency":        string(rec.Urgency),
		"worked_minutes": rec.WorkedMinutes,
		"message":        rec.Message,
	})
}
