package commands

import (
	"context"
	"errors"
	"time"

	"github.com/dope-context/dope/pkg/models"
	"github.com/dope-context/dope/pkg/syncindex"
)

// sessionStart reads the active context and, when no session is running,
// initializes one. Starting an already-started session is a no-op read.
func (d *Dispatcher) sessionStart(ctx context.Context, req Request) (any, error) {
	doc, err := d.store.Context.GetActiveContext(ctx, req.WorkspaceID)
	if err != nil {
		return nil, err
	}

	started := false
	if doc.String(models.ContextFieldSessionStart) == "" || doc.String(models.ContextFieldSessionEnd) != "" {
		patch := map[string]any{
			models.ContextFieldSessionStart: d.now().UTC().Format(time.RFC3339),
			models.ContextFieldSessionEnd:   "",
			models.ContextFieldMode:         string(models.ModeAct),
			models.ContextFieldOnBreak:      false,
		}
		doc, err = d.store.Context.UpdateActiveContext(ctx, req.WorkspaceID, patch)
		if err != nil {
			return nil, err
		}
		started = true
	}

	d.engine.StartWork(req.UserID)
	if started {
		d.emit(models.EventTypeSessionStarted, models.EventPriorityMedium, map[string]any{
			"workspace_id": req.WorkspaceID,
			"user_id":      req.UserID,
		})
	}
	return map[string]any{"active_context": doc, "started": started}, nil
}

// sessionSave patches the active context with the caller's focus and task
// lists plus a save timestamp. Unknown params are carried into the document
// untouched.
func (d *Dispatcher) sessionSave(ctx context.Context, req Request) (any, error) {
	patch := make(map[string]any, len(req.Params)+1)
	for k, v := range req.Params {
		patch[k] = v
	}
	patch[models.ContextFieldSessionSaved] = d.now().UTC().Format(time.RFC3339)

	doc, err := d.store.Context.UpdateActiveContext(ctx, req.WorkspaceID, patch)
	if err != nil {
		return nil, err
	}

	result := map[string]any{"active_context": doc}
	if changes, ok := d.snapshotWorkspace(ctx, req.WorkspaceID); ok {
		result["workspace_changes"] = changes
	}
	return result, nil
}

// snapshotWorkspace hashes the workspace, diffs it against the stored
// snapshot, and commits the new one. Saving from a workspace id that is not
// a real directory is fine; change detection just stays off.
func (d *Dispatcher) snapshotWorkspace(ctx context.Context, workspacePath string) (syncindex.Changes, bool) {
	if d.snapshots == nil {
		return syncindex.Changes{}, false
	}
	current, err := d.snapshots.Take(ctx, workspacePath)
	if err != nil {
		d.logger.Warn("Workspace snapshot skipped", "workspace", workspacePath, "error", err)
		return syncindex.Changes{}, false
	}
	previous, err := d.snapshots.Load(workspacePath)
	if err != nil && !errors.Is(err, syncindex.ErrNoSnapshot) {
		d.logger.Warn("Failed to load previous snapshot", "workspace", workspacePath, "error", err)
		return syncindex.Changes{}, false
	}
	if err := d.snapshots.Save(current); err != nil {
		d.logger.Warn("Failed to save workspace snapshot", "workspace", workspacePath, "error", err)
		return syncindex.Changes{}, false
	}
	return syncindex.Diff(previous, current), true
}

// sessionLoad returns the active context, a 24h activity summary, and the
// most recent progress entries.
func (d *Dispatcher) sessionLoad(ctx context.Context, req Request) (any, error) {
	doc, err := d.store.Context.GetActiveContext(ctx, req.WorkspaceID)
	if err != nil {
		return nil, err
	}
	summary, err := d.store.Activity.GetRecentActivitySummary(ctx, req.WorkspaceID, 24, 10)
	if err != nil {
		return nil, err
	}
	limit := intParam(req.Params, "limit", 5)
	progress, err := d.store.Progress.ListRecent(ctx, req.WorkspaceID, limit)
	if err != nil {
		return nil, err
	}
	result := map[string]any{
		"active_context":  doc,
		"recent_activity": summary,
		"recent_progress": progress,
	}
	if changes, ok := d.pendingWorkspaceChanges(ctx, req.WorkspaceID); ok {
		result["workspace_changes"] = changes
	}
	return result, nil
}

// pendingWorkspaceChanges diffs the workspace against its last saved
// snapshot without committing a new one, so a load never hides edits from
// the next save.
func (d *Dispatcher) pendingWorkspaceChanges(ctx context.Context, workspacePath string) (syncindex.Changes, bool) {
	if d.snapshots == nil {
		return syncindex.Changes{}, false
	}
	previous, err := d.snapshots.Load(workspacePath)
	if err != nil {
		if !errors.Is(err, syncindex.ErrNoSnapshot) {
			d.logger.Warn("Failed to load previous snapshot", "workspace", workspacePath, "error", err)
		}
		return syncindex.Changes{}, false
	}
	current, err := d.snapshots.Take(ctx, workspacePath)
	if err != nil {
		d.logger.Warn("Workspace snapshot skipped", "workspace", workspacePath, "error", err)
		return syncindex.Changes{}, false
	}
	return syncindex.Diff(previous, current), true
}

// sessionBreak records the break in the active context and the attention
// engine, then announces it.
func (d *Dispatcher) sessionBreak(ctx context.Context, req Request) (any, error) {
	doc, err := d.store.Context.UpdateActiveContext(ctx, req.WorkspaceID, map[string]any{
		models.ContextFieldOnBreak:    true,
		models.ContextFieldBreakStart: d.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	d.engine.StartBreak(req.UserID)
	d.emit(models.EventTypeBreakStarted, models.EventPriorityMedium, map[string]any{
		"workspace_id": req.WorkspaceID,
		"user_id":      req.UserID,
	})
	return map[string]any{"active_context": doc}, nil
}

// sessionResume ends the break. This is the single path that clears a
// mandatory break latch; blocked invocations start flowing again here.
func (d *Dispatcher) sessionResume(ctx context.Context, req Request) (any, error) {
	now := d.now().UTC().Format(time.RFC3339)
	doc, err := d.store.Context.UpdateActiveContext(ctx, req.WorkspaceID, map[string]any{
		models.ContextFieldOnBreak:    false,
		models.ContextFieldResumeTime: now,
		models.ContextFieldLastBreak:  now,
	})
	if err != nil {
		return nil, err
	}
	d.engine.EndBreak(req.UserID)
	d.emit(models.EventTypeBreakEnded, models.EventPriorityMedium, map[string]any{
		"workspace_id": req.WorkspaceID,
		"user_id":      req.UserID,
	})
	return map[string]any{"active_context": doc}, nil
}

// sessionEnd finalizes the session, asks the attention engine for a closing
// break recommendation, and stops any implement timer.
func (d *Dispatcher) sessionEnd(ctx context.Context, req Request) (any, error) {
	recommendation := d.engine.CheckBreak(req.UserID)

	doc, err := d.store.Context.UpdateActiveContext(ctx, req.WorkspaceID, map[string]any{
		models.ContextFieldSessionEnd: d.now().UTC().Format(time.RFC3339),
		models.ContextFieldOnBreak:    false,
	})
	if err != nil {
		return nil, err
	}

	d.stopTimer(req.UserID)
	d.engine.EndWork(req.UserID)
	d.emit(models.EventTypeSessionEnded, models.EventPriorityMedium, map[string]any{
		"workspace_id": req.WorkspaceID,
		"user_id":      req.UserID,
	})
	return map[string]any{
		"active_context":       doc,
		"break_recommendation": recommendation,
	}, nil
}

func intParam(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		if v > 0 {
			return v
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return fallback
}
