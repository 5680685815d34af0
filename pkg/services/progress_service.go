package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dope-context/dope/pkg/models"
)

// ProgressService manages progress entries and enforces their state machine.
type ProgressService struct {
	db    *sql.DB
	locks *workspaceLocks
	sink  EventSink
}

// LogProgress creates a new progress entry and returns its id.
// parentID may be nil. meta carries the optional ADHD metadata fields.
func (s *ProgressService) LogProgress(ctx context.Context, workspaceID string, status models.ProgressStatus, description string, parentID *int64, meta *models.ProgressEntry) (int64, error) {
	if workspaceID == "" {
		return 0, NewValidationError("workspace_id", "must not be empty")
	}
	if !status.IsValid() {
		return 0, NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	if description == "" {
		return 0, NewValidationError("description", "must not be empty")
	}

	lock := s.locks.forWorkspace(workspaceID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()
	var completedAt *time.Time
	if status == models.StatusDone {
		completedAt = &now
	}

	var complexity, cogLoad *float64
	var estMinutes *int
	var energy *string
	var breakPoints []byte
	if meta != nil {
		complexity = meta.ComplexityScore
		cogLoad = meta.CognitiveLoad
		estMinutes = meta.EstimatedMinutes
		energy = meta.EnergyRequired
		if meta.BreakPoints != nil {
			breakPoints, _ = json.Marshal(meta.BreakPoints)
		}
	}

	var progressID int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO progress
		   (workspace_id, status, description, parent_id, created_at, updated_at, completed_at,
		    complexity_score, estimated_minutes, energy_required, cognitive_load, break_points)
		 VALUES ($1, $2, $3, $4, $5, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING progress_id`,
		workspaceID, string(status), description, parentID, now, completedAt,
		complexity, estMinutes, energy, cogLoad, breakPoints,
	).Scan(&progressID)
	if err != nil {
		return 0, storageErr("log progress", err)
	}

	if s.sink != nil {
		_ = s.sink.Publish(ctx, models.Event{
			EventType:     models.EventTypeTaskCreated,
			EventID:       uuid.New().String(),
			Timestamp:     now,
			SourceSystem:  models.SourceTaskPlanning,
			TargetSystems: []string{"*"},
			Priority:      models.EventPriorityMedium,
			Data: map[string]any{
				"workspace_id": workspaceID,
				"progress_id":  progressID,
				"status":       string(status),
				"description":  description,
			},
		})
	}
	return progressID, nil
}

// UpdateProgress moves an entry to a new status, enforcing the transition
// state machine. An illegal transition returns ErrIllegalTransition and
// leaves the stored entry untouched. description, when non-empty, replaces
// the stored description.
func (s *ProgressService) UpdateProgress(ctx context.Context, progressID int64, status models.ProgressStatus, description string) error {
	if !status.IsValid() {
		return NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}

	entry, err := s.GetProgress(ctx, progressID)
	if err != nil {
		return err
	}

	lock := s.locks.forWorkspace(entry.WorkspaceID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: another writer may have advanced the entry
	// between the unlocked read and lock acquisition.
	entry, err = s.GetProgress(ctx, progressID)
	if err != nil {
		return err
	}

	if !models.CanTransition(entry.Status, status) {
		return fmt.Errorf("%w: %s → %s", ErrIllegalTransition, entry.Status, status)
	}

	now := time.Now()
	var completedAt any
	if status == models.StatusDone {
		completedAt = now
	} else if entry.Status == models.StatusDone {
		completedAt = nil // explicit undo clears the terminal timestamp
	} else {
		completedAt = entry.CompletedAt
	}
	if description == "" {
		description = entry.Description
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE progress
		 SET status = $1, description = $2, updated_at = $3, completed_at = $4
		 WHERE progress_id = $5`,
		string(status), description, now, completedAt, progressID,
	)
	if err != nil {
		return storageErr("update progress", err)
	}

	if s.sink != nil && status != entry.Status {
		_ = s.sink.Publish(ctx, models.Event{
			EventType:     models.EventTypeStatusChanged,
			EventID:       uuid.New().String(),
			Timestamp:     now,
			SourceSystem:  models.SourceProjectManagement,
			TargetSystems: []string{"*"},
			Priority:      models.EventPriorityMedium,
			Data: map[string]any{
				"workspace_id": entry.WorkspaceID,
				"progress_id":  progressID,
				"old_status":   string(entry.Status),
				"new_status":   string(status),
			},
		})
	}
	return nil
}

// GetProgress returns a single entry by id.
func (s *ProgressService) GetProgress(ctx context.Context, progressID int64) (*models.ProgressEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT progress_id, workspace_id, status, description, parent_id,
		        created_at, updated_at, completed_at,
		        complexity_score, estimated_minutes, energy_required, cognitive_load, break_points
		 FROM progress WHERE progress_id = $1`,
		progressID,
	)
	return scanProgress(row)
}

// ListRecent returns the most recent entries for a workspace.
func (s *ProgressService) ListRecent(ctx context.Context, workspaceID string, limit int) ([]models.ProgressEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT progress_id, workspace_id, status, description, parent_id,
		        created_at, updated_at, completed_at,
		        complexity_score, estimated_minutes, energy_required, cognitive_load, break_points
		 FROM progress WHERE workspace_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		workspaceID, limit,
	)
	if err != nil {
		return nil, storageErr("list progress", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []models.ProgressEntry
	for rows.Next() {
		e, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list progress", err)
	}
	return entries, nil
}

// CountCompletedSince counts entries finished within a time window, used by
// the stats command.
func (s *ProgressService) CountCompletedSince(ctx context.Context, workspaceID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM progress
		 WHERE workspace_id = $1 AND status = $2 AND completed_at >= $3`,
		workspaceID, string(models.StatusDone), since,
	).Scan(&n)
	if err != nil {
		return 0, storageErr("count completed", err)
	}
	return n, nil
}

func scanProgress(row rowScanner) (*models.ProgressEntry, error) {
	var e models.ProgressEntry
	var status string
	var breakPoints []byte
	err := row.Scan(&e.ID, &e.WorkspaceID, &status, &e.Description, &e.ParentID,
		&e.CreatedAt, &e.UpdatedAt, &e.CompletedAt,
		&e.ComplexityScore, &e.EstimatedMinutes, &e.EnergyRequired, &e.CognitiveLoad, &breakPoints)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("progress entry: %w", ErrNotFound)
		}
		return nil, storageErr("scan progress", err)
	}
	e.Status = models.ProgressStatus(status)
	if len(breakPoints) > 0 {
		if err := json.Unmarshal(breakPoints, &e.BreakPoints); err != nil {
			return nil, storageErr("decode break points", err)
		}
	}
	return &e, nil
}
