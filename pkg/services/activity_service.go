package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/dope-context/dope/pkg/models"
)

// activityCacheTTL bounds how stale a cached summary may be. Short: the
// summary backs interactive commands, and staleness across a session save
// would be user-visible.
const activityCacheTTL = 15 * time.Second

// ActivityService produces recent-activity summaries with a small TTL cache.
type ActivityService struct {
	db *sql.DB

	cacheMu sync.Mutex
	cache   map[string]cachedSummary
}

type cachedSummary struct {
	summary models.ActivitySummary
	at      time.Time
}

// GetRecentActivitySummary returns the latest decisions, progress entries,
// and patterns for a workspace within the given window, capped per type.
func (s *ActivityService) GetRecentActivitySummary(ctx context.Context, workspaceID string, hours int, limitPerType int) (*models.ActivitySummary, error) {
	if workspaceID == "" {
		return nil, NewValidationError("workspace_id", "must not be empty")
	}
	if hours <= 0 {
		hours = 24
	}
	if limitPerType <= 0 {
		limitPerType = 5
	}

	cacheKey := cacheKeyFor(workspaceID, hours, limitPerType)
	s.cacheMu.Lock()
	if s.cache == nil {
		s.cache = make(map[string]cachedSummary)
	}
	if c, ok := s.cache[cacheKey]; ok && time.Since(c.at) < activityCacheTTL {
		s.cacheMu.Unlock()
		summary := c.summary
		return &summary, nil
	}
	s.cacheMu.Unlock()

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	summary := models.ActivitySummary{
		WorkspaceID: workspaceID,
		Since:       since,
		Decisions:   []models.Decision{},
		Progress:    []models.ProgressEntry{},
		Patterns:    []models.SystemPattern{},
	}

	if err := s.recentDecisions(ctx, &summary, since, limitPerType); err != nil {
		return nil, err
	}
	if err := s.recentProgress(ctx, &summary, since, limitPerType); err != nil {
		return nil, err
	}
	if err := s.recentPatterns(ctx, &summary, since, limitPerType); err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	s.cache[cacheKey] = cachedSummary{summary: summary, at: time.Now()}
	s.cacheMu.Unlock()
	return &summary, nil
}

// Invalidate drops cached summaries for a workspace. Called by commands
// that just wrote activity and need the save reflected immediately.
func (s *ActivityService) Invalidate(workspaceID string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	for k := range s.cache {
		if len(k) > len(workspaceID) && k[:len(workspaceID)] == workspaceID {
			delete(s.cache, k)
		}
	}
}

func cacheKeyFor(workspaceID string, hours, limit int) string {
	raw, _ := json.Marshal([]any{workspaceID, hours, limit})
	return workspaceID + "|" + string(raw)
}

func (s *ActivityService) recentDecisions(ctx context.Context, out *models.ActivitySummary, since time.Time, limit int) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT workspace_id, decision_id, summary, rationale, implementation_details, tags, created_at
		 FROM decisions WHERE workspace_id = $1 AND created_at >= $2
		 ORDER BY created_at DESC LIMIT $3`,
		out.WorkspaceID, since, limit,
	)
	if err != nil {
		return storageErr("recent decisions", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return err
		}
		out.Decisions = append(out.Decisions, *d)
	}
	return rows.Err()
}

func (s *ActivityService) recentProgress(ctx context.Context, out *models.ActivitySummary, since time.Time, limit int) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT progress_id, workspace_id, status, description, parent_id,
		        created_at, updated_at, completed_at,
		        complexity_score, estimated_minutes, energy_required, cognitive_load, break_points
		 FROM progress WHERE workspace_id = $1 AND updated_at >= $2
		 ORDER BY updated_at DESC LIMIT $3`,
		out.WorkspaceID, since, limit,
	)
	if err != nil {
		return storageErr("recent progress", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		e, err := scanProgress(rows)
		if err != nil {
			return err
		}
		out.Progress = append(out.Progress, *e)
	}
	return rows.Err()
}

func (s *ActivityService) recentPatterns(ctx context.Context, out *models.ActivitySummary, since time.Time, limit int) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pattern_id, workspace_id, name, description, tags, created_at
		 FROM system_patterns WHERE workspace_id = $1 AND created_at >= $2
		 ORDER BY created_at DESC LIMIT $3`,
		out.WorkspaceID, since, limit,
	)
	if err != nil {
		return storageErr("recent patterns", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var p models.SystemPattern
		var tagsRaw []byte
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Description, &tagsRaw, &p.Timestamp); err != nil {
			return storageErr("scan pattern", err)
		}
		if err := json.Unmarshal(tagsRaw, &p.Tags); err != nil {
			return storageErr("decode pattern tags", err)
		}
		out.Patterns = append(out.Patterns, p)
	}
	return rows.Err()
}
