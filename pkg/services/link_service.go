package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dope-context/dope/pkg/models"
)

// LinkService manages typed directed edges between stored items. Both
// endpoints must exist in the same workspace; dangling edges are rejected
// at write time.
type LinkService struct {
	db    *sql.DB
	locks *workspaceLocks
}

// LinkItems creates an edge. Unique on (source, target, relationship)
// within a workspace; re-linking the same triple is a no-op.
func (s *LinkService) LinkItems(ctx context.Context, workspaceID string, sourceType models.ItemType, sourceID string, targetType models.ItemType, targetID string, rel models.Relationship, description string) (int64, error) {
	if workspaceID == "" {
		return 0, NewValidationError("workspace_id", "must not be empty")
	}
	if !sourceType.IsValid() {
		return 0, NewValidationError("source_type", fmt.Sprintf("unknown item type %q", sourceType))
	}
	if !targetType.IsValid() {
		return 0, NewValidationError("target_type", fmt.Sprintf("unknown item type %q", targetType))
	}
	if !rel.IsValid() {
		return 0, NewValidationError("relationship", fmt.Sprintf("unknown relationship %q", rel))
	}

	lock := s.locks.forWorkspace(workspaceID)
	lock.Lock()
	defer lock.Unlock()

	// Endpoint existence checks run under the workspace lock, so no
	// concurrent delete can invalidate them before the insert commits
	// (deletes are also workspace-serialized).
	for _, ep := range []struct {
		itemType models.ItemType
		id       string
		field    string
	}{
		{sourceType, sourceID, "source"},
		{targetType, targetID, "target"},
	} {
		exists, err := s.itemExists(ctx, workspaceID, ep.itemType, ep.id)
		if err != nil {
			return 0, err
		}
		if !exists {
			return 0, NewValidationError(ep.field,
				fmt.Sprintf("%s %q does not exist in workspace", ep.itemType, ep.id))
		}
	}

	var linkID int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO links (workspace_id, source_type, source_id, target_type, target_id, relationship, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (workspace_id, source_type, source_id, target_type, target_id, relationship)
		 DO UPDATE SET description = links.description
		 RETURNING link_id`,
		workspaceID, string(sourceType), sourceID, string(targetType), targetID,
		string(rel), description, time.Now(),
	).Scan(&linkID)
	if err != nil {
		return 0, storageErr("link items", err)
	}
	return linkID, nil
}

// ListLinks returns all edges touching an item (as source or target).
func (s *LinkService) ListLinks(ctx context.Context, workspaceID string, itemType models.ItemType, itemID string) ([]models.Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT link_id, workspace_id, source_type, source_id, target_type, target_id, relationship, description, created_at
		 FROM links
		 WHERE workspace_id = $1
		   AND ((source_type = $2 AND source_id = $3) OR (target_type = $2 AND target_id = $3))
		 ORDER BY link_id`,
		workspaceID, string(itemType), itemID,
	)
	if err != nil {
		return nil, storageErr("list links", err)
	}
	defer func() { _ = rows.Close() }()

	var links []models.Link
	for rows.Next() {
		var l models.Link
		var st, tt, rel string
		if err := rows.Scan(&l.ID, &l.WorkspaceID, &st, &l.SourceID, &tt, &l.TargetID, &rel, &l.Description, &l.CreatedAt); err != nil {
			return nil, storageErr("scan link", err)
		}
		l.SourceType = models.ItemType(st)
		l.TargetType = models.ItemType(tt)
		l.Relationship = models.Relationship(rel)
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list links", err)
	}
	return links, nil
}

// itemExists checks whether a link endpoint refers to a real item in the
// given workspace.
func (s *LinkService) itemExists(ctx context.Context, workspaceID string, itemType models.ItemType, id string) (bool, error) {
	var query string
	var args []any
	switch itemType {
	case models.ItemTypeDecision:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return false, nil
		}
		query = `SELECT 1 FROM decisions WHERE workspace_id = $1 AND decision_id = $2`
		args = []any{workspaceID, n}
	case models.ItemTypeProgress:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return false, nil
		}
		query = `SELECT 1 FROM progress WHERE workspace_id = $1 AND progress_id = $2`
		args = []any{workspaceID, n}
	case models.ItemTypePattern:
		query = `SELECT 1 FROM system_patterns WHERE workspace_id = $1 AND name = $2`
		args = []any{workspaceID, id}
	case models.ItemTypeCustomData:
		// Custom data ids are "category/key".
		query = `SELECT 1 FROM custom_data WHERE workspace_id = $1 AND category || '/' || key = $2`
		args = []any{workspaceID, id}
	default:
		return false, nil
	}

	var one int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("check link endpoint", err)
	}
	return true, nil
}
