package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/dope-context/dope/pkg/models"
)

// ContextService manages the per-workspace active context singleton.
type ContextService struct {
	db    *sql.DB
	locks *workspaceLocks
}

// GetActiveContext returns the workspace's active context. A workspace that
// has never been touched returns an empty document, not ErrNotFound — the
// singleton is created lazily on first patch.
func (s *ContextService) GetActiveContext(ctx context.Context, workspaceID string) (models.ActiveContext, error) {
	if workspaceID == "" {
		return nil, NewValidationError("workspace_id", "must not be empty")
	}

	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM active_contexts WHERE workspace_id = $1`,
		workspaceID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ActiveContext{}, nil
	}
	if err != nil {
		return nil, storageErr("get active context", err)
	}

	var doc models.ActiveContext
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, storageErr("decode active context", err)
	}
	return doc, nil
}

// UpdateActiveContext applies a patch to the workspace's active context:
// named fields overwrite, unnamed fields are preserved, nested maps are
// deep-merged one level. The read-merge-write runs under the workspace
// write lock, so concurrent patches serialize and readers only ever see
// committed documents. Replaying an identical patch is idempotent.
func (s *ContextService) UpdateActiveContext(ctx context.Context, workspaceID string, patch map[string]any) (models.ActiveContext, error) {
	if workspaceID == "" {
		return nil, NewValidationError("workspace_id", "must not be empty")
	}
	if patch == nil {
		return nil, NewValidationError("patch", "must not be nil")
	}

	lock := s.locks.forWorkspace(workspaceID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.GetActiveContext(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	merged := current.MergePatch(patch)
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, storageErr("encode active context", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO active_contexts (workspace_id, document, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (workspace_id)
		 DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`,
		workspaceID, raw, time.Now(),
	)
	if err != nil {
		return nil, storageErr("update active context", err)
	}
	return merged, nil
}
