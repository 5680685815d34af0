package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/dope-context/dope/pkg/models"
)

// CustomDataService manages workspace-scoped records keyed by
// (category, key) with upsert semantics. Values are arbitrary structured
// data, full-text searchable.
type CustomDataService struct {
	db    *sql.DB
	locks *workspaceLocks
}

// LogCustomData stores or replaces the value at (category, key).
func (s *CustomDataService) LogCustomData(ctx context.Context, workspaceID, category, key string, value any) error {
	if workspaceID == "" {
		return NewValidationError("workspace_id", "must not be empty")
	}
	if category == "" || key == "" {
		return NewValidationError("category/key", "must not be empty")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return NewValidationError("value", "not serializable: "+err.Error())
	}

	lock := s.locks.forWorkspace(workspaceID)
	lock.Lock()
	defer lock.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO custom_data (workspace_id, category, key, value, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (workspace_id, category, key)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		workspaceID, category, key, raw, time.Now(),
	)
	if err != nil {
		return storageErr("log custom data", err)
	}
	return nil
}

// GetCustomData returns the value at (category, key).
func (s *CustomDataService) GetCustomData(ctx context.Context, workspaceID, category, key string) (*models.CustomData, error) {
	var d models.CustomData
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT workspace_id, category, key, value, updated_at
		 FROM custom_data WHERE workspace_id = $1 AND category = $2 AND key = $3`,
		workspaceID, category, key,
	).Scan(&d.WorkspaceID, &d.Category, &d.Key, &raw, &d.UpdatedAt)
	if err != nil {
		return nil, storageErr("get custom data", err)
	}
	if err := json.Unmarshal(raw, &d.Value); err != nil {
		return nil, storageErr("decode custom data", err)
	}
	return &d, nil
}

// SearchCustomDataFTS runs a full-text search over a workspace's custom
// data, most relevant first.
func (s *CustomDataService) SearchCustomDataFTS(ctx context.Context, workspaceID, query string, limit int) ([]models.CustomData, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT workspace_id, category, key, value, updated_at
		 FROM custom_data
		 WHERE workspace_id = $1
		   AND to_tsvector('english', category || ' ' || key || ' ' || value::text)
		       @@ plainto_tsquery('english', $2)
		 ORDER BY updated_at DESC
		 LIMIT $3`,
		workspaceID, query, limit,
	)
	if err != nil {
		return nil, storageErr("search custom data", err)
	}
	defer func() { _ = rows.Close() }()

	var results []models.CustomData
	for rows.Next() {
		var d models.CustomData
		var raw []byte
		if err := rows.Scan(&d.WorkspaceID, &d.Category, &d.Key, &raw, &d.UpdatedAt); err != nil {
			return nil, storageErr("scan custom data", err)
		}
		if err := json.Unmarshal(raw, &d.Value); err != nil {
			return nil, storageErr("decode custom data", err)
		}
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("search custom data", err)
	}
	return results, nil
}
