package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/dope-context/dope/pkg/models"
)

// PatternService manages workspace-scoped system patterns, keyed by name
// with upsert semantics.
type PatternService struct {
	db    *sql.DB
	locks *workspaceLocks
}

// LogSystemPattern records or replaces a named pattern.
func (s *PatternService) LogSystemPattern(ctx context.Context, workspaceID, name, description string, tags []string) error {
	if workspaceID == "" {
		return NewValidationError("workspace_id", "must not be empty")
	}
	if name == "" {
		return NewValidationError("name", "must not be empty")
	}

	lock := s.locks.forWorkspace(workspaceID)
	lock.Lock()
	defer lock.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO system_patterns (workspace_id, name, description, tags, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (workspace_id, name)
		 DO UPDATE SET description = EXCLUDED.description, tags = EXCLUDED.tags`,
		workspaceID, name, description, marshalTags(tags), time.Now(),
	)
	if err != nil {
		return storageErr("log system pattern", err)
	}
	return nil
}

// GetSystemPattern returns a pattern by name.
func (s *PatternService) GetSystemPattern(ctx context.Context, workspaceID, name string) (*models.SystemPattern, error) {
	var p models.SystemPattern
	var tagsRaw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT pattern_id, workspace_id, name, description, tags, created_at
		 FROM system_patterns WHERE workspace_id = $1 AND name = $2`,
		workspaceID, name,
	).Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Description, &tagsRaw, &p.Timestamp)
	if err != nil {
		return nil, storageErr("get system pattern", err)
	}
	if err := json.Unmarshal(tagsRaw, &p.Tags); err != nil {
		return nil, storageErr("decode pattern tags", err)
	}
	return &p, nil
}

// GlossaryService manages workspace-scoped term definitions, keyed by term
// with upsert semantics.
type GlossaryService struct {
	db    *sql.DB
	locks *workspaceLocks
}

// DefineTerm records or replaces a glossary term.
func (s *GlossaryService) DefineTerm(ctx context.Context, workspaceID, term, definition string) error {
	if workspaceID == "" {
		return NewValidationError("workspace_id", "must not be empty")
	}
	if term == "" {
		return NewValidationError("term", "must not be empty")
	}

	lock := s.locks.forWorkspace(workspaceID)
	lock.Lock()
	defer lock.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO glossary (workspace_id, term, definition, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (workspace_id, term)
		 DO UPDATE SET definition = EXCLUDED.definition, updated_at = EXCLUDED.updated_at`,
		workspaceID, term, definition, time.Now(),
	)
	if err != nil {
		return storageErr("define term", err)
	}
	return nil
}

// GetTerm returns a glossary term.
func (s *GlossaryService) GetTerm(ctx context.Context, workspaceID, term string) (*models.GlossaryTerm, error) {
	var t models.GlossaryTerm
	err := s.db.QueryRowContext(ctx,
		`SELECT workspace_id, term, definition, updated_at
		 FROM glossary WHERE workspace_id = $1 AND term = $2`,
		workspaceID, term,
	).Scan(&t.WorkspaceID, &t.Term, &t.Definition, &t.UpdatedAt)
	if err != nil {
		return nil, storageErr("get term", err)
	}
	return &t, nil
}
