package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dope-context/dope/pkg/models"
)

// DecisionService manages immutable decision records. Decisions are
// append-only: there is deliberately no update or delete operation.
type DecisionService struct {
	db    *sql.DB
	locks *workspaceLocks
	sink  EventSink
}

// LogDecision records a decision and returns its per-workspace monotonic id.
func (s *DecisionService) LogDecision(ctx context.Context, workspaceID, summary, rationale, details string, tags []string) (int64, error) {
	if workspaceID == "" {
		return 0, NewValidationError("workspace_id", "must not be empty")
	}
	if summary == "" {
		return 0, NewValidationError("summary", "must not be empty")
	}
	tagsJSON := marshalTags(tags)

	// The per-workspace lock makes MAX+1 safe without a per-workspace
	// sequence: no two inserts for the same workspace run concurrently.
	lock := s.locks.forWorkspace(workspaceID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()
	var decisionID int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO decisions (workspace_id, decision_id, summary, rationale, implementation_details, tags, created_at)
		 SELECT $1, COALESCE(MAX(decision_id), 0) + 1, $2, $3, $4, $5, $6
		 FROM decisions WHERE workspace_id = $1
		 RETURNING decision_id`,
		workspaceID, summary, rationale, details, tagsJSON, now,
	).Scan(&decisionID)
	if err != nil {
		return 0, storageErr("log decision", err)
	}

	if s.sink != nil {
		_ = s.sink.Publish(ctx, models.Event{
			EventType:     models.EventTypeDecisionLogged,
			EventID:       uuid.New().String(),
			Timestamp:     now,
			SourceSystem:  models.SourceSessionStore,
			TargetSystems: []string{"*"},
			Priority:      models.EventPriorityMedium,
			Data: map[string]any{
				"workspace_id": workspaceID,
				"decision_id":  decisionID,
				"summary":      summary,
			},
		})
	}
	return decisionID, nil
}

// GetDecision returns a single decision.
func (s *DecisionService) GetDecision(ctx context.Context, workspaceID string, decisionID int64) (*models.Decision, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT workspace_id, decision_id, summary, rationale, implementation_details, tags, created_at
		 FROM decisions WHERE workspace_id = $1 AND decision_id = $2`,
		workspaceID, decisionID,
	)
	return scanDecision(row)
}

// SearchDecisionsFTS runs a full-text search over decision content within
// a workspace, most relevant first.
func (s *DecisionService) SearchDecisionsFTS(ctx context.Context, workspaceID, query string, limit int) ([]models.Decision, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT workspace_id, decision_id, summary, rationale, implementation_details, tags, created_at
		 FROM decisions
		 WHERE workspace_id = $1
		   AND to_tsvector('english', summary || ' ' || rationale || ' ' || implementation_details)
		       @@ plainto_tsquery('english', $2)
		 ORDER BY ts_rank(
		       to_tsvector('english', summary || ' ' || rationale || ' ' || implementation_details),
		       plainto_tsquery('english', $2)) DESC
		 LIMIT $3`,
		workspaceID, query, limit,
	)
	if err != nil {
		return nil, storageErr("search decisions", err)
	}
	defer func() { _ = rows.Close() }()

	var results []models.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("search decisions", err)
	}
	return results, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (*models.Decision, error) {
	var d models.Decision
	var tagsRaw []byte
	err := row.Scan(&d.WorkspaceID, &d.ID, &d.Summary, &d.Rationale,
		&d.ImplementationDetails, &tagsRaw, &d.Timestamp)
	if err != nil {
		return nil, storageErr("scan decision", err)
	}
	if err := json.Unmarshal(tagsRaw, &d.Tags); err != nil {
		return nil, storageErr("decode decision tags", err)
	}
	return &d, nil
}

// marshalTags renders tags as a JSONB value, normalizing nil to [].
func marshalTags(tags []string) []byte {
	if tags == nil {
		tags = []string{}
	}
	raw, _ := json.Marshal(tags)
	return raw
}
