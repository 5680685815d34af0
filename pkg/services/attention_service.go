package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dope-context/dope/pkg/models"
)

// AttentionSampleService persists attention samples so streaks, trends,
// and break compliance survive restarts. Samples are user-scoped, not
// workspace-scoped.
type AttentionSampleService struct {
	db *sql.DB
}

// RecordSample stores one sample and returns its id.
func (s *AttentionSampleService) RecordSample(ctx context.Context, sample models.AttentionSample) (int64, error) {
	if sample.UserID == "" {
		return 0, NewValidationError("user_id", "must not be empty")
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO attention_samples
		   (user_id, created_at, typing_cadence, session_duration, task_switch_rate,
		    explicit_state, attention_state, energy_level)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING sample_id`,
		sample.UserID, sample.Timestamp, sample.TypingCadence, sample.SessionDuration,
		sample.TaskSwitchRate, sample.ExplicitState,
		string(sample.AttentionState), string(sample.EnergyLevel),
	).Scan(&id)
	if err != nil {
		return 0, storageErr("record attention sample", err)
	}
	return id, nil
}

// RecentSamples returns a user's most recent samples, newest first.
func (s *AttentionSampleService) RecentSamples(ctx context.Context, userID string, limit int) ([]models.AttentionSample, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT sample_id, user_id, created_at, typing_cadence, session_duration,
		        task_switch_rate, explicit_state, attention_state, energy_level
		 FROM attention_samples WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, storageErr("recent attention samples", err)
	}
	defer func() { _ = rows.Close() }()

	var samples []models.AttentionSample
	for rows.Next() {
		var sm models.AttentionSample
		var att, energy string
		if err := rows.Scan(&sm.ID, &sm.UserID, &sm.Timestamp, &sm.TypingCadence,
			&sm.SessionDuration, &sm.TaskSwitchRate, &sm.ExplicitState, &att, &energy); err != nil {
			return nil, storageErr("scan attention sample", err)
		}
		sm.AttentionState = models.AttentionState(att)
		sm.EnergyLevel = models.EnergyLevel(energy)
		samples = append(samples, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("recent attention samples", err)
	}
	return samples, nil
}
