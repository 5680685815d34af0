package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dope-context/dope/pkg/models"
)

// NotifyChannel is the Postgres NOTIFY channel carrying event payloads
// between processes.
const NotifyChannel = "dope_events"

// notifyEnvelope is the NOTIFY payload: the event plus the publishing
// instance's id so a process can skip its own echoes.
type notifyEnvelope struct {
	Origin string       `json:"origin"`
	Event  models.Event `json:"event"`
}

// Publisher persists events and delivers them on the local bus. When the
// database is unreachable the publisher enters degraded mode: local
// delivery continues, undurable events accumulate in a bounded replay
// buffer, and a degraded_mode event announces the condition. Drain flushes
// the buffer once storage recovers.
type Publisher struct {
	bus    *Bus
	db     *sql.DB
	origin string

	mu        sync.Mutex
	replay    []models.Event
	replayCap int
	degraded  bool
	lost      int64

	logger *slog.Logger
}

// NewPublisher creates a persisting publisher over the bus. replayCap ≤ 0
// selects the default (1000).
func NewPublisher(bus *Bus, db *sql.DB, replayCap int) *Publisher {
	if replayCap <= 0 {
		replayCap = 1000
	}
	return &Publisher{
		bus:       bus,
		db:        db,
		origin:    uuid.NewString(),
		replayCap: replayCap,
		logger:    slog.Default(),
	}
}

// Origin returns this publisher's instance id, used by the listener to
// suppress echoes of its own notifications.
func (p *Publisher) Origin() string { return p.origin }

// Publish persists the event and NOTIFYs in one transaction, then delivers
// it on the local bus. Local delivery happens even when persistence fails:
// in-process consumers keep working through a database outage.
func (p *Publisher) Publish(ctx context.Context, event models.Event) error {
	if err := validate(&event); err != nil {
		return err
	}

	if err := p.persist(ctx, event); err != nil {
		p.recordUndurable(ctx, event, err)
	} else {
		p.markRecovered(ctx)
	}

	return p.bus.Publish(ctx, event)
}

func (p *Publisher) persist(ctx context.Context, event models.Event) error {
	if p.db == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	envelope, err := json.Marshal(notifyEnvelope{Origin: p.origin, Event: event})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (event_id, event_type, source_system, priority, channel, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (event_id) DO NOTHING`,
		event.EventID, event.EventType, event.SourceSystem,
		string(event.Priority), event.StreamKey(), payload,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, string(envelope)); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return tx.Commit()
}

// recordUndurable buffers an event that could not be persisted and, on the
// first failure of a streak, announces degraded mode. Under overflow the
// oldest lowest-priority buffered event is evicted; an arrival that every
// buffered event strictly outranks is the loss instead.
func (p *Publisher) recordUndurable(ctx context.Context, event models.Event, cause error) {
	p.mu.Lock()
	entering := !p.degraded
	p.degraded = true
	admitted := true
	if len(p.replay) >= p.replayCap {
		victim := p.lowestReplayIndexLocked()
		if victim < 0 || p.replay[victim].Priority.DropRank() > event.Priority.DropRank() {
			admitted = false
		} else {
			p.replay = append(p.replay[:victim], p.replay[victim+1:]...)
		}
		p.lost++
	}
	if admitted {
		p.replay = append(p.replay, event)
	}
	buffered := len(p.replay)
	p.mu.Unlock()

	p.logger.Error("Event persistence failed, buffering for replay",
		"event_type", event.EventType, "buffered", buffered, "error", cause)

	if entering {
		// Announce on the local bus only; storage is the thing that's down.
		_ = p.bus.Publish(ctx, models.Event{
			EventType:     models.EventTypeDegradedMode,
			EventID:       uuid.NewString(),
			Timestamp:     time.Now().UTC(),
			SourceSystem:  models.SourceBroker,
			TargetSystems: []string{"*"},
			Priority:      models.EventPriorityCritical,
			Data:          map[string]any{"reason": "event store unreachable"},
		})
	}
}

// lowestReplayIndexLocked returns the index of the oldest event holding the
// lowest priority in the replay buffer, or -1 when empty. Caller holds p.mu.
func (p *Publisher) lowestReplayIndexLocked() int {
	idx := -1
	for i, e := range p.replay {
		if idx < 0 || e.Priority.DropRank() < p.replay[idx].Priority.DropRank() {
			idx = i
		}
	}
	return idx
}

// markRecovered drains the replay buffer after a successful persist.
func (p *Publisher) markRecovered(ctx context.Context) {
	p.mu.Lock()
	if !p.degraded {
		p.mu.Unlock()
		return
	}
	pending := p.replay
	p.replay = nil
	p.degraded = false
	p.mu.Unlock()

	replayed := 0
	for i, event := range pending {
		if err := p.persist(ctx, event); err != nil {
			// Storage flapped; keep the rest buffered and go back to degraded.
			p.mu.Lock()
			p.degraded = true
			p.replay = append(pending[i:], p.replay...)
			p.mu.Unlock()
			p.logger.Warn("Replay interrupted, storage still failing", "replayed", replayed, "error", err)
			return
		}
		replayed++
	}
	if replayed > 0 {
		p.logger.Info("Replayed buffered events after storage recovery", "count", replayed)
	}
}

// Degraded reports whether the publisher is currently in degraded mode,
// plus how many events were lost to replay-buffer overflow.
func (p *Publisher) Degraded() (bool, int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.degraded, p.lost
}
