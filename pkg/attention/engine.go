// Package attention tracks each user's attention state from behavioral
// samples, enforces the graduated break policy, and scores task suitability.
// It is advisory everywhere except the mandatory break latch, which the
// broker enforces.
package attention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dope-context/dope/pkg/config"
	"github.com/dope-context/dope/pkg/models"
)

// SampleStore persists samples durably. Satisfied by
// *services.AttentionSampleService; nil disables persistence.
type SampleStore interface {
	RecordSample(ctx context.Context, sample models.AttentionSample) (int64, error)
}

// EventSink receives attention lifecycle events.
type EventSink interface {
	Publish(ctx context.Context, event models.Event) error
}

// userState is the engine's per-user view. Guarded by Engine.mu.
type userState struct {
	reading models.AttentionReading
	samples []models.AttentionSample // bounded ring, newest last

	workStart    time.Time // zero when no session is running
	onBreak      bool
	breakStart   time.Time
	lastBreakEnd time.Time

	// breakLatch is set when the mandatory threshold plus grace passes
	// without a break, and cleared only by ending a break.
	breakLatch bool
}

// Engine is the attention engine.
type Engine struct {
	cfg   config.AttentionConfig
	store SampleStore
	sink  EventSink

	mu    sync.Mutex
	users map[string]*userState

	now    func() time.Time
	logger *slog.Logger
}

// NewEngine creates an attention engine.
func NewEngine(cfg config.AttentionConfig, store SampleStore, sink EventSink) *Engine {
	return &Engine{
		cfg:    cfg,
		store:  store,
		sink:   sink,
		users:  make(map[string]*userState),
		now:    time.Now,
		logger: slog.Default(),
	}
}

// Ingest classifies one sample, persists it, updates the user's reading,
// and emits detection events on state transitions.
func (e *Engine) Ingest(ctx context.Context, sample models.AttentionSample) (models.AttentionReading, error) {
	if sample.UserID == "" {
		return models.AttentionReading{}, fmt.Errorf("sample user_id must not be empty")
	}
	now := e.now()
	if sample.Timestamp.IsZero() {
		sample.Timestamp = now
	}
	sample.AttentionState = classify(e.cfg, sample)
	sample.EnergyLevel = deriveEnergy(sample.AttentionState, sample.TypingCadence)

	if e.store != nil {
		if _, err := e.store.RecordSample(ctx, sample); err != nil {
			// The in-memory reading still advances; history just has a hole.
			e.logger.Warn("Failed to persist attention sample", "user_id", sample.UserID, "error", err)
		}
	}

	e.mu.Lock()
	u := e.userLocked(sample.UserID)
	previous := u.reading.AttentionState
	if u.reading.AttentionState != sample.AttentionState {
		u.reading.Since = now
	}
	u.reading.AttentionState = sample.AttentionState
	u.reading.EnergyLevel = sample.EnergyLevel
	u.samples = append(u.samples, sample)
	if max := e.cfg.SampleCacheSize; max > 0 && len(u.samples) > max {
		u.samples = u.samples[len(u.samples)-max:]
	}
	reading := u.reading
	e.mu.Unlock()

	e.emitTransition(sample.UserID, previous, sample.AttentionState)
	return reading, nil
}

// Reading returns the current classification for a user. An unseen user
// reads as focused at medium energy.
func (e *Engine) Reading(userID string) models.AttentionReading {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userLocked(userID).reading
}

// BreakActive reports whether a mandatory break is in force. The latch arms
// here as well as in CheckBreak, so enforcement holds even when nothing
// polls the break policy between invocations.
func (e *Engine) BreakActive(userID string) bool {
	e.mu.Lock()
	u, ok := e.users[userID]
	if !ok {
		e.mu.Unlock()
		return false
	}
	worked := e.workedMinutesLocked(u)
	arming := !u.breakLatch && worked >= e.cfg.BreakMandatoryMinutes+e.cfg.BreakGraceMinutes
	if arming {
		u.breakLatch = true
	}
	active := u.breakLatch
	e.mu.Unlock()

	if arming {
		e.emit(models.EventTypeBreakRequired, models.EventPriorityCritical, map[string]any{
			"user_id":        userID,
			"worked_minutes": worked,
		})
	}
	return active
}

// StartWork marks the beginning of a work session.
func (e *Engine) StartWork(userID string) {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	u := e.userLocked(userID)
	u.workStart = now
	u.onBreak = false
	u.breakLatch = false
	u.lastBreakEnd = time.Time{}
}

// StartBreak marks the beginning of a break.
func (e *Engine) StartBreak(userID string) {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	u := e.userLocked(userID)
	u.onBreak = true
	u.breakStart = now
}

// EndBreak marks the end of a break. This is the only path that clears the
// mandatory latch: the continuous-work clock restarts from here.
func (e *Engine) EndBreak(userID string) {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	u := e.userLocked(userID)
	u.onBreak = false
	u.breakLatch = false
	u.lastBreakEnd = now
}

// EndWork closes the work session.
func (e *Engine) EndWork(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	u := e.userLocked(userID)
	u.workStart = time.Time{}
	u.onBreak = false
	u.breakLatch = false
}

// WorkedMinutes returns continuous work time since the session start or the
// last break, whichever is later. Zero when no session is running or a
// break is in progress.
func (e *Engine) WorkedMinutes(userID string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.workedMinutesLocked(e.userLocked(userID))
}

func (e *Engine) workedMinutesLocked(u *userState) float64 {
	if u.workStart.IsZero() || u.onBreak {
		return 0
	}
	since := u.workStart
	if u.lastBreakEnd.After(since) {
		since = u.lastBreakEnd
	}
	return e.now().Sub(since).Minutes()
}

// CheckBreak evaluates the graduated break policy for a user and returns
// the recommendation. Crossing the mandatory threshold plus grace sets the
// latch and emits break_required; lower tiers emit break_recommended once
// per escalation would be noisy, so emission is left to the caller's timer.
func (e *Engine) CheckBreak(userID string) models.BreakRecommendation {
	e.mu.Lock()
	u := e.userLocked(userID)
	worked := e.workedMinutesLocked(u)

	rec := models.BreakRecommendation{WorkedMinutes: worked, Urgency: models.BreakNone}
	switch {
	case worked >= e.cfg.BreakMandatoryMinutes+e.cfg.BreakGraceMinutes:
		rec.Urgency = models.BreakMandatory
		rec.SuggestedLength = 15
		rec.Message = "Mandatory break: tool calls pause until you take one."
	case worked >= e.cfg.BreakMandatoryMinutes:
		rec.Urgency = models.BreakWarning
		rec.SuggestedLength = 15
		rec.Message = fmt.Sprintf("You've been at it %.0f minutes. Break within the next %.0f or tools pause.", worked, e.cfg.BreakGraceMinutes)
	case worked >= e.cfg.BreakWarningMinutes:
		rec.Urgency = models.BreakWarning
		rec.SuggestedLength = 10
		rec.Message = fmt.Sprintf("%.0f minutes of continuous work. A real break would help.", worked)
	case worked >= e.cfg.BreakRecommendedMinutes:
		rec.Urgency = models.BreakSuggested
		rec.SuggestedLength = 5
		rec.Message = "Nice stretch of work. A short break keeps it going."
	}

	latchSet := rec.Urgency == models.BreakMandatory && !u.breakLatch
	if latchSet {
		u.breakLatch = true
	}
	e.mu.Unlock()

	if latchSet {
		e.emit(models.EventTypeBreakRequired, models.EventPriorityCritical, map[string]any{
			"user_id":        userID,
			"worked_minutes": worked,
		})
	}
	return rec
}

// emitTransition publishes detection events when the classification crosses
// into a state worth acting on.
func (e *Engine) emitTransition(userID string, from, to models.AttentionState) {
	if from == to {
		return
	}
	switch to {
	case models.AttentionHyperfocused:
		e.emit(models.EventTypeHyperfocusDetected, models.EventPriorityHigh, map[string]any{"user_id": userID})
	case models.AttentionOverwhelmed:
		e.emit(models.EventTypeOverwhelmDetected, models.EventPriorityHigh, map[string]any{"user_id": userID})
	}
}

func (e *Engine) emit(eventType string, priority models.EventPriority, data map[string]any) {
	if e.sink == nil {
		return
	}
	event := models.Event{
		EventType:     eventType,
		EventID:       uuid.NewString(),
		Timestamp:     e.now().UTC(),
		SourceSystem:  models.SourceAttentionEngine,
		TargetSystems: []string{"*"},
		Priority:      priority,
		Data:          data,
	}
	if err := e.sink.Publish(context.Background(), event); err != nil {
		e.logger.Warn("Failed to publish attention event", "event_type", eventType, "error", err)
	}
}

// userLocked returns the state for a user, creating a neutral default.
// Caller holds e.mu.
func (e *Engine) userLocked(userID string) *userState {
	if u, ok := e.users[userID]; ok {
		return u
	}
	u := &userState{
		reading: models.AttentionReading{
			UserID:         userID,
			AttentionState: models.AttentionFocused,
			EnergyLevel:    models.EnergyMedium,
			Since:          e.now(),
		},
	}
	e.users[userID] = u
	return u
}
