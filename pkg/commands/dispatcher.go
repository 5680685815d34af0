// Package commands is the human-facing command surface: a thin dispatcher
// mapping each named command to a fixed sequence of store, attention, and
// broker operations. Commands hold no state of their own; everything
// durable lives behind the services they call.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dope-context/dope/pkg/attention"
	"github.com/dope-context/dope/pkg/broker"
	"github.com/dope-context/dope/pkg/config"
	"github.com/dope-context/dope/pkg/models"
	"github.com/dope-context/dope/pkg/registry"
	"github.com/dope-context/dope/pkg/services"
	"github.com/dope-context/dope/pkg/syncindex"
)

// Request carries one command invocation.
type Request struct {
	WorkspaceID string         `json:"workspace_id"`
	UserID      string         `json:"user_id"`
	Params      map[string]any `json:"params,omitempty"`
}

// EventSink receives command lifecycle events.
type EventSink interface {
	Publish(ctx context.Context, event models.Event) error
}

// Dispatcher routes named commands.
type Dispatcher struct {
	store    *services.Store
	engine   *attention.Engine
	broker   *broker.Broker
	registry *registry.Registry
	sink     EventSink
	cfg      *config.Config

	// snapshots may be nil; session commands then skip change detection.
	snapshots *syncindex.Coordinator

	mu     sync.Mutex
	timers map[string]*implementTimer // user id → running session timer

	now    func() time.Time
	logger *slog.Logger
}

// NewDispatcher wires the command surface.
func NewDispatcher(cfg *config.Config, store *services.Store, engine *attention.Engine, brk *broker.Broker, reg *registry.Registry, sink EventSink, snapshots *syncindex.Coordinator) *Dispatcher {
	return &Dispatcher{
		store:     store,
		engine:    engine,
		broker:    brk,
		registry:  reg,
		sink:      sink,
		cfg:       cfg,
		snapshots: snapshots,
		timers:    make(map[string]*implementTimer),
		now:       time.Now,
		logger:    slog.Default(),
	}
}

// Run executes one named command. The command set is closed; unknown names
// are a validation error.
func (d *Dispatcher) Run(ctx context.Context, name string, req Request) (any, error) {
	if req.WorkspaceID == "" {
		return nil, services.NewValidationError("workspace_id", "must not be empty")
	}
	if req.UserID == "" {
		return nil, services.NewValidationError("user_id", "must not be empty")
	}

	switch name {
	case "session.start":
		return d.sessionStart(ctx, req)
	case "session.save":
		return d.sessionSave(ctx, req)
	case "session.load":
		return d.sessionLoad(ctx, req)
	case "session.break":
		return d.sessionBreak(ctx, req)
	case "session.resume":
		return d.sessionResume(ctx, req)
	case "session.end":
		return d.sessionEnd(ctx, req)
	case "task.assess":
		return d.taskAssess(ctx, req)
	case "task.implement":
		return d.taskImplement(ctx, req)
	case "stats":
		return d.stats(ctx, req)
	default:
		return nil, services.NewValidationError("command", fmt.Sprintf("unknown command %q", name))
	}
}

// Close stops any running implement-session timers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	timers := d.timers
	d.timers = make(map[string]*implementTimer)
	d.mu.Unlock()
	for _, t := range timers {
		t.stop()
	}
}

func (d *Dispatcher) emit(eventType string, priority models.EventPriority, data map[string]any) {
	if d.sink == nil {
		return
	}
	event := models.Event{
		EventType:     eventType,
		EventID:       uuid.NewString(),
		Timestamp:     d.now().UTC(),
		SourceSystem:  models.SourceSessionStore,
		TargetSystems: []string{"*"},
		Priority:      priority,
		Data:          data,
	}
	if err := d.sink.Publish(context.Background(), event); err != nil {
		d.logger.Warn("Failed to publish command event", "event_type", eventType, "error", err)
	}
}
