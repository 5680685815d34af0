// Package events is the in-process event bus plus its Postgres-backed
// durability layer. Delivery is FIFO within a (source_system, event_type)
// stream; there is no global order. Backpressure drops low-priority events
// first and counts every drop.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/dope-context/dope/pkg/models"
)

// authorityMatrix restricts who may publish authoritative event types.
// Unlisted types may be published by any source.
var authorityMatrix = map[string]string{
	models.EventTypeTaskCreated:    models.SourceTaskPlanning,
	models.EventTypeStatusChanged:  models.SourceProjectManagement,
	models.EventTypeCodeChanged:    models.SourceCodeNavigation,
	models.EventTypeDecisionLogged: models.SourceSessionStore,
}

// maxPendingPerStream bounds how many out-of-order events a stream may hold
// while waiting for a sequence gap to fill before the gap is abandoned.
const maxPendingPerStream = 32

// Handler consumes delivered events. Handlers run on the subscriber's own
// goroutine and may block without affecting other subscribers.
type Handler func(event models.Event)

// Bus is the in-memory event bus.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
	streams     map[string]*streamState
	closed      bool

	queueSize int
	logger    *slog.Logger
}

// streamState tracks sequencing within one (source_system, event_type) stream.
type streamState struct {
	nextSeq int64
	pending map[int64]models.Event
}

// NewBus creates a bus. queueSize ≤ 0 selects the default (64).
func NewBus(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Bus{
		subscribers: make(map[string]*subscriber),
		streams:     make(map[string]*streamState),
		queueSize:   queueSize,
		logger:      slog.Default(),
	}
}

// Subscribe registers a handler for event types matching the glob pattern
// (doublestar syntax, matched against the event type, e.g. "break_*" or
// "**"). Returns an unsubscribe function.
func (b *Bus) Subscribe(name, pattern string, handler Handler) (func(), error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid subscription pattern %q", pattern)
	}
	sub := newSubscriber(name, pattern, handler, b.queueSize, b.logger)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("bus is closed")
	}
	id := uuid.NewString()
	b.subscribers[id] = sub
	b.mu.Unlock()

	go sub.run()
	return func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
		sub.stop()
	}, nil
}

// Publish validates, authority-checks, sequence-gates, and fans out one
// event. A sequenced event arriving early is buffered and delivered when
// the gap fills; this still returns nil, publication succeeded.
func (b *Bus) Publish(_ context.Context, event models.Event) error {
	if err := validate(&event); err != nil {
		return err
	}
	if required, ok := authorityMatrix[event.EventType]; ok && event.SourceSystem != required {
		return fmt.Errorf("source %q may not publish %q (authority: %q)",
			event.SourceSystem, event.EventType, required)
	}

	for _, ready := range b.sequenceGate(event) {
		b.fanout(ready)
	}
	return nil
}

// sequenceGate enforces per-stream FIFO for sequenced events. Unsequenced
// events pass straight through. Returns the events now ready to deliver,
// in order.
func (b *Bus) sequenceGate(event models.Event) []models.Event {
	seq := event.Routing.ExpectedSequence
	if seq == 0 {
		return []models.Event{event}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := event.StreamKey()
	st, ok := b.streams[key]
	if !ok {
		st = &streamState{nextSeq: seq, pending: make(map[int64]models.Event)}
		b.streams[key] = st
	}

	switch {
	case seq < st.nextSeq:
		// Duplicate or replay of something already delivered.
		b.logger.Debug("Dropping stale sequenced event", "stream", key, "seq", seq, "expected", st.nextSeq)
		return nil
	case seq > st.nextSeq:
		st.pending[seq] = event
		if len(st.pending) > maxPendingPerStream {
			// The gap is not filling; abandon it and deliver what we have
			// in order rather than holding the stream forever.
			b.logger.Warn("Sequence gap abandoned", "stream", key, "expected", st.nextSeq)
			return st.flushLocked()
		}
		return nil
	default:
		st.nextSeq++
		ready := []models.Event{event}
		for {
			next, ok := st.pending[st.nextSeq]
			if !ok {
				break
			}
			delete(st.pending, st.nextSeq)
			st.nextSeq++
			ready = append(ready, next)
		}
		return ready
	}
}

// flushLocked drains all pending events in sequence order and advances the
// cursor past them. Caller holds b.mu.
func (st *streamState) flushLocked() []models.Event {
	var ready []models.Event
	for len(st.pending) > 0 {
		lowest := int64(0)
		for seq := range st.pending {
			if lowest == 0 || seq < lowest {
				lowest = seq
			}
		}
		ready = append(ready, st.pending[lowest])
		delete(st.pending, lowest)
		st.nextSeq = lowest + 1
	}
	return ready
}

func (b *Bus) fanout(event models.Event) {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		if matched, _ := doublestar.Match(sub.pattern, event.EventType); matched {
			sub.enqueue(event)
		}
	}
}

// DroppedTotal sums drop counters across all current subscribers.
func (b *Bus) DroppedTotal() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var total int64
	for _, sub := range b.subscribers {
		total += sub.dropped()
	}
	return total
}

// Close stops all subscriber workers. Publish after Close still validates
// but delivers to nobody.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subscribers
	b.subscribers = make(map[string]*subscriber)
	b.closed = true
	b.mu.Unlock()
	for _, sub := range subs {
		sub.stop()
	}
}

// validate checks the required fields. An event missing any of them is
// rejected, not repaired.
func validate(event *models.Event) error {
	if event.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if event.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if event.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if event.SourceSystem == "" {
		return fmt.Errorf("source_system is required")
	}
	if len(event.TargetSystems) == 0 {
		return fmt.Errorf("target_systems is required")
	}
	if !event.Priority.IsValid() {
		return fmt.Errorf("priority %q is not valid", event.Priority)
	}
	return nil
}
