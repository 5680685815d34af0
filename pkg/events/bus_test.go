package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dope-context/dope/pkg/models"
)

// collector gathers delivered events for assertions.
type collector struct {
	mu     sync.Mutex
	events []models.Event
}

func (c *collector) handler(event models.Event) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
}

func (c *collector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.EventType
	}
	return out
}

func (c *collector) waitFor(t *testing.T, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		c.mu.Lock()
		got := len(c.events)
		c.mu.Unlock()
		if got >= n {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, have %d", n, got)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func event(eventType, source string, priority models.EventPriority) models.Event {
	return models.Event{
		EventType:     eventType,
		EventID:       uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		SourceSystem:  source,
		TargetSystems: []string{"*"},
		Priority:      priority,
	}
}

func TestPublishValidation(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	tests := []struct {
		name   string
		mutate func(e *models.Event)
	}{
		{"missing event type", func(e *models.Event) { e.EventType = "" }},
		{"missing event id", func(e *models.Event) { e.EventID = "" }},
		{"missing timestamp", func(e *models.Event) { e.Timestamp = time.Time{} }},
		{"missing source", func(e *models.Event) { e.SourceSystem = "" }},
		{"missing target systems", func(e *models.Event) { e.TargetSystems = nil }},
		{"bad priority", func(e *models.Event) { e.Priority = "urgent-ish" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := event(models.EventTypeToolInvoked, models.SourceBroker, models.EventPriorityLow)
			tt.mutate(&e)
			assert.Error(t, bus.Publish(context.Background(), e))
		})
	}
}

func TestAuthorityMatrix(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	tests := []struct {
		name    string
		event   models.Event
		allowed bool
	}{
		{"task-planning may create tasks", event(models.EventTypeTaskCreated, models.SourceTaskPlanning, models.EventPriorityMedium), true},
		{"broker may not create tasks", event(models.EventTypeTaskCreated, models.SourceBroker, models.EventPriorityMedium), false},
		{"project-management owns status changes", event(models.EventTypeStatusChanged, models.SourceProjectManagement, models.EventPriorityMedium), true},
		{"session store may not change status", event(models.EventTypeStatusChanged, models.SourceSessionStore, models.EventPriorityMedium), false},
		{"code-navigation owns code changes", event(models.EventTypeCodeChanged, models.SourceCodeNavigation, models.EventPriorityMedium), true},
		{"session store owns decisions", event(models.EventTypeDecisionLogged, models.SourceSessionStore, models.EventPriorityMedium), true},
		{"unlisted types are open to all", event(models.EventTypeBreakStarted, models.SourceBroker, models.EventPriorityMedium), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bus.Publish(context.Background(), tt.event)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSubscribePatternFiltering(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	breaks := &collector{}
	everything := &collector{}
	_, err := bus.Subscribe("breaks", "break_*", breaks.handler)
	require.NoError(t, err)
	_, err = bus.Subscribe("all", "**", everything.handler)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, event(models.EventTypeBreakStarted, models.SourceSessionStore, models.EventPriorityMedium)))
	require.NoError(t, bus.Publish(ctx, event(models.EventTypeToolInvoked, models.SourceBroker, models.EventPriorityLow)))
	require.NoError(t, bus.Publish(ctx, event(models.EventTypeBreakEnded, models.SourceSessionStore, models.EventPriorityMedium)))

	everything.waitFor(t, 3)
	breaks.waitFor(t, 2)
	assert.Equal(t, []string{models.EventTypeBreakStarted, models.EventTypeBreakEnded}, breaks.types())
}

func TestInvalidSubscriptionPattern(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()
	_, err := bus.Subscribe("bad", "[", func(models.Event) {})
	assert.Error(t, err)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	c := &collector{}
	unsub, err := bus.Subscribe("test", "**", c.handler)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), event(models.EventTypeToolInvoked, models.SourceBroker, models.EventPriorityLow)))
	c.waitFor(t, 1)
	unsub()

	require.NoError(t, bus.Publish(context.Background(), event(models.EventTypeToolInvoked, models.SourceBroker, models.EventPriorityLow)))
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, c.types(), 1)
}

func TestSequenceGapBuffering(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	c := &collector{}
	_, err := bus.Subscribe("test", "**", c.handler)
	require.NoError(t, err)

	sequenced := func(seq int64, id string) models.Event {
		e := event(models.EventTypeCodeChanged, models.SourceCodeNavigation, models.EventPriorityMedium)
		e.EventID = id
		e.Routing.ExpectedSequence = seq
		return e
	}

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, sequenced(1, "first")))
	c.waitFor(t, 1)

	// 3 arrives before 2: held back until the gap fills.
	require.NoError(t, bus.Publish(ctx, sequenced(3, "third")))
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, c.types(), 1, "out-of-order event is buffered, not delivered")

	require.NoError(t, bus.Publish(ctx, sequenced(2, "second")))
	c.waitFor(t, 3)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, "second", c.events[1].EventID)
	assert.Equal(t, "third", c.events[2].EventID)
}

func TestSequenceDuplicateDropped(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()

	c := &collector{}
	_, err := bus.Subscribe("test", "**", c.handler)
	require.NoError(t, err)

	e := event(models.EventTypeCodeChanged, models.SourceCodeNavigation, models.EventPriorityMedium)
	e.Routing.ExpectedSequence = 1

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, e))
	require.NoError(t, bus.Publish(ctx, e), "replay is accepted but not redelivered")
	c.waitFor(t, 1)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, c.types(), 1)
}

func TestQueueOverflowDropsLowestPriorityFirst(t *testing.T) {
	bus := NewBus(2)
	defer bus.Close()

	entered := make(chan struct{})
	gate := make(chan struct{})
	c := &collector{}
	_, err := bus.Subscribe("slow", "**", func(e models.Event) {
		entered <- struct{}{}
		<-gate
		c.handler(e)
	})
	require.NoError(t, err)

	ctx := context.Background()
	// Park the worker inside the handler so the queue fills deterministically.
	require.NoError(t, bus.Publish(ctx, event("a", models.SourceBroker, models.EventPriorityLow)))
	<-entered
	require.NoError(t, bus.Publish(ctx, event("b", models.SourceBroker, models.EventPriorityLow)))
	require.NoError(t, bus.Publish(ctx, event("c", models.SourceBroker, models.EventPriorityMedium)))

	// Queue is full; a critical arrival evicts the oldest low event.
	require.NoError(t, bus.Publish(ctx, event("d", models.SourceBroker, models.EventPriorityCritical)))
	// A low arrival against a full queue of higher priorities is itself dropped.
	require.NoError(t, bus.Publish(ctx, event("e", models.SourceBroker, models.EventPriorityLow)))

	go func() {
		for range entered {
		}
	}()
	close(gate)
	c.waitFor(t, 3)
	time.Sleep(20 * time.Millisecond)

	types := c.types()
	assert.Equal(t, []string{"a", "c", "d"}, types, "oldest low event evicted, low arrival dropped")
	assert.Equal(t, int64(2), bus.DroppedTotal())
}
