package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dope-context/dope/pkg/events"
	"github.com/dope-context/dope/pkg/models"
	"github.com/dope-context/dope/test/util"
)

func TestPublisherPersistsEvents(t *testing.T) {
	db := util.SetupTestDatabase(t)
	bus := events.NewBus(8)
	defer bus.Close()
	pub := events.NewPublisher(bus, db, 0)

	ctx := context.Background()
	event := models.Event{
		EventType:     models.EventTypeToolInvoked,
		EventID:       uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		SourceSystem:  models.SourceBroker,
		TargetSystems: []string{"*"},
		Priority:      models.EventPriorityLow,
		Data:          map[string]any{"tool": "search.code", "backend": "zoekt"},
	}
	require.NoError(t, pub.Publish(ctx, event))

	var count int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE event_type = $1 AND source_system = $2`,
		models.EventTypeToolInvoked, models.SourceBroker,
	).Scan(&count))
	assert.Equal(t, 1, count)

	degraded, lost := pub.Degraded()
	assert.False(t, degraded)
	assert.Zero(t, lost)
}

func TestPublisherPersistIsIdempotentPerEventID(t *testing.T) {
	db := util.SetupTestDatabase(t)
	bus := events.NewBus(8)
	defer bus.Close()
	pub := events.NewPublisher(bus, db, 0)

	ctx := context.Background()
	event := models.Event{
		EventID:       "11111111-1111-1111-1111-111111111111",
		EventType:     models.EventTypeBreakStarted,
		Timestamp:     time.Now().UTC(),
		SourceSystem:  models.SourceSessionStore,
		TargetSystems: []string{"*"},
		Priority:      models.EventPriorityMedium,
	}
	require.NoError(t, pub.Publish(ctx, event))
	require.NoError(t, pub.Publish(ctx, event), "re-publishing the same event id is a durable no-op")

	var count int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE event_id = $1`, event.EventID,
	).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestPublisherDegradesOnStorageOutage(t *testing.T) {
	bus := events.NewBus(8)
	defer bus.Close()

	// A publisher pointed at a closed pool behaves as if storage is down.
	broken := util.SetupTestDatabase(t)
	require.NoError(t, broken.Close())
	pub := events.NewPublisher(bus, broken, 0)

	ctx := context.Background()
	require.NoError(t, pub.Publish(ctx, models.Event{
		EventType:     models.EventTypeSessionStarted,
		EventID:       uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		SourceSystem:  models.SourceSessionStore,
		TargetSystems: []string{"*"},
		Priority:      models.EventPriorityMedium,
	}), "local delivery survives the outage")

	degraded, _ := pub.Degraded()
	assert.True(t, degraded)
}
