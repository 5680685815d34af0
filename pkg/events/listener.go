package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dope-context/dope/pkg/database"
)

// listenRetryDelay is the pause before re-establishing a dropped LISTEN
// connection.
const listenRetryDelay = 5 * time.Second

// Listener holds a dedicated Postgres connection on LISTEN and re-injects
// notifications from other processes into the local bus. Events originated
// by this process are skipped: they were already delivered locally.
type Listener struct {
	bus    *Bus
	dbCfg  database.Config
	origin string

	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger
}

// NewListener creates a listener. origin is the local publisher's instance
// id (Publisher.Origin).
func NewListener(bus *Bus, dbCfg database.Config, origin string) *Listener {
	return &Listener{
		bus:    bus,
		dbCfg:  dbCfg,
		origin: origin,
		logger: slog.Default(),
	}
}

// Start launches the LISTEN loop. Connection failures retry with a fixed
// delay; the loop ends only on context cancellation or Stop.
func (l *Listener) Start(ctx context.Context) {
	if l.cancel != nil {
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go l.loop(ctx)
}

// Stop terminates the LISTEN loop and waits for it to exit.
func (l *Listener) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	l.cancel = nil
	l.done = nil
}

func (l *Listener) loop(ctx context.Context) {
	defer close(l.done)
	for {
		if err := l.listen(ctx); err != nil && ctx.Err() == nil {
			l.logger.Warn("Event listener connection lost, reconnecting", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(listenRetryDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dbCfg.DSN())
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(context.Background()) }()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return err
	}
	l.logger.Info("Event listener attached", "channel", NotifyChannel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.dispatch(ctx, notification.Payload)
	}
}

func (l *Listener) dispatch(ctx context.Context, payload string) {
	var envelope notifyEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		l.logger.Warn("Discarding malformed event notification", "error", err)
		return
	}
	if envelope.Origin == l.origin {
		return // our own publication, already delivered locally
	}
	if err := l.bus.Publish(ctx, envelope.Event); err != nil {
		l.logger.Warn("Failed to deliver relayed event",
			"event_type", envelope.Event.EventType, "error", err)
	}
}
