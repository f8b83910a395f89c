package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"github.com/terra-clan/maturity-engine/internal/models"
)

// NotifyPublisher publishes events through Postgres NOTIFY so every
// instance listening on the channel receives them
type NotifyPublisher struct {
	pool    *pgxpool.Pool
	channel string
}

// NewNotifyPublisher creates a publisher on the given channel
func NewNotifyPublisher(pool *pgxpool.Pool, channel string) *NotifyPublisher {
	return &NotifyPublisher{pool: pool, channel: channel}
}

// Publish sends evt as the NOTIFY payload
func (p *NotifyPublisher) Publish(ctx context.Context, evt models.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := p.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, p.channel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify: %w", err)
	}
	return nil
}

// Listener bridges Postgres notifications into a Hub
type Listener struct {
	dsn     string
	channel string
	target  Publisher
}

// NewListener creates a listener forwarding notifications on channel to target
func NewListener(dsn, channel string, target Publisher) *Listener {
	return &Listener{dsn: dsn, channel: channel, target: target}
}

// Start subscribes to the channel and forwards notifications until ctx is cancelled
func (l *Listener) Start(ctx context.Context) error {
	listener := pq.NewListener(l.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Warn("event listener connection problem", "event", ev, "error", err)
		}
	})

	if err := listener.Listen(l.channel); err != nil {
		listener.Close()
		return fmt.Errorf("failed to listen on %s: %w", l.channel, err)
	}

	go l.run(ctx, listener)
	return nil
}

func (l *Listener) run(ctx context.Context, listener *pq.Listener) {
	slog.Info("event listener started", "channel", l.channel)

	ticker := time.NewTicker(90 * time.Second)
	defer ticker.Stop()
	defer listener.Close()

	for {
		select {
		case <-ctx.Done():
			slog.Info("event listener stopped")
			return
		case n := <-listener.Notify:
			// nil after a reconnect; notifications sent meanwhile are lost
			if n == nil {
				continue
			}
			var evt models.Event
			if err := json.Unmarshal([]byte(n.Extra), &evt); err != nil {
				slog.Warn("invalid event payload", "error", err)
				continue
			}
			if err := l.target.Publish(ctx, evt); err != nil {
				slog.Error("failed to forward event", "error", err, "type", evt.Type)
			}
		case <-ticker.C:
			if err := listener.Ping(); err != nil {
				slog.Warn("event listener ping failed", "error", err)
			}
		}
	}
}
