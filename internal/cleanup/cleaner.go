package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Purger removes expired state and reports how much was removed
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Cleaner handles periodic purging of expired framework uploads
type Cleaner struct {
	purger   Purger
	interval time.Duration
}

// NewCleaner creates a new cleanup worker
func NewCleaner(purger Purger, interval time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Cleaner{
		purger:   purger,
		interval: interval,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

// run is the main loop for the cleanup worker
func (c *Cleaner) run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

// cleanup runs one purge cycle
func (c *Cleaner) cleanup(ctx context.Context) {
	slog.Debug("running cleanup cycle")

	purged, err := c.purger.PurgeExpired(ctx)
	if err != nil {
		slog.Error("failed to purge expired uploads", "error", err)
		return
	}

	if purged == 0 {
		slog.Debug("no expired uploads found")
		return
	}

	slog.Info("expired uploads purged", "count", purged)
}
