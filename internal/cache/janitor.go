package cache

import (
	"context"
	"log/slog"
	"time"
)

// Janitor periodically garbage collects a cache.
type Janitor struct {
	cache    *Cache
	logger   *slog.Logger
	interval time.Duration
}

// NewJanitor creates a janitor that sweeps c every interval.
func NewJanitor(c *Cache, interval time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{cache: c, logger: logger, interval: interval}
}

// Start runs the sweep loop until the context is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("cache janitor started", "interval", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("cache janitor stopping")
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep runs one collection pass using the cache's clock.
func (j *Janitor) Sweep() int {
	n := j.cache.GarbageCollect(j.cache.clock.Now())
	if n > 0 {
		j.logger.Debug("evicted cache entries", "count", n, "remaining", j.cache.Len())
	}
	return n
}
