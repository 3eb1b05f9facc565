package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Cleaner periodically drops idle limiter state.
type Cleaner struct {
	target   Cleanable
	maxAge   time.Duration
	interval time.Duration
	clock    clockwork.Clock
	log      *slog.Logger
}

// NewCleaner constructs a Cleaner instance.
func NewCleaner(target Cleanable, maxAge, interval time.Duration, clock clockwork.Clock, log *slog.Logger) *Cleaner {
	if log == nil {
		log = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Cleaner{
		target:   target,
		maxAge:   maxAge,
		interval: interval,
		clock:    clock,
		log:      log,
	}
}

// Run starts the cleaner loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c.target == nil || c.interval <= 0 {
		return
	}

	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("rate limit cleaner stopped", slog.String("reason", ctx.Err().Error()))
			return
		case <-ticker.Chan():
			c.cleanup(ctx)
		}
	}
}

func (c *Cleaner) cleanup(ctx context.Context) {
	removed, err := c.target.Cleanup(ctx, c.maxAge)
	if err != nil {
		c.log.Error("rate limit cleanup failed", slog.Any("error", err))
		return
	}
	if removed > 0 {
		c.log.Info("rate limit keys cleaned", slog.Int("keys_removed", removed))
	}
}
