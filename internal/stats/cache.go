// Package stats computes monthly work statistics and memoizes them per user.
package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Proton-105/worklog-bot/internal/domain"
	"github.com/Proton-105/worklog-bot/pkg/metrics"
)

const (
	DefaultTTL           = 30 * time.Minute
	DefaultSweepInterval = 10 * time.Minute
)

// ComputeFunc builds a fresh snapshot for userID.
type ComputeFunc func(ctx context.Context, userID string) (*domain.StatsSnapshot, error)

type cacheEntry struct {
	snapshot *domain.StatsSnapshot
	storedAt time.Time
}

// Cache is a TTL cache of StatsSnapshot keyed by user id. Expired entries are swept
// inline from Get, at most once per sweep interval. Writers of entries must call
// Invalidate; the cache cannot detect staleness on its own.
//
// A snapshot whose compute overlapped an Invalidate for the same user is returned to
// its caller but never stored.
type Cache struct {
	mu            sync.Mutex
	entries       map[string]cacheEntry
	generations   map[string]uint64
	epoch         uint64
	ttl           time.Duration
	sweepInterval time.Duration
	lastSweep     time.Time
	clock         clockwork.Clock
	log           *slog.Logger
}

func NewCache(ttl, sweepInterval time.Duration, clock clockwork.Clock, log *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}

	return &Cache{
		entries:       make(map[string]cacheEntry),
		generations:   make(map[string]uint64),
		ttl:           ttl,
		sweepInterval: sweepInterval,
		lastSweep:     clock.Now(),
		clock:         clock,
		log:           log,
	}
}

// Get returns the cached snapshot while it is younger than the TTL, otherwise it calls
// compute and caches the result. Compute errors are returned and not cached.
func (c *Cache) Get(ctx context.Context, userID string, compute ComputeFunc) (*domain.StatsSnapshot, error) {
	now := c.clock.Now()

	c.mu.Lock()
	c.sweepLocked(now)
	if e, ok := c.entries[userID]; ok && now.Sub(e.storedAt) < c.ttl {
		c.mu.Unlock()
		metrics.RecordStatsCacheHit()
		return e.snapshot, nil
	}
	generation, epoch := c.generations[userID], c.epoch
	c.mu.Unlock()

	metrics.RecordStatsCacheMiss()

	snapshot, err := compute(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.generations[userID] == generation && c.epoch == epoch {
		c.entries[userID] = cacheEntry{snapshot: snapshot, storedAt: c.clock.Now()}
	} else {
		c.log.Debug("stats snapshot invalidated during compute", slog.String("user_id", userID))
	}
	c.mu.Unlock()

	return snapshot, nil
}

// Invalidate drops the snapshot for userID.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.generations[userID]++
	c.mu.Unlock()
}

// InvalidateAll drops every snapshot.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.epoch++
	c.mu.Unlock()
}

// Len reports the number of cached snapshots, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) sweepLocked(now time.Time) {
	if now.Sub(c.lastSweep) < c.sweepInterval {
		return
	}
	c.lastSweep = now

	removed := 0
	for userID, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, userID)
			removed++
		}
	}

	if removed > 0 {
		c.log.Debug("stats cache swept", slog.Int("removed", removed), slog.Int("remaining", len(c.entries)))
	}
}
