package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type bucket struct {
	requests []time.Time
}

// MemoryLimiter is a sliding-window Limiter kept in process memory.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	clock   clockwork.Clock
	log     *slog.Logger
}

var (
	_ Limiter   = (*MemoryLimiter)(nil)
	_ Cleanable = (*MemoryLimiter)(nil)
)

// NewMemoryLimiter returns an in-memory limiter implementation.
func NewMemoryLimiter(clock clockwork.Clock, log *slog.Logger) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		clock:   clock,
		log:     log,
	}
}

// Check enforces a sliding-window limit for the provided key. Rejected requests are not counted.
func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := m.clock.Now()
	windowStart := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	bkt, ok := m.buckets[key]
	if !ok {
		bkt = &bucket{requests: make([]time.Time, 0, 8)}
		m.buckets[key] = bkt
	}

	bkt.requests = keepRecent(bkt.requests, windowStart)
	count := len(bkt.requests)

	allowed := count < limit
	if allowed {
		bkt.requests = append(bkt.requests, now)
		count++
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	resetAt := now.Add(window)
	if len(bkt.requests) > 0 {
		resetAt = bkt.requests[0].Add(window)
	}

	return &Result{Allowed: allowed, Remaining: remaining, ResetAt: resetAt}, nil
}

// Cleanup removes buckets whose newest request is older than maxAge.
func (m *MemoryLimiter) Cleanup(_ context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}

	cutoff := m.clock.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, bkt := range m.buckets {
		if len(bkt.requests) == 0 || bkt.requests[len(bkt.requests)-1].Before(cutoff) {
			delete(m.buckets, key)
			removed++
		}
	}
	return removed, nil
}

// Len is the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

func keepRecent(reqs []time.Time, windowStart time.Time) []time.Time {
	firstIdx := 0
	for firstIdx < len(reqs) && !reqs[firstIdx].After(windowStart) {
		firstIdx++
	}

	if firstIdx == 0 {
		return reqs
	}

	if firstIdx >= len(reqs) {
		return reqs[:0]
	}

	copy(reqs, reqs[firstIdx:])
	return reqs[:len(reqs)-firstIdx]
}
