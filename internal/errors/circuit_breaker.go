package errors

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// BreakerConfig tunes when a CircuitBreaker opens and how it recovers.
type BreakerConfig struct {
	ErrorThreshold      float64
	MinRequests         int
	OpenTimeout         time.Duration
	HalfOpenMaxRequests int
}

// DefaultBreakerConfig opens after half of at least ten calls failed and probes again after 30s.
var DefaultBreakerConfig = BreakerConfig{
	ErrorThreshold:      0.5,
	MinRequests:         10,
	OpenTimeout:         30 * time.Second,
	HalfOpenMaxRequests: 3,
}

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var (
	ErrCircuitOpen             = errors.New("circuit breaker is open")
	errHalfOpenTooManyRequests = errors.New("too many requests in half-open")
)

type CircuitBreaker struct {
	mu              sync.Mutex
	cfg             BreakerConfig
	clock           clockwork.Clock
	state           BreakerState
	failures        int
	successes       int
	requests        int
	lastFailureTime time.Time
}

func NewCircuitBreaker(cfg BreakerConfig, clock clockwork.Clock) *CircuitBreaker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &CircuitBreaker{
		cfg:   cfg,
		clock: clock,
		state: BreakerClosed,
	}
}

func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}

	cb.mu.Lock()
	if cb.state == BreakerOpen {
		if cb.clock.Since(cb.lastFailureTime) >= cb.cfg.OpenTimeout {
			cb.transitionToHalfOpenLocked()
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}

	if cb.state == BreakerHalfOpen && cb.requests >= cb.cfg.HalfOpenMaxRequests {
		cb.mu.Unlock()
		return errHalfOpenTooManyRequests
	}
	cb.mu.Unlock()

	callErr := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.requests++
	if callErr != nil {
		cb.failures++

		if cb.state == BreakerHalfOpen {
			cb.tripToOpenLocked()
		} else {
			cb.evaluateLocked()
		}

		return callErr
	}

	cb.successes++
	if cb.state == BreakerHalfOpen && cb.successes >= cb.cfg.HalfOpenMaxRequests {
		cb.state = BreakerClosed
		cb.resetCountersLocked()
	}

	return nil
}

func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) evaluateLocked() {
	if cb.requests < cb.cfg.MinRequests {
		return
	}

	errorRate := float64(cb.failures) / float64(cb.requests)
	if errorRate >= cb.cfg.ErrorThreshold {
		cb.tripToOpenLocked()
	}
}

func (cb *CircuitBreaker) resetCountersLocked() {
	cb.failures = 0
	cb.successes = 0
	cb.requests = 0
}

func (cb *CircuitBreaker) transitionToHalfOpenLocked() {
	cb.state = BreakerHalfOpen
	cb.resetCountersLocked()
}

func (cb *CircuitBreaker) tripToOpenLocked() {
	cb.state = BreakerOpen
	cb.lastFailureTime = cb.clock.Now()
	cb.resetCountersLocked()
}
