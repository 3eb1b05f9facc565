package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// ErrDraining is reported by Readiness once shutdown has begun.
var ErrDraining = errors.New("shutting down")

// ReadinessCheck reports whether dependencies are usable.
type ReadinessCheck interface {
	Ready(ctx context.Context) error
}

// Probes exposes liveness and readiness for the process.
type Probes struct {
	check    ReadinessCheck
	started  atomic.Bool
	draining atomic.Bool
	log      *slog.Logger
}

// NewProbes creates Probes over check. check may be nil.
func NewProbes(check ReadinessCheck, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{check: check, log: log}
}

// MarkStarted flips readiness on once every component is running.
func (p *Probes) MarkStarted() { p.started.Store(true) }

// MarkDraining flips readiness off for the rest of the process lifetime.
func (p *Probes) MarkDraining() { p.draining.Store(true) }

// Liveness succeeds while the process can answer.
func (p *Probes) Liveness(ctx context.Context) error {
	return ctx.Err()
}

// Readiness fails before start, during shutdown and when a dependency check fails.
func (p *Probes) Readiness(ctx context.Context) error {
	switch {
	case p.draining.Load():
		return ErrDraining
	case !p.started.Load():
		return errors.New("starting")
	case p.check == nil:
		return nil
	}

	if err := p.check.Ready(ctx); err != nil {
		p.log.Warn("readiness probe failed", slog.Any("error", err))
		return err
	}
	return nil
}

// Handler serves probe as 200 "ok" or 503 with the error text.
func Handler(probe func(ctx context.Context) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := probe(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(err.Error()))
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
}
