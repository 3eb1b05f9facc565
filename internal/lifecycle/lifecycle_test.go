package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdown_RunsPhasesInOrder(t *testing.T) {
	s := NewShutdown(nil)

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	s.Register(PhaseStorage, "database", record("database"))
	s.Register(PhaseWorkers, "reminders", record("reminders"))
	s.Register(PhaseIngress, "bot", record("bot"))
	s.Register(PhaseIngress, "nil", nil)

	require.NoError(t, s.Execute(context.Background()))
	assert.Equal(t, []string{"bot", "reminders", "database"}, order)
}

func TestShutdown_JoinsErrorsAndContinues(t *testing.T) {
	s := NewShutdown(nil)
	boom := errors.New("boom")
	closed := false

	s.Register(PhaseWorkers, "jobs", func(context.Context) error { return boom })
	s.Register(PhaseStorage, "redis", func(context.Context) error { closed = true; return nil })

	err := s.Execute(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "jobs: boom")
	assert.True(t, closed)
}

type readyFunc func(ctx context.Context) error

func (f readyFunc) Ready(ctx context.Context) error { return f(ctx) }

func TestProbes_Readiness(t *testing.T) {
	var depErr error
	p := NewProbes(readyFunc(func(context.Context) error { return depErr }), nil)
	ctx := context.Background()

	assert.Error(t, p.Readiness(ctx), "not ready before start")

	p.MarkStarted()
	assert.NoError(t, p.Readiness(ctx))

	depErr = errors.New("redis: down")
	assert.EqualError(t, p.Readiness(ctx), "redis: down")

	depErr = nil
	p.MarkDraining()
	assert.ErrorIs(t, p.Readiness(ctx), ErrDraining)
	assert.NoError(t, p.Liveness(ctx))
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(func(context.Context) error { return ErrDraining }).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "shutting down", rec.Body.String())

	rec = httptest.NewRecorder()
	Handler(func(context.Context) error { return nil }).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
