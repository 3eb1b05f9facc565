// Package idempotency drops Telegram updates that were already handled.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrDuplicate is returned when the key was already claimed by an earlier delivery.
var ErrDuplicate = errors.New("update with this key was already handled")

// Operation is the work guarded by a key.
type Operation func(ctx context.Context) error

// Manager runs an operation at most once per key within ttl.
type Manager interface {
	Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) error
}

type manager struct {
	store Store
	log   *slog.Logger
}

func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store: store,
		log:   log,
	}
}

// Execute claims key and runs fn. A failed fn releases the claim so a redelivery can retry.
// When the store is unreachable the operation still runs.
func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		return errors.New("operation fn cannot be nil")
	}

	claimed, err := m.store.Claim(ctx, key, ttl)
	if err != nil {
		m.log.Warn("idempotency store unavailable, processing anyway", slog.String("key", key), slog.Any("error", err))
		return fn(ctx)
	}
	if !claimed {
		return ErrDuplicate
	}

	if err := fn(ctx); err != nil {
		if relErr := m.store.Release(ctx, key); relErr != nil {
			m.log.Warn("failed to release idempotency key", slog.String("key", key), slog.Any("error", relErr))
		}
		return err
	}

	return nil
}
