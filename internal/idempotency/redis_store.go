package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idempotency:"

// Store records which keys have been claimed.
type Store interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisStore(client *redis.Client, log *slog.Logger) Store {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		log:    log,
	}
}

// Claim sets the key if absent. Every key carries a ttl so Redis expires it on its own.
func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := s.client.SetNX(ctx, keyPrefix+key, time.Now().Unix(), ttl).Result()
	if err != nil {
		s.log.Error("failed to claim idempotency key", slog.String("key", key), slog.Any("error", err))
		return false, err
	}

	return acquired, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		s.log.Error("failed to release idempotency key", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}
