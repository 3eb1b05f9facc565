package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// RedisLimiter implements Limiter using Redis sorted sets and a sliding window.
type RedisLimiter struct {
	client *redis.Client
	clock  clockwork.Clock
	log    *slog.Logger
}

var (
	_ Limiter   = (*RedisLimiter)(nil)
	_ Cleanable = (*RedisLimiter)(nil)
)

// NewRedisLimiter creates a Redis-backed Limiter implementation.
func NewRedisLimiter(client *redis.Client, clock clockwork.Clock, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &RedisLimiter{
		client: client,
		clock:  clock,
		log:    log,
	}
}

// Check evaluates the rate limit for a given key using a sliding window algorithm.
func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if l.client == nil {
		return nil, errors.New("redis client is not configured for rate limiting")
	}

	now := l.clock.Now()
	if limit <= 0 {
		return &Result{Allowed: false, Remaining: 0, ResetAt: now.Add(window)}, nil
	}

	redisKey := redisKeyPrefix + key
	cutoff := float64(now.Add(-window).UnixMilli())

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%f", cutoff))
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: uuid.NewString(),
	})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Error("rate limiter pipeline failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	count, err := countCmd.Result()
	if err != nil {
		l.log.Error("rate limiter failed to read count", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count <= int64(limit),
		Remaining: remaining,
		ResetAt:   now.Add(window),
	}, nil
}

// Cleanup trims members older than maxAge from every limiter key and deletes keys left empty.
func (l *RedisLimiter) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	const scanCount = 100

	cutoff := l.clock.Now().Add(-maxAge).UnixMilli()
	var cursor uint64
	cleaned := 0

	for {
		keys, nextCursor, err := l.client.Scan(ctx, cursor, redisKeyPrefix+"*", scanCount).Result()
		if err != nil {
			return cleaned, fmt.Errorf("scan rate limit keys: %w", err)
		}

		for _, key := range keys {
			pipe := l.client.TxPipeline()
			pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", cutoff))
			cardCmd := pipe.ZCard(ctx, key)
			if _, err := pipe.Exec(ctx); err != nil {
				l.log.Warn("cleanup pipeline failed", slog.String("key", key), slog.Any("error", err))
				continue
			}

			if cardCmd.Val() > 0 {
				continue
			}
			if err := l.client.Del(ctx, key).Err(); err != nil {
				l.log.Warn("failed to delete empty rate limit key", slog.String("key", key), slog.Any("error", err))
				continue
			}
			cleaned++
		}

		if nextCursor == 0 {
			return cleaned, nil
		}
		cursor = nextCursor
	}
}
