// Package settingscache keeps user settings in Redis so reminder checks and menus skip the database.
package settingscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/worklog-bot/internal/domain"
	"github.com/Proton-105/worklog-bot/pkg/redis"
)

// DefaultTTL bounds how long a cached copy may outlive an external edit.
const DefaultTTL = time.Hour

// Cache provides Redis-backed caching for user settings.
type Cache struct {
	kv  redis.KV
	ttl time.Duration
}

func NewCache(kv redis.KV, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{kv: kv, ttl: ttl}
}

// Get returns (nil, nil) on a miss.
func (c *Cache) Get(ctx context.Context, userID string) (*domain.UserSettings, error) {
	if c == nil || c.kv == nil {
		return nil, nil
	}

	data, err := c.kv.Get(ctx, cacheKey(userID))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached settings: %w", err)
	}

	var settings domain.UserSettings
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return nil, fmt.Errorf("decode cached settings: %w", err)
	}

	return &settings, nil
}

func (c *Cache) Set(ctx context.Context, userID string, settings domain.UserSettings) error {
	if c == nil || c.kv == nil {
		return nil
	}

	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings for cache: %w", err)
	}

	if err := c.kv.Set(ctx, cacheKey(userID), payload, c.ttl); err != nil {
		return fmt.Errorf("set cached settings: %w", err)
	}

	return nil
}

func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	if c == nil || c.kv == nil {
		return nil
	}

	if err := c.kv.Delete(ctx, cacheKey(userID)); err != nil {
		return fmt.Errorf("delete cached settings: %w", err)
	}

	return nil
}

func cacheKey(userID string) string {
	return fmt.Sprintf("settings:%s", userID)
}
