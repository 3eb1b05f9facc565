// Package health reports whether the bot's dependencies are reachable.
package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/telebot.v3"
)

const defaultCheckTimeout = 2 * time.Second

// Checkable represents a component that can report its health status.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a function to Checkable.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Checker aggregates health checks for multiple components.
type Checker struct {
	log     *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]Checkable
}

// NewChecker instantiates a Checker with the provided logger.
func NewChecker(log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}

	return &Checker{
		log:     log,
		timeout: defaultCheckTimeout,
		checks:  make(map[string]Checkable),
	}
}

// AddCheck registers a checkable component by name.
func (c *Checker) AddCheck(name string, check Checkable) {
	if name == "" || check == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Check runs all registered checks concurrently and returns "OK" or the error text per component.
func (c *Checker) Check(ctx context.Context) map[string]string {
	c.mu.RLock()
	checks := make(map[string]Checkable, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]string, len(checks))
	)

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check Checkable) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			status := "OK"
			if err := check.HealthCheck(checkCtx); err != nil {
				status = err.Error()
				c.log.Error("health check failed", slog.String("component", name), slog.Any("error", err))
			}

			mu.Lock()
			results[name] = status
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	return results
}

// Ready returns an error naming every failing component.
func (c *Checker) Ready(ctx context.Context) error {
	results := c.Check(ctx)

	var failed []string
	for name, status := range results {
		if status != "OK" {
			failed = append(failed, fmt.Sprintf("%s: %s", name, status))
		}
	}
	if len(failed) == 0 {
		return nil
	}

	sort.Strings(failed)
	return errors.New(strings.Join(failed, "; "))
}

// Handler serves the results of Check as JSON: 200 when everything is OK, 503 otherwise.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		results := c.Check(r.Context())

		status := http.StatusOK
		for _, s := range results {
			if s != "OK" {
				status = http.StatusServiceUnavailable
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(results)
	})
}

// DBChecker verifies connectivity to the SQL database, whichever driver backs it.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker constructs a DBChecker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database to ensure it is reachable.
func (c *DBChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.db == nil {
		return sql.ErrConnDone
	}
	return c.db.PingContext(ctx)
}

// Pinger abstracts the subset of redis.Client used for health checks.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker verifies connectivity to a Redis instance.
type RedisChecker struct {
	pinger Pinger
}

// NewRedisChecker constructs a RedisChecker.
func NewRedisChecker(pinger Pinger) *RedisChecker {
	return &RedisChecker{pinger: pinger}
}

// HealthCheck issues a PING command against Redis.
func (c *RedisChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.pinger == nil {
		return redis.ErrClosed
	}
	return c.pinger.Ping(ctx).Err()
}

// TelegramChecker verifies that the bot authenticated against the Telegram API.
type TelegramChecker struct {
	bot *telebot.Bot
}

// NewTelegramChecker constructs a TelegramChecker.
func NewTelegramChecker(bot *telebot.Bot) *TelegramChecker {
	return &TelegramChecker{bot: bot}
}

// HealthCheck fails until telebot has resolved the bot's own account.
func (c *TelegramChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.bot == nil || c.bot.Me == nil {
		return errors.New("telegram bot is not initialized or disconnected")
	}
	return ctx.Err()
}
