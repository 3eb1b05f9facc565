package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// Result captures the outcome of a rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter describes a rate-limiting strategy interface.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// Cleanable limiters can drop state that has been idle for longer than maxAge.
type Cleanable interface {
	Cleanup(ctx context.Context, maxAge time.Duration) (int, error)
}

// ErrLimitExceeded indicates the rate limit has been reached for the key.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// ChatKey is the limiter key for a chat.
func ChatKey(chatID int64) string {
	return "chat:" + strconv.FormatInt(chatID, 10)
}
