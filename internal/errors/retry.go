package errors

import (
	"context"
	"errors"
	"math"
	"time"
)

// RetryPolicy controls exponential backoff for WithRetryPolicy.
type RetryPolicy struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryPolicy is used by WithRetry.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:        3,
	InitialBackoff:    100 * time.Millisecond,
	MaxBackoff:        5 * time.Second,
	BackoffMultiplier: 2.0,
}

// WithRetry runs fn, retrying retryable AppErrors with DefaultRetryPolicy.
func WithRetry(ctx context.Context, fn func() error) error {
	return WithRetryPolicy(ctx, DefaultRetryPolicy, fn)
}

func WithRetryPolicy(ctx context.Context, policy RetryPolicy, fn func() error) error {
	if fn == nil {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn()
		if err == nil {
			return nil
		}

		if !IsRetryable(err) || attempt == policy.MaxRetries {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.backoff(attempt + 1)):
		}
	}

	return err
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Retryable
	}

	return false
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(attempt))
	backoff := time.Duration(delay)
	if backoff > p.MaxBackoff {
		return p.MaxBackoff
	}

	return backoff
}
