package middleware

import (
	"log/slog"
	"math"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/worklog-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/worklog-bot/internal/errors"
	"github.com/Proton-105/worklog-bot/internal/ratelimit"
)

// RateLimit enforces the per-chat limit for incoming updates. Limiter failures let the update through.
func RateLimit(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) handlers.Middleware {
	if limiter == nil || !rules.Enabled() {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}

	limit, window, ruleErr := rules.PerChatLimit()
	if ruleErr != nil {
		log.Error("invalid per-chat rate limit, limiting disabled", slog.Any("error", ruleErr))
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			chat := c.Chat()
			if chat == nil || rules.IsWhitelisted(chat.ID) {
				return next(c)
			}

			ctx := handlers.RequestContext(c)
			result, err := limiter.Check(ctx, ratelimit.ChatKey(chat.ID), limit, window)
			if err != nil {
				log.Warn("rate limiter error", slog.Int64("chat_id", chat.ID), slog.Any("error", err))
				return next(c)
			}

			if !result.Allowed {
				retryAfter := int(math.Ceil(time.Until(result.ResetAt).Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				log.Warn("rate limit exceeded", slog.Int64("chat_id", chat.ID), slog.Int("retry_after", retryAfter))
				return apperrors.NewRateLimitError(retryAfter)
			}

			return next(c)
		}
	}
}
