package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/worklog-bot/internal/bot/handlers"
	"github.com/Proton-105/worklog-bot/internal/idempotency"
)

// UpdateTTL is how long an update key is remembered.
const UpdateTTL = 24 * time.Hour

// Idempotency ensures handlers execute at most once per Telegram update.
func Idempotency(manager idempotency.Manager, log *slog.Logger) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			key := extractIdempotencyKey(c)
			if key == "" {
				return next(c)
			}

			err := manager.Execute(handlers.RequestContext(c), key, UpdateTTL, func(ctx context.Context) error {
				return next(c)
			})
			if errors.Is(err, idempotency.ErrDuplicate) {
				log.Info("duplicate update dropped", slog.String("key", key))
				return nil
			}
			return err
		}
	}
}

func extractIdempotencyKey(c telebot.Context) string {
	if c == nil {
		return ""
	}

	if id := c.Update().ID; id != 0 {
		return idempotency.UpdateKey(id)
	}

	if msg := c.Message(); msg != nil && msg.ID != 0 {
		chatID := int64(0)
		if msg.Chat != nil {
			chatID = msg.Chat.ID
		}
		return idempotency.MessageKey(chatID, msg.ID)
	}

	return ""
}
