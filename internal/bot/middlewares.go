package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/worklog-bot/internal/bot/handlers"
	"github.com/Proton-105/worklog-bot/internal/dialog"
	apperrors "github.com/Proton-105/worklog-bot/internal/errors"
	"github.com/Proton-105/worklog-bot/pkg/logger"
)

const logTextLimit = 50

// RecoveryMiddleware catches panics, reports them via the centralized handler and notifies the user.
func RecoveryMiddleware(out handlers.Responder, errHandler *apperrors.Handler, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					ctx := handlers.RequestContext(c)
					if errHandler != nil {
						errHandler.Handle(ctx, apperrors.NewLogicError(fmt.Sprintf("panic recovered: %v", r)))
					}

					notify(ctx, c, out, apperrors.GenericUserMessage, log)
					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware reports handler failures and tells the user what went wrong.
func ErrorHandlingMiddleware(out handlers.Responder, errHandler *apperrors.Handler, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			ctx := handlers.RequestContext(c)
			userMsg := apperrors.GenericUserMessage
			if errHandler != nil {
				if msg, _ := errHandler.Handle(ctx, err); msg != "" {
					userMsg = msg
				}
			}

			notify(ctx, c, out, userMsg, log)
			return nil
		}
	}
}

// LoggingMiddleware attaches a correlation id to the update and logs its outcome.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			ctx := logger.WithCorrelationID(handlers.RequestContext(c))
			handlers.WithRequestContext(c, ctx)

			chatID := int64(0)
			if chat := c.Chat(); chat != nil {
				chatID = chat.ID
			}

			err := next(c)
			log.Info("handled update",
				slog.Int64("chat_id", chatID),
				slog.String("action", logger.Truncate(c.Text(), logTextLimit)),
				slog.Duration("duration", time.Since(start)),
				slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
				slog.Any("error", err),
			)

			return err
		}
	}
}

func notify(ctx context.Context, c telebot.Context, out handlers.Responder, text string, log *slog.Logger) {
	chat := c.Chat()
	if out == nil || chat == nil {
		return
	}

	msg := dialog.Message{Text: text, Menu: dialog.MainMenu()}
	if err := out.SendResponse(ctx, chat.ID, dialog.Response{Messages: []dialog.Message{msg}}); err != nil {
		log.Error("failed to notify user about failure", slog.Int64("chat_id", chat.ID), slog.Any("error", err))
	}
}
