package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"
)

// NewStartHandler resets the dialog, greets the user and re-arms their daily reminder.
func NewStartHandler(d Dialog, reminders Reminders, out Responder, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		chatID, userID, ok := chatAndUser(c)
		if !ok {
			log.Warn("start handler invoked without sender")
			return nil
		}
		ctx := RequestContext(c)

		resp, err := d.Start(ctx, chatID, userID)
		if err != nil {
			log.Error("failed to start dialog", slog.Int64("chat_id", chatID), slog.Any("error", err))
		}

		if reminders != nil {
			if _, err := reminders.Replace(ctx, chatID, userID); err != nil {
				log.Error("failed to set reminder", slog.Int64("chat_id", chatID), slog.Any("error", err))
			}
		}

		return out.SendResponse(ctx, chatID, resp)
	}
}
