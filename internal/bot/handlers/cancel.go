package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"
)

// NewCancelHandler drops whatever the user was doing and returns them to the main menu.
func NewCancelHandler(d Dialog, out Responder, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		chatID, userID, ok := chatAndUser(c)
		if !ok {
			log.Warn("cancel handler invoked without sender context")
			return nil
		}
		ctx := RequestContext(c)

		resp, err := d.Cancel(ctx, chatID, userID)
		if err != nil {
			log.Error("failed to cancel dialog", slog.Int64("chat_id", chatID), slog.Any("error", err))
		}

		return out.SendResponse(ctx, chatID, resp)
	}
}
