package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/worklog-bot/internal/dialog"
)

// NewTextHandler feeds a plain text message into the dialog.
func NewTextHandler(d Dialog, out Responder, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		chatID, userID, ok := chatAndUser(c)
		if !ok {
			return nil
		}
		ctx := RequestContext(c)

		resp, err := d.Process(ctx, dialog.Input{
			ChatID:   chatID,
			UserID:   userID,
			UserName: displayName(c.Sender()),
			Text:     c.Text(),
		})
		if err != nil {
			log.Error("dialog step failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
		}

		return out.SendResponse(ctx, chatID, resp)
	}
}
