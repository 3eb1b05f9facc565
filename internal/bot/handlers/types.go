package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/worklog-bot/internal/dialog"
	"github.com/Proton-105/worklog-bot/internal/reminder"
)

// Handler processes bot updates.
type Handler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Dialog is the conversation engine behind every text update.
type Dialog interface {
	Process(ctx context.Context, in dialog.Input) (dialog.Response, error)
	Start(ctx context.Context, chatID int64, userID string) (dialog.Response, error)
	Cancel(ctx context.Context, chatID int64, userID string) (dialog.Response, error)
}

// Responder delivers a dialog response to a chat.
type Responder interface {
	SendResponse(ctx context.Context, chatID int64, resp dialog.Response) error
}

// Reminders re-arms the daily reminder of a chat.
type Reminders interface {
	Replace(ctx context.Context, chatID int64, userID string) (reminder.Job, error)
}
