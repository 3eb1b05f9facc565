package handlers

import (
	"context"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"
)

const requestContextKey = "request_ctx"

// WithRequestContext stores ctx on the update so downstream handlers share it.
func WithRequestContext(c telebot.Context, ctx context.Context) {
	c.Set(requestContextKey, ctx)
}

// RequestContext returns the context stored by WithRequestContext or a background context.
func RequestContext(c telebot.Context) context.Context {
	if c != nil {
		if ctx, ok := c.Get(requestContextKey).(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

// chatAndUser extracts the chat id and the sender's id in the string form the store keys by.
func chatAndUser(c telebot.Context) (int64, string, bool) {
	chat, sender := c.Chat(), c.Sender()
	if chat == nil || sender == nil {
		return 0, "", false
	}
	return chat.ID, strconv.FormatInt(sender.ID, 10), true
}

// displayName is "First Last", falling back to the username.
func displayName(u *telebot.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		name = u.Username
	}
	return name
}
