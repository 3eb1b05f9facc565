package middleware

import (
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/worklog-bot/internal/bot/handlers"
	"github.com/Proton-105/worklog-bot/pkg/metrics"
)

// Metrics counts handled updates per command and status.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RecordCommand(commandLabel(c), status)

		return err
	}
}

// commandLabel keeps the label set small: commands by name, everything else as "text".
func commandLabel(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	text := strings.TrimSpace(c.Text())
	if !strings.HasPrefix(text, "/") {
		return "text"
	}

	cmd := strings.Fields(text)[0]
	if at := strings.IndexByte(cmd, '@'); at > 0 {
		cmd = cmd[:at]
	}
	return cmd
}
