package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Proton-105/worklog-bot/pkg/config"
)

var level = new(slog.LevelVar)

// New builds the root logger: stdout (plus a rotating file when enabled), masking, and Sentry for errors.
func New(cfg config.Config) *slog.Logger {
	SetLevel(cfg.Logger.Level)

	var out io.Writer = os.Stdout
	if cfg.Logger.File.Enabled && cfg.Logger.File.Path != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Logger.File.Path,
			MaxSize:    cfg.Logger.File.MaxSizeMB,
			MaxBackups: cfg.Logger.File.MaxBackups,
			MaxAge:     cfg.Logger.File.MaxAgeDays,
			Compress:   cfg.Logger.File.Compress,
		})
	}

	return slog.New(newHandler(out, cfg)).With(slog.String("env", cfg.AppEnv))
}

func newHandler(out io.Writer, cfg config.Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Logger.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	if cfg.Sentry.Enabled {
		handler = slogmulti.Fanout(
			handler,
			slogsentry.Option{Level: slog.LevelError}.NewSentryHandler(),
		)
	}

	return NewMaskingHandler(handler)
}

// SetLevel changes the level of every logger built by New. Unknown values fall back to info.
func SetLevel(name string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		l = slog.LevelInfo
	}
	level.Set(l)
}

// Level reports the current shared level.
func Level() slog.Level {
	return level.Level()
}
