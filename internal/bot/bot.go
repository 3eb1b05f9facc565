// Package bot connects Telegram to the work-log dialog.
package bot

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/worklog-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/worklog-bot/internal/errors"
	"github.com/Proton-105/worklog-bot/internal/idempotency"
	"github.com/Proton-105/worklog-bot/internal/middleware"
	"github.com/Proton-105/worklog-bot/internal/ratelimit"
	"github.com/Proton-105/worklog-bot/pkg/config"
)

// Deps groups what the bot needs to serve updates.
type Deps struct {
	Dialog      handlers.Dialog
	Reminders   handlers.Reminders
	Errors      *apperrors.Handler
	Idempotency idempotency.Manager
	Limiter     ratelimit.Limiter
	Rules       *ratelimit.Rules
}

// Bot wraps telebot.Bot with the router that feeds the dialog.
type Bot struct {
	telebot *telebot.Bot
	sender  *Sender
	router  *Router
	log     *slog.Logger
}

// NewTelebot creates the Telegram client in polling or webhook mode.
func NewTelebot(cfg config.BotConfig, log *slog.Logger) (*telebot.Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	settings := telebot.Settings{
		Token: cfg.Token,
		OnError: func(err error, c telebot.Context) {
			log.Error("telebot error", slog.Any("error", err))
		},
	}

	if cfg.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen:   cfg.WebhookListen,
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}
	return tb, nil
}

// New wires the router and registers telebot handlers.
func New(tb *telebot.Bot, sender *Sender, deps Deps, log *slog.Logger) *Bot {
	if log == nil {
		log = slog.Default()
	}

	b := &Bot{
		telebot: tb,
		sender:  sender,
		router:  NewRouter(log),
		log:     log,
	}

	b.setupRouter(deps)
	b.registerTelebotHandlers()

	return b
}

// Start registers the command menu and runs the telegram bot event loop. It blocks until Stop.
func (b *Bot) Start() {
	if b.telebot == nil {
		return
	}

	commands := make([]telebot.Command, 0, len(commandList))
	for _, cmd := range commandList {
		commands = append(commands, telebot.Command{Text: cmd.Text, Description: cmd.Description})
	}
	if err := b.telebot.SetCommands(commands); err != nil {
		b.log.Warn("failed to register bot commands", slog.Any("error", err))
	}

	b.log.Info("telegram bot started", slog.String("username", b.telebot.Me.Username))
	b.telebot.Start()
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

func (b *Bot) setupRouter(deps Deps) {
	b.router.Use(RecoveryMiddleware(b.sender, deps.Errors, b.log))
	b.router.Use(ErrorHandlingMiddleware(b.sender, deps.Errors, b.log))
	b.router.Use(LoggingMiddleware(b.log))
	b.router.Use(middleware.Idempotency(deps.Idempotency, b.log))
	b.router.Use(middleware.RateLimit(deps.Limiter, deps.Rules, b.log))
	b.router.Use(middleware.Metrics)

	b.router.RegisterCommand(CommandStart, handlers.NewStartHandler(deps.Dialog, deps.Reminders, b.sender, b.log))
	b.router.RegisterCommand(CommandCancel, handlers.NewCancelHandler(deps.Dialog, b.sender, b.log))
	b.router.SetDefault(handlers.NewTextHandler(deps.Dialog, b.sender, b.log))
}

func (b *Bot) registerTelebotHandlers() {
	if b.telebot == nil {
		return
	}

	b.telebot.Handle(telebot.OnText, b.router.Route)
}
