package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Proton-105/worklog-bot/internal/dialog"
	"github.com/Proton-105/worklog-bot/internal/domain"
	apperrors "github.com/Proton-105/worklog-bot/internal/errors"
	"github.com/Proton-105/worklog-bot/pkg/metrics"
)

const reminderText = "⏰ Напоминание! Не забудь добавить сегодняшние работы!"

// Store is what the notifier reads to decide whether to remind.
type Store interface {
	GetSettings(ctx context.Context, userID string) (domain.UserSettings, error)
	GetEntries(ctx context.Context, userID string, dateRange *domain.DateRange) ([]domain.WorkEntry, error)
}

// Sender delivers a message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, msg dialog.Message) error
}

// Notifier implements the reminder fire logic.
type Notifier struct {
	store   Store
	sender  Sender
	breaker *apperrors.CircuitBreaker
	clock   clockwork.Clock
	loc     *time.Location
	log     *slog.Logger
}

var _ Checker = (*Notifier)(nil)

func NewNotifier(store Store, sender Sender, breaker *apperrors.CircuitBreaker, clock clockwork.Clock, loc *time.Location, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	if breaker == nil {
		breaker = apperrors.NewCircuitBreaker(apperrors.DefaultBreakerConfig, clock)
	}

	return &Notifier{
		store:   store,
		sender:  sender,
		breaker: breaker,
		clock:   clock,
		loc:     loc,
		log:     log,
	}
}

// Check sends the reminder when reminders are on, vacation is off, today is a work day and
// nothing was recorded for today. It reports whether a message was sent.
func (n *Notifier) Check(ctx context.Context, chatID int64, userID string) (bool, error) {
	settings, err := n.store.GetSettings(ctx, userID)
	if err != nil {
		metrics.RecordReminder("error")
		return false, err
	}

	now := n.clock.Now().In(n.loc)
	switch {
	case !settings.RemindersEnabled:
		return n.skip(chatID, "disabled")
	case settings.VacationMode:
		return n.skip(chatID, "vacation")
	case !settings.IsWorkDay(domain.WeekdayOf(now)):
		return n.skip(chatID, "day_off")
	}

	today := domain.StartOfDay(now)
	entries, err := n.store.GetEntries(ctx, userID, &domain.DateRange{From: today, To: today})
	if err != nil {
		metrics.RecordReminder("error")
		return false, err
	}
	if len(entries) > 0 {
		return n.skip(chatID, "has_entries")
	}

	err = n.breaker.Call(func() error {
		return n.sender.Send(ctx, chatID, dialog.Message{Text: reminderText, Menu: dialog.MainMenu()})
	})
	if err != nil {
		metrics.RecordReminder("failed")
		return false, apperrors.NewTransportError("send reminder", err)
	}

	metrics.RecordReminder("sent")
	n.log.Info("reminder sent", slog.Int64("chat_id", chatID), slog.String("user_id", userID))
	return true, nil
}

func (n *Notifier) skip(chatID int64, reason string) (bool, error) {
	metrics.RecordReminder("skipped_" + reason)
	n.log.Debug("reminder skipped", slog.Int64("chat_id", chatID), slog.String("reason", reason))
	return false, nil
}
