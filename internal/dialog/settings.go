package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Proton-105/worklog-bot/internal/domain"
	"github.com/Proton-105/worklog-bot/internal/state"
)

const (
	msgPickWorkDays   = "Выбери рабочие дни (отмеченные дни будут активны):"
	msgWorkDaysDraft  = "Текущий выбор рабочих дней:"
	settingReminders  = "напоминания"
	settingVacation   = "режим отпуска"
	settingWorkDays   = "рабочие дни"
	remindersOn       = "включены"
	remindersOff      = "выключены"
	vacationOn        = "активен"
	vacationOff       = "не активен"
	workDaysSeparator = ", "
)

// loadSettings reads settings for display, degrading to defaults when the store fails.
func (c *Controller) loadSettings(ctx context.Context, userID string) domain.UserSettings {
	settings, err := c.store.GetSettings(ctx, userID)
	if err != nil {
		c.log.Warn("using default settings", slog.String("user_id", userID), slog.Any("error", err))
	}
	return settings
}

// updateSettings reads the stored settings, applies change and saves the result. A failed
// read is returned as is so defaults never overwrite the stored row.
func (c *Controller) updateSettings(ctx context.Context, userID string, change func(*domain.UserSettings)) (domain.UserSettings, error) {
	settings, err := c.store.GetSettings(ctx, userID)
	if err != nil {
		return domain.UserSettings{}, err
	}

	change(&settings)
	if err := c.store.SaveSettings(ctx, userID, settings); err != nil {
		return domain.UserSettings{}, err
	}
	return settings, nil
}

func (c *Controller) openSettings(ctx context.Context, s *state.Session, resp *Response) error {
	s.State = state.Settings
	resp.say(formatSettings(c.loadSettings(ctx, s.UserID)), SettingsMenu())
	return nil
}

func (c *Controller) handleSettings(ctx context.Context, s *state.Session, in Input, resp *Response) error {
	if is(in.Text, LabelBack) {
		toMain(s, resp, msgMainMenu)
		return nil
	}

	lower := strings.ToLower(in.Text)

	switch {
	case strings.Contains(lower, settingReminders):
		settings, err := c.updateSettings(ctx, s.UserID, func(u *domain.UserSettings) {
			u.RemindersEnabled = !u.RemindersEnabled
		})
		if err != nil {
			return err
		}
		resp.say(fmt.Sprintf("Напоминания теперь %s!", pick(settings.RemindersEnabled, remindersOn, remindersOff)), nil)
		resp.say(formatSettings(settings), SettingsMenu())

	case strings.Contains(lower, settingVacation):
		settings, err := c.updateSettings(ctx, s.UserID, func(u *domain.UserSettings) {
			u.VacationMode = !u.VacationMode
		})
		if err != nil {
			return err
		}
		resp.say(fmt.Sprintf("Режим отпуска теперь %s!", pick(settings.VacationMode, vacationOn, vacationOff)), nil)
		resp.say(formatSettings(settings), SettingsMenu())

	case strings.Contains(lower, settingWorkDays):
		settings, err := c.store.GetSettings(ctx, s.UserID)
		if err != nil {
			return err
		}
		s.WorkDaysDraft = append([]domain.Weekday{}, settings.WorkDays...)
		s.State = state.SettingWorkDays
		resp.say(msgPickWorkDays, WorkDaysMenu(s.WorkDaysDraft))
		return nil

	default:
		resp.say(formatSettings(c.loadSettings(ctx, s.UserID)), SettingsMenu())
	}

	s.State = state.Settings
	return nil
}

// handleWorkDays toggles days in the session draft and saves them on "Готово".
func (c *Controller) handleWorkDays(ctx context.Context, s *state.Session, in Input, resp *Response) error {
	if is(in.Text, LabelDone) {
		draft := append([]domain.Weekday{}, s.WorkDaysDraft...)
		settings, err := c.updateSettings(ctx, s.UserID, func(u *domain.UserSettings) {
			u.WorkDays = draft
		})
		if err != nil {
			return err
		}

		s.WorkDaysDraft = nil
		s.State = state.Settings
		resp.say("Рабочие дни обновлены: "+formatWorkDays(settings.WorkDays), nil)
		resp.say(formatSettings(settings), SettingsMenu())
		return nil
	}

	if day, ok := parseWorkDayButton(in.Text); ok {
		s.WorkDaysDraft = domain.ToggleDay(s.WorkDaysDraft, day)
	}

	resp.say(msgWorkDaysDraft, WorkDaysMenu(s.WorkDaysDraft))
	return nil
}

// parseWorkDayButton accepts "✅ Пн", "❌ Пн" or a bare "Пн".
func parseWorkDayButton(text string) (domain.Weekday, bool) {
	name := strings.TrimSpace(text)
	name = strings.TrimPrefix(name, workDayOn)
	name = strings.TrimPrefix(name, workDayOff)
	return domain.ParseWeekday(strings.TrimSpace(name))
}

func formatSettings(s domain.UserSettings) string {
	return fmt.Sprintf("⚙️ Настройки:\n\n%s - Напоминания\n📅 Рабочие дни: %s\n%s - Режим отпуска\n\nВыбери опцию для изменения:",
		pick(s.RemindersEnabled, "✅ Включены", "❌ Выключены"),
		formatWorkDays(s.WorkDays),
		pick(s.VacationMode, "✅ Активен", "❌ Не активен"),
	)
}

func formatWorkDays(days []domain.Weekday) string {
	if len(days) == 0 {
		return "нет"
	}

	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, d.ShortName())
	}
	return strings.Join(names, workDaysSeparator)
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
