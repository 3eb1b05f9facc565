package dialog

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/Proton-105/worklog-bot/internal/domain"
	"github.com/Proton-105/worklog-bot/internal/state"
)

const (
	msgDateCancelled = "Действие отменено"
	msgBadDateFormat = "❌ Неверный формат даты. Используй ДД.ММ.ГГГГ (например, 15.06.2025)"
	msgFutureDate    = "❌ Нельзя выбрать будущую дату!"
)

var datePattern = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`)

var relativeDays = map[string]int{
	LabelToday:     0,
	LabelYesterday: 1,
	LabelDayBefore: 2,
}

func (c *Controller) handleSelectingDate(_ context.Context, s *state.Session, in Input, resp *Response) error {
	today := c.today()

	switch {
	case is(in.Text, LabelCancel):
		s.ClearDatePicker()
		s.DateSource = state.CategoryNone
		s.State = state.Root
		resp.say(msgDateCancelled, MainMenu())
		return nil

	case is(in.Text, LabelBack):
		s.ClearDatePicker()
		resp.say(msgPickDate, DateMenu())
		return nil

	case is(in.Text, LabelCurrentMonth):
		c.openPicker(s, today.Month(), today.Year(), "Выбери число текущего месяца:", resp)
		return nil

	case is(in.Text, LabelPreviousMonth):
		prev := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, c.loc).AddDate(0, -1, 0)
		c.openPicker(s, prev.Month(), prev.Year(), "Выбери число предыдущего месяца:", resp)
		return nil
	}

	for label, back := range relativeDays {
		if is(in.Text, label) {
			c.selectDate(s, today.AddDate(0, 0, -back), resp)
			return nil
		}
	}

	if day, err := strconv.Atoi(in.Text); err == nil && s.HasPicker() {
		return c.pickDay(s, day, resp)
	}

	if !datePattern.MatchString(in.Text) {
		resp.say(msgBadDateFormat, DateMenu())
		return nil
	}

	date, err := time.ParseInLocation(domain.DateLayout, in.Text, c.loc)
	if err != nil {
		// well-formed but not a calendar date, e.g. 31.02.2025
		resp.say(msgBadDateFormat, DateMenu())
		return nil
	}
	if date.After(today) {
		resp.say(msgFutureDate, DateMenu())
		return nil
	}

	c.selectDate(s, date, resp)
	return nil
}

func (c *Controller) openPicker(s *state.Session, month time.Month, year int, prompt string, resp *Response) {
	s.PickerMonth = int(month)
	s.PickerYear = year
	resp.say(prompt, DayPickerMenu(month, year))
}

func (c *Controller) pickDay(s *state.Session, day int, resp *Response) error {
	month := time.Month(s.PickerMonth)
	days := domain.DaysIn(s.PickerYear, month)

	if day < 1 || day > days {
		resp.say(fmt.Sprintf("❌ В этом месяце должно быть число от 1 до %d", days), DayPickerMenu(month, s.PickerYear))
		return nil
	}

	date := time.Date(s.PickerYear, month, day, 0, 0, 0, 0, c.loc)
	if date.After(c.today()) {
		resp.say(msgFutureDate, DayPickerMenu(month, s.PickerYear))
		return nil
	}

	c.selectDate(s, date, resp)
	return nil
}

// selectDate stores date and resumes the flow that asked for it.
func (c *Controller) selectDate(s *state.Session, date time.Time, resp *Response) {
	s.SelectedDate = domain.FormatDate(date)
	s.ClearDatePicker()

	source := s.DateSource
	s.DateSource = state.CategoryNone

	switch source {
	case state.CategoryShower:
		s.Category = state.CategoryShower
		s.State = state.ShowerWork
		resp.say(fmt.Sprintf("📅 Выбрана дата: %s. Теперь выбери вид душевой:", s.SelectedDate), WorkMenu(state.CategoryShower))
	case state.CategoryMirror:
		s.Category = state.CategoryMirror
		s.State = state.MirrorWork
		resp.say(fmt.Sprintf("📅 Выбрана дата: %s. Теперь выбери вид работы с зеркалом:", s.SelectedDate), WorkMenu(state.CategoryMirror))
	default:
		s.State = state.Root
		resp.say(fmt.Sprintf("📅 Выбрана дата: %s. Теперь выбери вид работы:", s.SelectedDate), MainMenu())
	}
}
