package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Proton-105/worklog-bot/internal/domain"
	apperrors "github.com/Proton-105/worklog-bot/internal/errors"
	"github.com/Proton-105/worklog-bot/internal/state"
)

const (
	msgWorkAdded       = "✅ Работа добавлена в группу!\n\nДобавить еще работу?"
	msgAskAddress      = "📬 Введи адрес (или 'Пропустить'):"
	msgAskComment      = "💬 Введи комментарий (или 'Пропустить'):"
	msgPickDate        = "Выбери дату:"
	msgPickCategory    = "Сначала выбери категорию работы"
	msgAskService      = "Добавить доп.услугу?"
	msgAskQuantity     = "Укажи количество:"
	msgAskManual       = "Введи название работы:"
	msgEnterNumber     = "❌ Введи число!"
	msgNextCategory    = "Выбери категорию для следующей работы:"
	msgSaveFailed      = "❌ Ошибка при сохранении группы работ. Нажми «Завершить», чтобы попробовать еще раз"
	msgNothingToSave   = "❌ Нет работ для сохранения"
	msgPickWorkType    = "Выбери вид работы:"
	msgPickAction      = "Выбери действие:"
	msgPickWorkFirst   = "Сначала выбери вид работы"
	awningWork         = "Зеркало навес"
	mirrorPrefix       = "Зеркало "
	notSpecified       = "не указан"
	noComment          = "нет"
	manualCancelPrompt = "Отмена"
)

var categoryTitles = map[state.Category]string{
	state.CategoryShower: "душевые",
	state.CategoryMirror: "зеркала",
	state.CategoryOther:  "другая работа",
}

func categoryState(c state.Category) state.State {
	switch c {
	case state.CategoryShower:
		return state.ShowerWork
	case state.CategoryMirror:
		return state.MirrorWork
	default:
		return state.OtherWork
	}
}

// handleSelectingWork dispatches the main menu.
func (c *Controller) handleSelectingWork(ctx context.Context, s *state.Session, in Input, resp *Response) error {
	switch act := matchMainMenu(in.Text); act {
	case actionShower:
		return c.openCategory(s, state.CategoryShower, resp)
	case actionMirror:
		return c.openCategory(s, state.CategoryMirror, resp)
	case actionOther:
		return c.openCategory(s, state.CategoryOther, resp)
	case actionReport:
		return c.exportReport(ctx, s, in, resp)
	case actionDeleteLast:
		return c.askDeleteLast(ctx, s, resp)
	case actionViewWorks:
		return c.viewEntries(ctx, s, resp)
	case actionStats:
		return c.showStats(ctx, s, resp)
	case actionSettings:
		return c.openSettings(ctx, s, resp)
	case actionPastDate:
		if s.Category == state.CategoryNone {
			c.log.Warn("past date requested without category", slog.Int64("chat_id", s.ChatID))
			resp.say(msgPickCategory, MainMenu())
			return nil
		}
		c.askDate(s, s.Category, resp)
		return nil
	default:
		resp.say(msgUseMenu, MainMenu())
		return nil
	}
}

func (c *Controller) openCategory(s *state.Session, category state.Category, resp *Response) error {
	s.Category = category
	s.ClearWorkScratch()
	s.State = categoryState(category)
	resp.say(fmt.Sprintf("Выбери вид работы (%s):", categoryTitles[category]), WorkMenu(category))
	return nil
}

func (c *Controller) askDate(s *state.Session, source state.Category, resp *Response) {
	s.DateSource = source
	s.ClearDatePicker()
	s.State = state.SelectingDate
	resp.say(msgPickDate, DateMenu())
}

// workStateCommon handles the tokens shared by the three work pickers. It reports whether
// the input was consumed.
func (c *Controller) workStateCommon(s *state.Session, in Input, resp *Response) bool {
	switch {
	case is(in.Text, LabelBack):
		s.ClearWorkScratch()
		s.State = state.Root
		resp.say(msgPickCat, MainMenu())
		return true
	case is(in.Text, LabelPastDate):
		source := s.Category
		if source == state.CategoryNone {
			source = state.CategoryOther
		}
		c.askDate(s, source, resp)
		return true
	}
	return false
}

func (c *Controller) handleShowerWork(_ context.Context, s *state.Session, in Input, resp *Response) error {
	if c.workStateCommon(s, in, resp) {
		return nil
	}

	label, ok := oneOf(in.Text, showerWorks)
	if !ok {
		resp.say(msgUseMenu, WorkMenu(state.CategoryShower))
		return nil
	}

	s.Category = state.CategoryShower
	s.ShowerWork = label
	s.State = state.AdditionalServices
	resp.say(msgAskService, AdditionalServicesMenu())
	return nil
}

func (c *Controller) handleMirrorWork(_ context.Context, s *state.Session, in Input, resp *Response) error {
	if c.workStateCommon(s, in, resp) {
		return nil
	}

	label, ok := oneOf(in.Text, mirrorWorks)
	if !ok {
		resp.say(msgUseMenu, WorkMenu(state.CategoryMirror))
		return nil
	}

	s.Category = state.CategoryMirror
	s.MirrorWorkBase = mirrorWorkName(label)
	s.State = state.MirrorQuantity
	resp.say(msgAskQuantity, MirrorQuantityMenu())
	return nil
}

// mirrorWorkName builds the stored description for a mirror label.
func mirrorWorkName(label string) string {
	if is(label, LabelAwning) {
		return awningWork
	}
	if strings.HasPrefix(label, mirrorPrefix) {
		return label
	}
	return mirrorPrefix + label
}

func (c *Controller) handleOtherWork(_ context.Context, s *state.Session, in Input, resp *Response) error {
	if c.workStateCommon(s, in, resp) {
		return nil
	}
	s.Category = state.CategoryOther

	if s.ManualInput {
		if is(in.Text, manualCancelPrompt) {
			s.ManualInput = false
			resp.say(msgPickAction, WorkMenu(state.CategoryOther))
			return nil
		}
		if in.Text == "" {
			resp.say(msgAskManual, CancelMenu(false))
			return nil
		}
		return c.appendWork(s, in.Text, resp)
	}

	if is(in.Text, LabelManualInput) {
		s.ManualInput = true
		resp.say(msgAskManual, CancelMenu(false))
		return nil
	}

	resp.say(msgUseMenu, WorkMenu(state.CategoryOther))
	return nil
}

func (c *Controller) handleAdditionalServices(_ context.Context, s *state.Session, in Input, resp *Response) error {
	if is(in.Text, LabelBack) {
		s.State = state.ShowerWork
		resp.say(msgPickWorkType, WorkMenu(state.CategoryShower))
		return nil
	}

	if s.ShowerWork == "" {
		c.log.Warn("additional service without shower work", slog.Int64("chat_id", s.ChatID))
		s.State = state.ShowerWork
		resp.say(msgPickWorkFirst, WorkMenu(state.CategoryShower))
		return nil
	}

	work := s.ShowerWork
	if !is(in.Text, LabelSkip) {
		service, ok := oneOf(in.Text, additionalServices)
		if !ok {
			resp.say(msgUseMenu, AdditionalServicesMenu())
			return nil
		}
		work += ", " + service
	}

	return c.appendWork(s, work, resp)
}

func (c *Controller) handleMirrorQuantity(_ context.Context, s *state.Session, in Input, resp *Response) error {
	if is(in.Text, LabelBack) {
		s.State = state.MirrorWork
		resp.say("Выбери вид работы с зеркалом:", WorkMenu(state.CategoryMirror))
		return nil
	}

	if s.MirrorWorkBase == "" {
		c.log.Warn("mirror quantity without mirror work", slog.Int64("chat_id", s.ChatID))
		s.State = state.MirrorWork
		resp.say(msgPickWorkFirst, WorkMenu(state.CategoryMirror))
		return nil
	}

	work := s.MirrorWorkBase
	if !is(in.Text, LabelSkip) {
		n, err := strconv.Atoi(in.Text)
		if err != nil || n < 1 {
			resp.say(msgEnterNumber, MirrorQuantityMenu())
			return nil
		}
		work = fmt.Sprintf("%s (x%d)", work, n)
	}

	return c.appendWork(s, work, resp)
}

// appendWork adds a finished description to the draft group. The first work of a group
// asks for the address; later ones go straight to the add-more choice.
func (c *Controller) appendWork(s *state.Session, work string, resp *Response) error {
	s.Works = append(s.Works, work)
	s.ClearWorkScratch()

	if len(s.Works) == 1 {
		s.State = state.AddAddress
		resp.say(msgAskAddress, SkipMenu())
		return nil
	}

	s.State = state.AddMoreWork
	resp.say(msgWorkAdded, AddMoreMenu())
	return nil
}

func (c *Controller) handleAddress(_ context.Context, s *state.Session, in Input, resp *Response) error {
	address := optionalText(in.Text)
	s.Address = &address
	s.State = state.AddComment
	resp.say(msgAskComment, SkipMenu())
	return nil
}

func (c *Controller) handleComment(_ context.Context, s *state.Session, in Input, resp *Response) error {
	comment := optionalText(in.Text)
	s.Comment = &comment
	s.State = state.AddMoreWork

	last := ""
	if len(s.Works) > 0 {
		last = s.Works[len(s.Works)-1]
	}

	resp.say(fmt.Sprintf("✅ Работа добавлена!\nДата: %s\nАдрес: %s\nРабота: %s\nКомментарий: %s\n\nДобавить еще работу?",
		c.entryDate(s), orDefault(deref(s.Address), notSpecified), last, orDefault(comment, noComment)), AddMoreMenu())
	return nil
}

func (c *Controller) handleAddMore(ctx context.Context, s *state.Session, in Input, resp *Response) error {
	switch {
	case is(in.Text, LabelFinish):
		return c.finalize(ctx, s, resp)
	case is(in.Text, LabelAddMoreWork):
		s.ClearWorkScratch()
		s.State = state.Root
		resp.say(msgNextCategory, MainMenu())
		return nil
	default:
		resp.say(msgPickAction, AddMoreMenu())
		return nil
	}
}

// finalize persists the draft group. On failure the draft stays in the session so the
// user can retry with "Завершить".
func (c *Controller) finalize(ctx context.Context, s *state.Session, resp *Response) error {
	if len(s.Works) == 0 {
		c.log.Warn("finalize with empty draft", slog.Int64("chat_id", s.ChatID))
		s.Reset()
		resp.say(msgNothingToSave, MainMenu())
		return nil
	}

	entry := domain.WorkEntry{
		UserID:  s.UserID,
		Date:    c.entryDate(s),
		Address: deref(s.Address),
		Works:   append([]string(nil), s.Works...),
		Comment: deref(s.Comment),
	}

	err := apperrors.WithRetryPolicy(ctx, c.retry, func() error {
		_, addErr := c.store.AddEntry(ctx, s.UserID, entry)
		return addErr
	})
	if err != nil {
		c.errs.Handle(ctx, err)
		s.State = state.AddMoreWork
		resp.say(msgSaveFailed, AddMoreMenu())
		return nil
	}

	s.Reset()
	resp.say(fmt.Sprintf("✅ Группа работ сохранена!\nДата: %s\nАдрес: %s\nКомментарий: %s\nРаботы:\n%s",
		entry.Date, orDefault(entry.Address, notSpecified), orDefault(entry.Comment, noComment), bulletList(entry.Works)), MainMenu())
	return nil
}

// entryDate is the selected date or today in the configured timezone.
func (c *Controller) entryDate(s *state.Session) string {
	if s.SelectedDate != "" {
		return s.SelectedDate
	}
	return domain.FormatDate(c.today())
}

// optionalText maps the skip token to an empty value.
func optionalText(text string) string {
	if is(text, LabelSkip) {
		return ""
	}
	return strings.TrimSpace(text)
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "- " + it
	}
	return strings.Join(lines, "\n")
}
