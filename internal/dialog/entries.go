package dialog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Proton-105/worklog-bot/internal/domain"
	"github.com/Proton-105/worklog-bot/internal/state"
)

const (
	msgNoEntries        = "📭 Нет сохраненных записей"
	msgNothingToDelete  = "❌ Нет записей для удаления"
	msgAskEntryNumber   = "Введи номер записи для удаления (или 'Отмена'):"
	msgBadEntryNumber   = "❌ Неверный номер записи (введи число)"
	msgDeleteCancelled  = "❌ Удаление отменено"
	msgDeleteAborted    = "Отмена удаления"
	msgDeletedLast      = "✅ Последняя запись успешно удалена!"
	msgDeletedEntry     = "✅ Запись успешно удалена!"
	msgAlreadyDeleted   = "❌ Запись уже удалена"
	msgNoPendingDelete  = "❌ Не найдена запись для удаления"
	affirmativeFragment = "да, удалить"
)

func (c *Controller) viewEntries(ctx context.Context, s *state.Session, resp *Response) error {
	entries, err := c.store.GetEntries(ctx, s.UserID, nil)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		resp.say(msgNoEntries, MainMenu())
		return nil
	}

	s.ViewingSnapshot = entries
	s.State = state.ViewingEntries
	resp.say(formatEntryList(entries), ViewEntriesMenu())
	return nil
}

func (c *Controller) handleViewingEntries(_ context.Context, s *state.Session, in Input, resp *Response) error {
	switch {
	case is(in.Text, LabelBack):
		toMain(s, resp, msgMainMenu)
	case is(in.Text, LabelDeleteEntry):
		s.State = state.DeletingEntry
		resp.say(msgAskEntryNumber, CancelMenu(true))
	default:
		resp.say(msgUseButtons, ViewEntriesMenu())
	}
	return nil
}

// handleDeletingEntry resolves a 1-based number against the snapshot taken when the list was shown.
func (c *Controller) handleDeletingEntry(_ context.Context, s *state.Session, in Input, resp *Response) error {
	if is(in.Text, LabelCancel) || is(in.Text, LabelBack) {
		s.State = state.ViewingEntries
		resp.say(msgDeleteAborted, ViewEntriesMenu())
		return nil
	}

	n, err := strconv.Atoi(in.Text)
	if err != nil || n < 1 || n > len(s.ViewingSnapshot) {
		resp.say(msgBadEntryNumber, CancelMenu(true))
		return nil
	}

	entry := s.ViewingSnapshot[n-1]
	id := entry.ID
	s.PendingDeleteID = &id
	s.State = state.ConfirmDeleteEntry
	resp.say("🗑️ Вы уверены, что хотите удалить эту запись?\n\n"+formatEntryDetails(entry), ConfirmMenu())
	return nil
}

func (c *Controller) askDeleteLast(ctx context.Context, s *state.Session, resp *Response) error {
	last, err := c.store.GetLastEntry(ctx, s.UserID)
	if err != nil {
		return err
	}

	if last == nil {
		resp.say(msgNothingToDelete, MainMenu())
		return nil
	}

	id := last.ID
	s.PendingDeleteID = &id
	s.State = state.ConfirmDeleteLast
	resp.say("🗑️ Вы уверены, что хотите удалить последнюю запись?\n\n"+formatEntryDetails(*last), ConfirmMenu())
	return nil
}

func (c *Controller) handleConfirmDeleteLast(ctx context.Context, s *state.Session, in Input, resp *Response) error {
	return c.confirmDelete(ctx, s, in, resp, msgDeletedLast)
}

func (c *Controller) handleConfirmDeleteEntry(ctx context.Context, s *state.Session, in Input, resp *Response) error {
	return c.confirmDelete(ctx, s, in, resp, msgDeletedEntry)
}

// confirmDelete deletes the pending entry on an affirmative answer. Anything else cancels.
func (c *Controller) confirmDelete(ctx context.Context, s *state.Session, in Input, resp *Response, success string) error {
	if !strings.Contains(strings.ToLower(in.Text), affirmativeFragment) {
		toMain(s, resp, msgDeleteCancelled)
		return nil
	}

	if s.PendingDeleteID == nil {
		toMain(s, resp, msgNoPendingDelete)
		return nil
	}

	deleted, err := c.store.DeleteEntry(ctx, *s.PendingDeleteID, s.UserID)
	if err != nil {
		return err
	}

	if !deleted {
		toMain(s, resp, msgAlreadyDeleted)
		return nil
	}

	toMain(s, resp, success)
	return nil
}

func formatEntryList(entries []domain.WorkEntry) string {
	var b strings.Builder
	b.WriteString("📋 Список всех работ:\n\n")

	for i, e := range entries {
		fmt.Fprintf(&b, "%d. 📅 %s\n", i+1, e.Date)
		fmt.Fprintf(&b, "   📍 Адрес: %s\n", orDefault(e.Address, notSpecified))
		fmt.Fprintf(&b, "   💬 Комментарий: %s\n", orDefault(e.Comment, noComment))
		b.WriteString("   🔧 Работы:\n")
		for j, w := range e.Works {
			fmt.Fprintf(&b, "      %d. %s\n", j+1, w)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func formatEntryDetails(e domain.WorkEntry) string {
	return fmt.Sprintf("Дата: %s\nАдрес: %s\nКомментарий: %s\nРаботы:\n%s",
		e.Date, orDefault(e.Address, notSpecified), orDefault(e.Comment, noComment), bulletList(e.Works))
}
