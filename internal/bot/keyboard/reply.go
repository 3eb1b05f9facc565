// Package keyboard renders dialog menus as Telegram reply keyboards.
package keyboard

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/worklog-bot/internal/dialog"
)

// Reply builds a resized reply keyboard for menu. A nil menu yields nil, which leaves the
// keyboard the user already has.
func Reply(menu *dialog.Menu) *telebot.ReplyMarkup {
	if menu == nil {
		return nil
	}

	markup := &telebot.ReplyMarkup{
		ResizeKeyboard:  true,
		OneTimeKeyboard: menu.OneTime,
	}

	rows := make([]telebot.Row, 0, len(menu.Rows))
	for _, labels := range menu.Rows {
		if len(labels) == 0 {
			continue
		}
		buttons := make([]telebot.Btn, 0, len(labels))
		for _, label := range labels {
			buttons = append(buttons, markup.Text(label))
		}
		rows = append(rows, markup.Row(buttons...))
	}
	markup.Reply(rows...)

	return markup
}
