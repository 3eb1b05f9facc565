package dialog

import (
	"strconv"
	"time"

	"github.com/Proton-105/worklog-bot/internal/domain"
	"github.com/Proton-105/worklog-bot/internal/state"
)

// Button labels shown on reply keyboards. Matching against user text is case-insensitive.
const (
	LabelShower     = "Душевые"
	LabelMirror     = "Зеркала"
	LabelOther      = "Другая работа"
	LabelReport     = "Выгрузить отчет"
	LabelDeleteLast = "Удалить последнюю"
	LabelViewWorks  = "Просмотреть работы"
	LabelStats      = "Статистика"
	LabelSettings   = "⚙️ Настройки"
	LabelPastDate   = "Добавить за прошлую дату"

	LabelBack   = "Назад"
	LabelSkip   = "Пропустить"
	LabelCancel = "Отмена"

	LabelManualInput = "Ввести работу вручную"
	LabelAwning      = "Навес"

	LabelToday          = "Сегодня"
	LabelYesterday      = "Вчера"
	LabelDayBefore      = "Позавчера"
	LabelCurrentMonth   = "Текущий месяц"
	LabelPreviousMonth  = "Предыдущий месяц"
	LabelAddMoreWork    = "Добавить еще работу"
	LabelFinish         = "Завершить"
	LabelDeleteEntry    = "Удалить запись"
	LabelConfirmDelete  = "✅ Да, удалить"
	LabelDeclineDelete  = "❌ Нет, отменить"
	LabelToggleReminder = "⏰ Напоминания Вкл/Выкл"
	LabelWorkDays       = "📅 Рабочие дни"
	LabelVacation       = "🏖 Режим отпуска"
	LabelDone           = "Готово"

	workDayOn  = "✅"
	workDayOff = "❌"
)

var (
	showerWorks = []string{
		"Угловая распашка", "Прямая распашка", "Угловая откадка",
		"Шторка на ванную", "Фикс на ванную", "Фикс в душ",
		"Фикс до потолка", "Трапеция", "Полутрапеция",
	}
	mirrorWorks = []string{
		"Обычное с подсветкой", "Большое с подсветкой",
		"В сборной раме", "Зеркало клей", LabelAwning,
	}
	additionalServices = []string{"1 полочка", "2 полочки", "3 полочки", "Гидрофобное"}
	mirrorQuantities   = []string{"1", "2", "3", "4", "5", "6"}
)

// Menu is a reply keyboard description: rows of button labels.
type Menu struct {
	Rows    [][]string
	OneTime bool
}

// Labels flattens the menu in row order.
func (m *Menu) Labels() []string {
	if m == nil {
		return nil
	}

	var out []string
	for _, row := range m.Rows {
		out = append(out, row...)
	}
	return out
}

// grid lays buttons out width per row and optionally appends a back row.
func grid(buttons []string, width int, withBack bool) *Menu {
	m := &Menu{OneTime: true}
	for i := 0; i < len(buttons); i += width {
		end := i + width
		if end > len(buttons) {
			end = len(buttons)
		}
		m.Rows = append(m.Rows, append([]string(nil), buttons[i:end]...))
	}
	if withBack {
		m.Rows = append(m.Rows, []string{LabelBack})
	}
	return m
}

func MainMenu() *Menu {
	return grid([]string{
		LabelShower, LabelMirror, LabelOther,
		LabelReport, LabelDeleteLast, LabelViewWorks,
		LabelStats, LabelSettings,
	}, 3, false)
}

// WorkMenu lists the work types of a category followed by the past-date shortcut.
func WorkMenu(category state.Category) *Menu {
	var buttons []string
	switch category {
	case state.CategoryShower:
		buttons = append(buttons, showerWorks...)
	case state.CategoryMirror:
		buttons = append(buttons, mirrorWorks...)
	default:
		buttons = append(buttons, LabelManualInput)
	}
	buttons = append(buttons, LabelPastDate)

	return grid(buttons, 2, true)
}

func AdditionalServicesMenu() *Menu {
	return grid(append(append([]string(nil), additionalServices...), LabelSkip), 2, true)
}

func MirrorQuantityMenu() *Menu {
	return grid(append(append([]string(nil), mirrorQuantities...), LabelSkip), 3, true)
}

func DateMenu() *Menu {
	return grid([]string{
		LabelToday, LabelYesterday, LabelDayBefore,
		LabelCurrentMonth, LabelPreviousMonth, LabelCancel,
	}, 2, false)
}

// DayPickerMenu shows every day of the month, seven per row.
func DayPickerMenu(month time.Month, year int) *Menu {
	days := domain.DaysIn(year, month)
	buttons := make([]string, 0, days)
	for d := 1; d <= days; d++ {
		buttons = append(buttons, strconv.Itoa(d))
	}

	m := grid(buttons, 7, true)
	m.OneTime = false
	return m
}

func SkipMenu() *Menu {
	return grid([]string{LabelSkip}, 1, false)
}

func CancelMenu(withBack bool) *Menu {
	return grid([]string{LabelCancel}, 1, withBack)
}

func AddMoreMenu() *Menu {
	return grid([]string{LabelAddMoreWork, LabelFinish}, 1, false)
}

func ViewEntriesMenu() *Menu {
	return grid([]string{LabelDeleteEntry, LabelBack}, 2, false)
}

func ConfirmMenu() *Menu {
	return grid([]string{LabelConfirmDelete, LabelDeclineDelete}, 2, false)
}

func SettingsMenu() *Menu {
	return grid([]string{LabelToggleReminder, LabelWorkDays, LabelVacation, LabelBack}, 2, false)
}

// WorkDaysMenu marks each weekday on or off, three per row, then "Готово".
func WorkDaysMenu(days []domain.Weekday) *Menu {
	set := make(map[domain.Weekday]bool, len(days))
	for _, d := range days {
		set[d] = true
	}

	buttons := make([]string, 0, 7)
	for d := domain.Monday; d <= domain.Sunday; d++ {
		prefix := workDayOff
		if set[d] {
			prefix = workDayOn
		}
		buttons = append(buttons, prefix+" "+d.ShortName())
	}

	m := grid(buttons, 3, false)
	m.Rows = append(m.Rows, []string{LabelDone})
	m.OneTime = false
	return m
}
