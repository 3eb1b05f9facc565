package dialog

import "strings"

type action int

const (
	actionNone action = iota
	actionShower
	actionMirror
	actionOther
	actionReport
	actionDeleteLast
	actionViewWorks
	actionStats
	actionSettings
	actionPastDate
)

var actionNames = map[action]string{
	actionShower:     "shower",
	actionMirror:     "mirror",
	actionOther:      "other",
	actionReport:     "report",
	actionDeleteLast: "delete_last",
	actionViewWorks:  "view_works",
	actionStats:      "stats",
	actionSettings:   "settings",
	actionPastDate:   "past_date",
}

func (a action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "none"
}

type matcher struct {
	phrase string
	action action
}

// mainMenuTable is evaluated top to bottom; the first phrase contained in the input wins.
var mainMenuTable = []matcher{
	{phrase: "душевые", action: actionShower},
	{phrase: "зеркала", action: actionMirror},
	{phrase: "другая работа", action: actionOther},
	{phrase: "выгрузить отчет", action: actionReport},
	{phrase: "удалить последнюю", action: actionDeleteLast},
	{phrase: "просмотреть работы", action: actionViewWorks},
	{phrase: "статистика", action: actionStats},
	{phrase: "настройки", action: actionSettings},
	{phrase: "добавить за прошлую дату", action: actionPastDate},
}

// matchMainMenu resolves free text against mainMenuTable.
func matchMainMenu(text string) action {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return actionNone
	}

	for _, m := range mainMenuTable {
		if strings.Contains(lower, m.phrase) {
			return m.action
		}
	}
	return actionNone
}

// is compares user text with a label ignoring case and surrounding spaces.
func is(text, label string) bool {
	return strings.EqualFold(strings.TrimSpace(text), label)
}

// oneOf returns the label from labels matching text, preserving the label's spelling.
func oneOf(text string, labels []string) (string, bool) {
	for _, l := range labels {
		if is(text, l) {
			return l, true
		}
	}
	return "", false
}
