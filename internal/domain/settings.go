package domain

import (
	"sort"
	"time"
)

// Weekday indexes days Monday=0 .. Sunday=6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// WeekdayOf converts a time.Weekday (Sunday=0) into the Monday=0 convention.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

// UserSettings are per-user reminder preferences.
type UserSettings struct {
	RemindersEnabled bool      `json:"reminders_enabled"`
	WorkDays         []Weekday `json:"work_days"`
	VacationMode     bool      `json:"vacation_mode"`
}

// DefaultSettings returns the settings every user starts with.
func DefaultSettings() UserSettings {
	return UserSettings{
		RemindersEnabled: true,
		WorkDays:         []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday},
		VacationMode:     false,
	}
}

// IsWorkDay reports whether day is among the configured work days.
func (s UserSettings) IsWorkDay(day Weekday) bool {
	for _, d := range s.WorkDays {
		if d == day {
			return true
		}
	}
	return false
}

// ToggleWorkDay adds day if absent, removes it otherwise. The result stays sorted.
func (s *UserSettings) ToggleWorkDay(day Weekday) {
	s.WorkDays = ToggleDay(s.WorkDays, day)
}

// ToggleDay returns a sorted copy of days with day toggled.
func ToggleDay(days []Weekday, day Weekday) []Weekday {
	out := make([]Weekday, 0, len(days)+1)
	found := false
	for _, d := range days {
		if d == day {
			found = true
			continue
		}
		out = append(out, d)
	}
	if !found {
		out = append(out, day)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var weekdayShortNames = [...]string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}

// ShortName returns the two-letter Russian abbreviation ("Пн".."Вс").
func (d Weekday) ShortName() string {
	if d < Monday || d > Sunday {
		return ""
	}
	return weekdayShortNames[d]
}

// ParseWeekday resolves a short name back to a Weekday.
func ParseWeekday(name string) (Weekday, bool) {
	for i, n := range weekdayShortNames {
		if n == name {
			return Weekday(i), true
		}
	}
	return 0, false
}
