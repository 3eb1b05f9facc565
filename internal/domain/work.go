// Package domain holds the work log entities shared by the store, dialog and background jobs.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the user-facing date format (DD.MM.YYYY).
const DateLayout = "02.01.2006"

// ISODateLayout is the storage format used for range queries and ordering.
const ISODateLayout = "2006-01-02"

// WorkEntry is one persisted work group.
type WorkEntry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Date      string    `json:"date"`
	Address   string    `json:"address"`
	Works     []string  `json:"works"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// WorksText joins works the way they are shown to users and exported.
func (e WorkEntry) WorksText() string {
	return strings.Join(e.Works, ", ")
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether the calendar day of t lies within the range.
func (r DateRange) Contains(t time.Time) bool {
	day := t.Format(ISODateLayout)
	return day >= r.From.Format(ISODateLayout) && day <= r.To.Format(ISODateLayout)
}

// ParseDate parses a DD.MM.YYYY string in loc. Out-of-range days (e.g. 31.02) are rejected.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}

	return t, nil
}

// FormatDate renders t as DD.MM.YYYY.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ToISODate converts DD.MM.YYYY into YYYY-MM-DD.
func ToISODate(value string) (string, error) {
	t, err := ParseDate(value, time.UTC)
	if err != nil {
		return "", err
	}

	return t.Format(ISODateLayout), nil
}

// DaysIn returns the number of days in the given month (proleptic Gregorian).
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

var monthsGenitive = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

var monthsNominative = [...]string{
	"январь", "февраль", "март", "апрель", "май", "июнь",
	"июль", "август", "сентябрь", "октябрь", "ноябрь", "декабрь",
}

// MonthGenitive returns the Russian month name as used after "за" ("за января").
func MonthGenitive(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthsGenitive[m-1]
}

// MonthName returns the nominative Russian month name.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthsNominative[m-1]
}
