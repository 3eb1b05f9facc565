package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Proton-105/worklog-bot/internal/domain"
)

const (
	CategoryShower = "Душевые"
	CategoryMirror = "Зеркала"
	CategoryOther  = "Другие работы"

	topWorksLimit = 5
)

var showerKeywords = []string{"душ", "распашка", "фикс"}

// EntryReader is the slice of the entry store the calculator needs.
type EntryReader interface {
	GetEntries(ctx context.Context, userID string, dateRange *domain.DateRange) ([]domain.WorkEntry, error)
}

// Calculator aggregates the current calendar month of a user's entries.
type Calculator struct {
	entries EntryReader
	loc     *time.Location
	clock   clockwork.Clock
}

func NewCalculator(entries EntryReader, loc *time.Location, clock clockwork.Clock) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Calculator{entries: entries, loc: loc, clock: clock}
}

// Compute matches ComputeFunc.
func (c *Calculator) Compute(ctx context.Context, userID string) (*domain.StatsSnapshot, error) {
	now := c.clock.Now().In(c.loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, c.loc)

	entries, err := c.entries.GetEntries(ctx, userID, &domain.DateRange{From: monthStart, To: now})
	if err != nil {
		return nil, fmt.Errorf("load month entries: %w", err)
	}

	snapshot := Aggregate(entries)
	snapshot.Month = now.Month()
	snapshot.Year = now.Year()
	snapshot.ComputedAt = c.clock.Now()

	return snapshot, nil
}

// Aggregate counts groups, works and categories, keeping the full per-work tally.
func Aggregate(entries []domain.WorkEntry) *domain.StatsSnapshot {
	snapshot := &domain.StatsSnapshot{
		Categories: make(map[string]int),
		Works:      make(map[string]int),
	}

	for _, e := range entries {
		snapshot.TotalGroups++
		snapshot.TotalWorks += len(e.Works)

		for _, w := range e.Works {
			snapshot.Works[w]++
			snapshot.Categories[Categorize(w)]++
		}
	}

	return snapshot
}

// Categorize maps a work description to its statistics category.
func Categorize(work string) string {
	lower := strings.ToLower(work)
	for _, kw := range showerKeywords {
		if strings.Contains(lower, kw) {
			return CategoryShower
		}
	}
	if strings.Contains(lower, "зеркал") {
		return CategoryMirror
	}
	return CategoryOther
}

// Format renders a snapshot for chat. Categories are listed in a fixed order.
func Format(s *domain.StatsSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 Статистика за %s:\n", domain.MonthName(s.Month))
	fmt.Fprintf(&b, "• Групп работ: %d\n", s.TotalGroups)
	fmt.Fprintf(&b, "• Всего работ: %d\n\n", s.TotalWorks)

	b.WriteString("📋 По категориям:\n")
	for _, category := range []string{CategoryShower, CategoryMirror, CategoryOther} {
		if n := s.Categories[category]; n > 0 {
			fmt.Fprintf(&b, "  - %s: %d\n", category, n)
		}
	}

	b.WriteString("\n🏆 Топ работ:\n")
	for i, w := range s.TopWorks(topWorksLimit) {
		fmt.Fprintf(&b, "  %d. %s: %d\n", i+1, w.Work, w.Count)
	}

	return strings.TrimRight(b.String(), "\n")
}
