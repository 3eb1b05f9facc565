package domain

import (
	"sort"
	"time"
)

// BackupRecord is a point-in-time JSON snapshot of a user's entries.
type BackupRecord struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkCount pairs a work description with how often it occurred.
type WorkCount struct {
	Work  string `json:"work"`
	Count int    `json:"count"`
}

// StatsSnapshot is the derived monthly summary served by the stats cache.
type StatsSnapshot struct {
	TotalGroups int            `json:"total_groups"`
	TotalWorks  int            `json:"total_works"`
	Categories  map[string]int `json:"categories"`
	Works       map[string]int `json:"works"`
	Month       time.Month     `json:"month"`
	Year        int            `json:"year"`
	ComputedAt  time.Time      `json:"computed_at"`
}

// TopWorks returns at most n works ordered by count and then by name.
func (s *StatsSnapshot) TopWorks(n int) []WorkCount {
	top := make([]WorkCount, 0, len(s.Works))
	for w, c := range s.Works {
		top = append(top, WorkCount{Work: w, Count: c})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Work < top[j].Work
	})
	if n >= 0 && len(top) > n {
		top = top[:n]
	}
	return top
}
