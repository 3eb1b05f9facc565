// Package store persists work entries, user settings and backups in a relational database.
package store

import (
	"context"

	"github.com/Proton-105/worklog-bot/internal/domain"
)

// Store is the entry store contract. Failures come back as *errors.AppError storage errors;
// driver errors never leak to callers.
type Store interface {
	// AddEntry persists a work group and returns its id.
	AddEntry(ctx context.Context, userID string, entry domain.WorkEntry) (int64, error)
	// GetEntries returns the user's entries newest first, optionally limited to a date range.
	GetEntries(ctx context.Context, userID string, dateRange *domain.DateRange) ([]domain.WorkEntry, error)
	// GetLastEntry returns the most recently created entry or nil.
	GetLastEntry(ctx context.Context, userID string) (*domain.WorkEntry, error)
	// DeleteEntry removes the entry only if it belongs to userID. It reports whether a row was removed.
	DeleteEntry(ctx context.Context, entryID int64, userID string) (bool, error)
	// GetSettings returns stored settings or defaults. On failure defaults are returned with the error.
	GetSettings(ctx context.Context, userID string) (domain.UserSettings, error)
	SaveSettings(ctx context.Context, userID string, settings domain.UserSettings) error
	// CreateBackup snapshots all of the user's entries. Users without entries are skipped.
	CreateBackup(ctx context.Context, userID string) error
	ListBackups(ctx context.Context, userID string) ([]domain.BackupRecord, error)
	// ListUsers returns every user that has at least one entry.
	ListUsers(ctx context.Context) ([]string, error)
}

// Invalidator drops derived per-user data after a write. The stats cache implements it.
type Invalidator interface {
	Invalidate(userID string)
}

// SettingsCache is an optional read-through cache for settings.
type SettingsCache interface {
	Get(ctx context.Context, userID string) (*domain.UserSettings, error)
	Set(ctx context.Context, userID string, settings domain.UserSettings) error
	Invalidate(ctx context.Context, userID string) error
}
