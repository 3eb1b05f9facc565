package store

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/worklog-bot/internal/database"
	"github.com/Proton-105/worklog-bot/internal/domain"
	apperrors "github.com/Proton-105/worklog-bot/internal/errors"
	"github.com/Proton-105/worklog-bot/internal/settingscache"
	"github.com/Proton-105/worklog-bot/pkg/config"
	"github.com/Proton-105/worklog-bot/pkg/redis"
)

type recordingInvalidator struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingInvalidator) Invalidate(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, userID)
}

func (r *recordingInvalidator) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, opts ...Option) Store {
	t.Helper()

	db, err := database.Open(context.Background(), config.DatabaseConfig{
		Driver: database.DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "worklog.db"),
	}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewSQLStore(db, database.DriverSQLite, testLogger(), opts...)
}

func entry(date, address string, works ...string) domain.WorkEntry {
	return domain.WorkEntry{Date: date, Address: address, Works: works}
}

func TestAddEntry_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	in := domain.WorkEntry{
		Date:    "15.01.2025",
		Address: "ул. Ленина 1",
		Works:   []string{"Душевая распашка", "Зеркало навес (x2)"},
		Comment: "без замечаний",
	}

	id, err := s.AddEntry(ctx, "42", in)
	require.NoError(t, err)
	assert.Positive(t, id)

	entries, err := s.GetEntries(ctx, "42", nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "42", got.UserID)
	assert.Equal(t, in.Date, got.Date)
	assert.Equal(t, in.Address, got.Address)
	assert.Equal(t, in.Works, got.Works)
	assert.Equal(t, in.Comment, got.Comment)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestAddEntry_Validation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tests := []struct {
		name  string
		entry domain.WorkEntry
	}{
		{name: "bad date", entry: entry("31.02.2025", "a", "w")},
		{name: "garbage date", entry: entry("yesterday", "a", "w")},
		{name: "no works", entry: entry("01.02.2025", "a")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddEntry(ctx, "1", tt.entry)
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.CodeValidation, appErr.Code)
		})
	}
}

func TestGetEntries_NewestFirstAndIsolatedPerUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AddEntry(ctx, "1", entry("10.01.2025", "a", "w1"))
	require.NoError(t, err)
	_, err = s.AddEntry(ctx, "1", entry("05.02.2025", "b", "w2"))
	require.NoError(t, err)
	_, err = s.AddEntry(ctx, "1", entry("31.12.2024", "c", "w3"))
	require.NoError(t, err)
	_, err = s.AddEntry(ctx, "2", entry("06.02.2025", "x", "foreign"))
	require.NoError(t, err)

	entries, err := s.GetEntries(ctx, "1", nil)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "05.02.2025", entries[0].Date)
	assert.Equal(t, "10.01.2025", entries[1].Date)
	assert.Equal(t, "31.12.2024", entries[2].Date)
}

func TestGetEntries_SameDateOrderedByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.AddEntry(ctx, "1", entry("10.01.2025", "a", "w1"))
	require.NoError(t, err)
	second, err := s.AddEntry(ctx, "1", entry("10.01.2025", "b", "w2"))
	require.NoError(t, err)

	entries, err := s.GetEntries(ctx, "1", nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second, entries[0].ID)
	assert.Equal(t, first, entries[1].ID)
}

func TestGetEntries_DateRange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, d := range []string{"31.12.2024", "01.01.2025", "15.01.2025", "31.01.2025", "01.02.2025"} {
		_, err := s.AddEntry(ctx, "1", entry(d, "a", "w"))
		require.NoError(t, err)
	}

	r := &domain.DateRange{
		From: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC),
	}
	entries, err := s.GetEntries(ctx, "1", r)
	require.NoError(t, err)

	var dates []string
	for _, e := range entries {
		dates = append(dates, e.Date)
	}
	assert.Equal(t, []string{"31.01.2025", "15.01.2025", "01.01.2025"}, dates)
}

func TestGetLastEntry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	last, err := s.GetLastEntry(ctx, "1")
	require.NoError(t, err)
	assert.Nil(t, last)

	_, err = s.AddEntry(ctx, "1", entry("20.01.2025", "a", "w1"))
	require.NoError(t, err)
	// an older date added later is still the last entry
	id, err := s.AddEntry(ctx, "1", entry("01.01.2025", "b", "w2"))
	require.NoError(t, err)

	last, err = s.GetLastEntry(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, id, last.ID)
}

func TestDeleteEntry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.AddEntry(ctx, "1", entry("20.01.2025", "a", "w1"))
	require.NoError(t, err)

	deleted, err := s.DeleteEntry(ctx, id, "2")
	require.NoError(t, err)
	assert.False(t, deleted, "foreign user must not delete")

	deleted, err = s.DeleteEntry(ctx, id, "1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteEntry(ctx, id, "1")
	require.NoError(t, err)
	assert.False(t, deleted, "second delete reports nothing removed")

	deleted, err = s.DeleteEntry(ctx, 9999, "1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestInvalidatorCalledOnWrites(t *testing.T) {
	ctx := context.Background()
	inv := &recordingInvalidator{}
	s := newTestStore(t, WithInvalidator(inv))

	id, err := s.AddEntry(ctx, "7", entry("20.01.2025", "a", "w1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, inv.Calls())

	_, err = s.DeleteEntry(ctx, id+100, "7")
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, inv.Calls(), "no-op delete does not invalidate")

	_, err = s.DeleteEntry(ctx, id, "7")
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "7"}, inv.Calls())
}

func TestSettings_DefaultsAndUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	got, err := s.GetSettings(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), got)

	custom := domain.UserSettings{
		RemindersEnabled: false,
		WorkDays:         []domain.Weekday{domain.Monday, domain.Saturday},
		VacationMode:     true,
	}
	require.NoError(t, s.SaveSettings(ctx, "1", custom))

	got, err = s.GetSettings(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, custom, got)

	custom.VacationMode = false
	require.NoError(t, s.SaveSettings(ctx, "1", custom))

	got, err = s.GetSettings(ctx, "1")
	require.NoError(t, err)
	assert.False(t, got.VacationMode)
	assert.Equal(t, custom.WorkDays, got.WorkDays)
}

func TestSettings_EmptyWorkDays(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveSettings(ctx, "1", domain.UserSettings{RemindersEnabled: true}))

	got, err := s.GetSettings(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, got.WorkDays)
	assert.False(t, got.IsWorkDay(domain.Monday))
}

func TestSettings_CacheIsReadThroughAndInvalidatedOnSave(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := settingscache.NewCache(redis.NewMetricsClient(&redis.Client{Client: client}), time.Hour)
	s := newTestStore(t, WithSettingsCache(cache))

	stored := domain.UserSettings{RemindersEnabled: true, WorkDays: []domain.Weekday{domain.Sunday}}
	require.NoError(t, s.SaveSettings(ctx, "5", stored))
	assert.False(t, mr.Exists("settings:5"))

	got, err := s.GetSettings(ctx, "5")
	require.NoError(t, err)
	assert.Equal(t, stored, got)
	assert.True(t, mr.Exists("settings:5"))

	require.NoError(t, s.SaveSettings(ctx, "5", domain.DefaultSettings()))
	assert.False(t, mr.Exists("settings:5"))

	got, err = s.GetSettings(ctx, "5")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), got)
}

func TestCreateBackup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateBackup(ctx, "empty"))
	backups, err := s.ListBackups(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, backups)

	_, err = s.AddEntry(ctx, "1", entry("20.01.2025", "a", "w1"))
	require.NoError(t, err)
	_, err = s.AddEntry(ctx, "1", entry("21.01.2025", "b", "w2", "w3"))
	require.NoError(t, err)

	require.NoError(t, s.CreateBackup(ctx, "1"))

	backups, err = s.ListBackups(ctx, "1")
	require.NoError(t, err)
	require.Len(t, backups, 1)

	var snapshot []domain.WorkEntry
	require.NoError(t, json.Unmarshal([]byte(backups[0].Payload), &snapshot))
	require.Len(t, snapshot, 2)
	assert.Equal(t, "21.01.2025", snapshot[0].Date)
	assert.Equal(t, []string{"w2", "w3"}, snapshot[0].Works)
}

func TestListUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	for _, u := range []string{"3", "1", "3", "2"} {
		_, err := s.AddEntry(ctx, u, entry("20.01.2025", "a", "w"))
		require.NoError(t, err)
	}

	users, err = s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, users)
}

func TestStorageErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()

	db, err := database.Open(ctx, config.DatabaseConfig{
		Driver: database.DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "closed.db"),
	}, testLogger())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s := NewSQLStore(db, database.DriverSQLite, testLogger())

	_, err = s.GetEntries(ctx, "1", nil)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeStorage, appErr.Code)
	assert.True(t, appErr.Retryable)

	settings, err := s.GetSettings(ctx, "1")
	require.Error(t, err)
	assert.Equal(t, domain.DefaultSettings(), settings)
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{postgres: true}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &SQLStore{}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddEntry(ctx, "1", entry("20.01.2025", "a", "w"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entries, err := s.GetEntries(ctx, "1", nil)
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}
