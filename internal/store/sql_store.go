package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Proton-105/worklog-bot/internal/domain"
	errors "github.com/Proton-105/worklog-bot/internal/errors"
)

// SQLStore implements Store on database/sql for sqlite and postgres.
// Writes are serialized by a store-wide mutex; reads run concurrently.
type SQLStore struct {
	db       *sql.DB
	postgres bool
	log      *slog.Logger
	clock    clockwork.Clock

	invalidator Invalidator
	settings    SettingsCache

	writeMu sync.Mutex
}

var _ Store = (*SQLStore)(nil)

type Option func(*SQLStore)

// WithInvalidator registers the hook called after every entry write.
func WithInvalidator(inv Invalidator) Option {
	return func(s *SQLStore) { s.invalidator = inv }
}

func WithSettingsCache(cache SettingsCache) Option {
	return func(s *SQLStore) {
		if cache != nil {
			s.settings = cache
		}
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *SQLStore) { s.clock = clock }
}

func NewSQLStore(db *sql.DB, driver string, log *slog.Logger, opts ...Option) Store {
	if log == nil {
		log = slog.Default()
	}

	s := &SQLStore{
		db:       db,
		postgres: driver == "postgres",
		log:      log,
		clock:    clockwork.NewRealClock(),
		settings: noopSettingsCache{},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *SQLStore) AddEntry(ctx context.Context, userID string, entry domain.WorkEntry) (int64, error) {
	workDate, err := domain.ToISODate(entry.Date)
	if err != nil {
		return 0, errors.NewValidationError("❌ Неверная дата записи")
	}
	if len(entry.Works) == 0 {
		return 0, errors.NewValidationError("❌ Нет работ для сохранения")
	}

	works, err := json.Marshal(entry.Works)
	if err != nil {
		return 0, s.fail("add entry", userID, err)
	}

	s.writeMu.Lock()
	var id int64
	err = s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO entries (user_id, date, work_date, address, works, comment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		userID, entry.Date, workDate, entry.Address, string(works), entry.Comment, s.clock.Now().UnixNano(),
	).Scan(&id)
	s.writeMu.Unlock()

	if err != nil {
		return 0, s.fail("add entry", userID, err)
	}

	s.invalidate(userID)
	s.log.Info("entry added", slog.String("user_id", userID), slog.Int64("entry_id", id), slog.Int("works", len(entry.Works)))

	return id, nil
}

func (s *SQLStore) GetEntries(ctx context.Context, userID string, dateRange *domain.DateRange) ([]domain.WorkEntry, error) {
	query := `SELECT id, user_id, date, address, works, comment, created_at FROM entries WHERE user_id = ?`
	args := []any{userID}

	if dateRange != nil {
		query += ` AND work_date BETWEEN ? AND ?`
		args = append(args, dateRange.From.Format(domain.ISODateLayout), dateRange.To.Format(domain.ISODateLayout))
	}
	query += ` ORDER BY work_date DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, s.fail("get entries", userID, err)
	}
	defer rows.Close()

	var entries []domain.WorkEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, s.fail("scan entry", userID, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("iterate entries", userID, err)
	}

	return entries, nil
}

func (s *SQLStore) GetLastEntry(ctx context.Context, userID string) (*domain.WorkEntry, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, user_id, date, address, works, comment, created_at
		 FROM entries WHERE user_id = ? ORDER BY id DESC LIMIT 1`), userID)

	entry, err := scanEntry(row)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, s.fail("get last entry", userID, err)
	}

	return &entry, nil
}

func (s *SQLStore) DeleteEntry(ctx context.Context, entryID int64, userID string) (bool, error) {
	s.writeMu.Lock()
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM entries WHERE id = ? AND user_id = ?`), entryID, userID)
	s.writeMu.Unlock()
	if err != nil {
		return false, s.fail("delete entry", userID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, s.fail("delete entry", userID, err)
	}
	if affected == 0 {
		return false, nil
	}

	s.invalidate(userID)
	s.log.Info("entry deleted", slog.String("user_id", userID), slog.Int64("entry_id", entryID))

	return true, nil
}

func (s *SQLStore) GetSettings(ctx context.Context, userID string) (domain.UserSettings, error) {
	if cached, err := s.settings.Get(ctx, userID); err != nil {
		s.log.Warn("settings cache read failed", slog.String("user_id", userID), slog.Any("error", err))
	} else if cached != nil {
		return *cached, nil
	}

	var (
		settings domain.UserSettings
		workDays string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT reminders_enabled, work_days, vacation_mode FROM user_settings WHERE user_id = ?`), userID,
	).Scan(&settings.RemindersEnabled, &workDays, &settings.VacationMode)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return domain.DefaultSettings(), nil
		}
		return domain.DefaultSettings(), s.fail("get settings", userID, err)
	}

	if err := json.Unmarshal([]byte(workDays), &settings.WorkDays); err != nil {
		return domain.DefaultSettings(), s.fail("decode work days", userID, err)
	}

	if err := s.settings.Set(ctx, userID, settings); err != nil {
		s.log.Warn("settings cache write failed", slog.String("user_id", userID), slog.Any("error", err))
	}

	return settings, nil
}

func (s *SQLStore) SaveSettings(ctx context.Context, userID string, settings domain.UserSettings) error {
	workDays, err := json.Marshal(settings.WorkDays)
	if err != nil {
		return s.fail("save settings", userID, err)
	}
	if settings.WorkDays == nil {
		workDays = []byte("[]")
	}

	s.writeMu.Lock()
	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO user_settings (user_id, reminders_enabled, work_days, vacation_mode, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		   reminders_enabled = excluded.reminders_enabled,
		   work_days = excluded.work_days,
		   vacation_mode = excluded.vacation_mode,
		   updated_at = excluded.updated_at`),
		userID, settings.RemindersEnabled, string(workDays), settings.VacationMode, s.clock.Now().UnixNano(),
	)
	s.writeMu.Unlock()
	if err != nil {
		return s.fail("save settings", userID, err)
	}

	if err := s.settings.Invalidate(ctx, userID); err != nil {
		s.log.Warn("settings cache invalidation failed", slog.String("user_id", userID), slog.Any("error", err))
	}

	return nil
}

func (s *SQLStore) CreateBackup(ctx context.Context, userID string) error {
	entries, err := s.GetEntries(ctx, userID, nil)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return s.fail("encode backup", userID, err)
	}

	s.writeMu.Lock()
	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO backups (user_id, payload, created_at) VALUES (?, ?, ?)`),
		userID, string(payload), s.clock.Now().UnixNano(),
	)
	s.writeMu.Unlock()
	if err != nil {
		return s.fail("create backup", userID, err)
	}

	s.log.Debug("backup created", slog.String("user_id", userID), slog.Int("entries", len(entries)))
	return nil
}

func (s *SQLStore) ListBackups(ctx context.Context, userID string) ([]domain.BackupRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, user_id, payload, created_at FROM backups WHERE user_id = ? ORDER BY id DESC`), userID)
	if err != nil {
		return nil, s.fail("list backups", userID, err)
	}
	defer rows.Close()

	var backups []domain.BackupRecord
	for rows.Next() {
		var (
			b         domain.BackupRecord
			createdAt int64
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.Payload, &createdAt); err != nil {
			return nil, s.fail("scan backup", userID, err)
		}
		b.CreatedAt = time.Unix(0, createdAt).UTC()
		backups = append(backups, b)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("iterate backups", userID, err)
	}

	return backups, nil
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM entries ORDER BY user_id`)
	if err != nil {
		return nil, s.fail("list users", "", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, s.fail("scan user", "", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("iterate users", "", err)
	}

	return users, nil
}

func (s *SQLStore) invalidate(userID string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(userID)
	}
}

func (s *SQLStore) fail(op, userID string, err error) error {
	s.log.Error("store operation failed",
		slog.String("op", op),
		slog.String("user_id", userID),
		slog.Any("error", err),
	)
	return errors.NewStorageError(op, err)
}

// rebind turns ? placeholders into $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if !s.postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type noopSettingsCache struct{}

func (noopSettingsCache) Get(context.Context, string) (*domain.UserSettings, error) { return nil, nil }

func (noopSettingsCache) Set(context.Context, string, domain.UserSettings) error { return nil }

func (noopSettingsCache) Invalidate(context.Context, string) error { return nil }

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (domain.WorkEntry, error) {
	var (
		entry     domain.WorkEntry
		works     string
		createdAt int64
	)
	if err := row.Scan(&entry.ID, &entry.UserID, &entry.Date, &entry.Address, &works, &entry.Comment, &createdAt); err != nil {
		return domain.WorkEntry{}, err
	}

	if err := json.Unmarshal([]byte(works), &entry.Works); err != nil {
		return domain.WorkEntry{}, fmt.Errorf("decode works: %w", err)
	}
	entry.CreatedAt = time.Unix(0, createdAt).UTC()

	return entry, nil
}
