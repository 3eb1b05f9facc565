package database

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/worklog-bot/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_b.up.sql":   {Data: []byte("SELECT 1;")},
		"m/001_a.up.sql":   {Data: []byte("SELECT 1;")},
		"m/001_a.down.sql": {Data: []byte("SELECT 1;")},
		"m/readme.md":      {Data: []byte("docs")},
	}

	names, err := ListMigrations(fsys, "m")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.up.sql", "002_b.up.sql"}, names)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	for _, driver := range []string{DriverSQLite, DriverPostgres} {
		names, err := ListMigrations(migrations, "migrations/"+driver)
		require.NoError(t, err)
		assert.NotEmpty(t, names, driver)
	}
}

func TestOpen_SQLiteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cfg := config.DatabaseConfig{
		Driver: DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "worklog.db"),
	}

	db, err := Open(ctx, cfg, testLogger())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(ctx, cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, table := range []string{"entries", "user_settings", "backups"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestApplyDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_x.up.sql"), []byte("CREATE TABLE IF NOT EXISTS x (id INTEGER);"), 0o600))

	db, err := Open(context.Background(), config.DatabaseConfig{
		Driver: DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "x.db"),
	}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, NewMigrator(db, testLogger()).ApplyDir(context.Background(), dir))

	_, err = db.Exec("INSERT INTO x (id) VALUES (1)")
	assert.NoError(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql", DSN: "x"}, testLogger())
	assert.Error(t, err)
}
