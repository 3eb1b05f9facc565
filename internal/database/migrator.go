// Package database opens the relational store and applies its schema migrations.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
)

//go:embed migrations
var migrations embed.FS

// Migrator applies plain .up.sql migrations in lexical order.
// Migrations must be idempotent (IF NOT EXISTS); they run on every start.
type Migrator struct {
	db  *sql.DB
	log *slog.Logger
}

func NewMigrator(db *sql.DB, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}

	return &Migrator{
		db:  db,
		log: log,
	}
}

// ApplyEmbedded runs the migrations bundled for driver ("sqlite" or "postgres").
func (m *Migrator) ApplyEmbedded(ctx context.Context, driver string) error {
	return m.ApplyFS(ctx, migrations, path.Join("migrations", driver))
}

// ApplyDir runs migrations from a directory on disk.
func (m *Migrator) ApplyDir(ctx context.Context, dir string) error {
	return m.ApplyFS(ctx, os.DirFS(dir), ".")
}

// ApplyFS finds *.up.sql under root in fsys and executes them sequentially, one transaction each.
func (m *Migrator) ApplyFS(ctx context.Context, fsys fs.FS, root string) error {
	files, err := ListMigrations(fsys, root)
	if err != nil {
		return fmt.Errorf("read migrations dir %q: %w", root, err)
	}

	baseLog := m.log.With(slog.String("dir", root))

	if len(files) == 0 {
		baseLog.Info("no .up.sql migrations found")
		return nil
	}

	for _, name := range files {
		if err := m.applyFile(ctx, baseLog, fsys, path.Join(root, name)); err != nil {
			return err
		}
	}

	baseLog.Info("migrations applied", slog.Int("count", len(files)))
	return nil
}

func (m *Migrator) applyFile(ctx context.Context, baseLog *slog.Logger, fsys fs.FS, file string) error {
	scopedLog := baseLog.With(slog.String("file", path.Base(file)))
	scopedLog.Debug("applying migration")

	data, err := fs.ReadFile(fsys, file)
	if err != nil {
		return fmt.Errorf("read migration %q: %w", file, err)
	}

	statement := strings.TrimSpace(string(data))
	if len(statement) == 0 {
		scopedLog.Warn("migration is empty, skipping")
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for migration %q: %w", file, err)
	}

	if _, execErr := tx.ExecContext(ctx, statement); execErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			scopedLog.Error("rollback error", slog.Any("error", rbErr))
		}
		return fmt.Errorf("execute migration %q: %w", file, execErr)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("commit migration %q: %w", file, commitErr)
	}

	return nil
}

func isUpMigration(name string) bool {
	return strings.HasSuffix(name, ".up.sql")
}

// ListMigrations returns all .up.sql files in root in lexical order.
func ListMigrations(fsys fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isUpMigration(e.Name()) {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}
