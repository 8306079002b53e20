package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const dropAllFile = "drop_all.sql"

// db is the part of *pgxpool.Pool the migrator uses.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// migrator applies NNN_*.up.sql files from fsys in name order and records
// each one in schema_migrations.
type migrator struct {
	db   db
	fsys fs.FS
}

type migrationStatus struct {
	Name    string
	Applied bool
}

func newMigrator(d db, fsys fs.FS) *migrator {
	return &migrator{db: d, fsys: fsys}
}

func (m *migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

// upFiles returns the migration file names, sorted.
func (m *migrator) upFiles() ([]string, error) {
	entries, err := fs.ReadDir(m.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func (m *migrator) applied(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := m.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", name, err)
	}
	return exists, nil
}

// Up applies every pending migration and returns how many ran.
func (m *migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	files, err := m.upFiles()
	if err != nil {
		return 0, err
	}

	n := 0
	for _, file := range files {
		name := strings.TrimSuffix(file, ".up.sql")
		done, err := m.applied(ctx, name)
		if err != nil {
			return n, err
		}
		if done {
			continue
		}
		sql, err := fs.ReadFile(m.fsys, file)
		if err != nil {
			return n, fmt.Errorf("read %s: %w", file, err)
		}
		if _, err := m.db.Exec(ctx, string(sql)); err != nil {
			return n, fmt.Errorf("apply %s: %w", name, err)
		}
		if _, err := m.db.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			return n, fmt.Errorf("record %s: %w", name, err)
		}
		n++
		slog.Info("migration applied", "migration", name)
	}
	return n, nil
}

// DropAll removes the contacts table and the migration history.
func (m *migrator) DropAll(ctx context.Context) error {
	sql, err := fs.ReadFile(m.fsys, dropAllFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", dropAllFile, err)
	}
	if _, err := m.db.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("drop all: %w", err)
	}
	slog.Warn("all tables dropped")
	return nil
}

// Status reports every migration in order.
func (m *migrator) Status(ctx context.Context) ([]migrationStatus, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	files, err := m.upFiles()
	if err != nil {
		return nil, err
	}
	out := make([]migrationStatus, 0, len(files))
	for _, file := range files {
		name := strings.TrimSuffix(file, ".up.sql")
		done, err := m.applied(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, migrationStatus{Name: name, Applied: done})
	}
	return out, nil
}
