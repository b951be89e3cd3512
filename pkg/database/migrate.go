package database

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"
)

const (
	migrationSuffix = ".up.sql"

	createLedgerSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	appliedSQL = `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`
	recordSQL  = `INSERT INTO schema_migrations (version) VALUES ($1)`
)

// migrateBackoff is swapped out by tests.
var migrateBackoff = DefaultBackoff

// RunMigrations applies the *.up.sql files at the root of migrations in
// lexical order. Each file runs in its own transaction together with its
// schema_migrations row, so a rerun skips what already succeeded. Only
// transient connection failures are retried.
func RunMigrations(ctx context.Context, db DBTX, migrations fs.FS, logger *slog.Logger) error {
	pending, err := migrationFiles(migrations)
	if err != nil {
		return err
	}
	return migrateBackoff.Retry(ctx, logger, "run migrations", Transient, func(ctx context.Context) error {
		if _, err := db.Exec(ctx, createLedgerSQL); err != nil {
			return fmt.Errorf("create schema_migrations table: %w", err)
		}
		for _, name := range pending {
			if err := applyMigration(ctx, db, migrations, name, logger); err != nil {
				return err
			}
		}
		return nil
	})
}

func migrationFiles(migrations fs.FS) ([]string, error) {
	names, err := fs.Glob(migrations, "*"+migrationSuffix)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

func applyMigration(ctx context.Context, db DBTX, migrations fs.FS, name string, logger *slog.Logger) error {
	version := path.Base(name)

	var done bool
	if err := db.QueryRow(ctx, appliedSQL, version).Scan(&done); err != nil {
		return fmt.Errorf("check migration %s: %w", version, err)
	}
	if done {
		logger.Debug("migration already applied", slog.String("version", version))
		return nil
	}

	body, err := fs.ReadFile(migrations, name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", version, err)
	}
	if strings.TrimSpace(string(body)) == "" {
		return fmt.Errorf("migration %s is empty", version)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", version, err)
	}
	fail := func(step string, err error) error {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("%s migration %s: %w", step, version, err)
	}
	if _, err := tx.Exec(ctx, string(body)); err != nil {
		return fail("execute", err)
	}
	if _, err := tx.Exec(ctx, recordSQL, version); err != nil {
		return fail("record", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}

	logger.Info("migration applied", slog.String("version", version))
	return nil
}
