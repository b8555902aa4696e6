package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migration mirrors the teacher's ordered {Name, Func} migration list,
// each run inside its own transaction against a ledger table so
// reopening an existing database is a no-op.
type migration struct {
	Name string
	Func func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{
		Name: "001_schema_migrations_ledger",
		Func: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS schema_migrations (
					name TEXT PRIMARY KEY,
					applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				)
			`)
			return err
		},
	},
}

// runMigrations applies every migration not yet recorded in the
// ledger, each inside its own default (deferred) transaction on the
// single-connection database handle.
func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("bootstrap ledger: %w", err)
	}

	for _, m := range migrations {
		applied, err := migrationApplied(ctx, db, m.Name)
		if err != nil {
			return fmt.Errorf("%s: check applied: %w", m.Name, err)
		}
		if applied {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("%s: %w", m.Name, err)
		}
	}
	return nil
}

func migrationApplied(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := m.Func(ctx, tx); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES (?)`, m.Name); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ensureTable creates the physical table backing a logical collection
// if it does not already exist. The table shape is uniform across
// every chronicle collection (chunks, branches, metadata, keys,
// config): an opaque id plus a JSON-encoded document.
func ensureTable(ctx context.Context, db *sql.DB, name string) error {
	stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id  TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		)
	`, quoteIdent(name))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}
