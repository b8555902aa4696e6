// Package sqlite is the primary Collection backend: a pure-Go, cgo-free
// SQLite database (github.com/ncruces/go-sqlite3, SQLite compiled to
// WASM and run through tetratelabs/wazero), grounded on the teacher's
// own storage/sqlite package and its migration/schema conventions.
//
// Each logical chronicle collection (chunks, branches, metadata, keys,
// config) is backed by one physical table storing a JSON-encoded
// document plus an opaque primary key; indexed/unique fields are
// expressed as SQLite expression indexes over json_extract(doc, ...),
// including partial indexes, so the abstract store.Collection API
// needs no schema migration per declared field. The busy_timeout
// PRAGMA is sourced from config.Load(), the same engine-wide viper
// config every Engine is initialized against.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/chronicled/chronicle/internal/chronicle/config"
	"github.com/chronicled/chronicle/internal/chronicle/store"
)

// Store is a store.Database backed by one SQLite file (or in-memory
// database, for tests).
type Store struct {
	db   *sql.DB
	path string
}

// New opens (creating if necessary) the SQLite database at path and
// runs the schema_migrations ledger, matching the teacher's New(ctx,
// dbPath) constructor shape.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer; ncruces/go-sqlite3 serializes via WASM runtime anyway

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}
	busyMillis := config.Load().SQLiteBusyTimeout.Milliseconds()
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyMillis)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy timeout: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrations: %w", err)
	}
	return s, nil
}

// Collection returns (creating the backing table on first use) a
// handle for the named logical collection.
func (s *Store) Collection(name string) (store.Collection, error) {
	if err := ensureTable(context.Background(), s.db, name); err != nil {
		return nil, fmt.Errorf("sqlite: ensure table %s: %w", name, err)
	}
	return &collection{db: s.db, name: name}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sqlite: close: %w", err)
	}
	return nil
}

// Path returns the file path (or DSN) this store was opened with.
func (s *Store) Path() string { return s.path }

// UnderlyingDB exposes the raw *sql.DB, mirroring the teacher's escape
// hatch for callers that need direct access.
func (s *Store) UnderlyingDB() *sql.DB { return s.db }
