package storage

import (
	"database/sql"
	"fmt"
)

// migration is one schema step. Steps are additive only: they may create
// tables and indexes but never drop data.
type migration struct {
	Version int
	Name    string
	Apply   func(tx *sql.Tx) error
}

// schemaMigrations lists every step in the order it shipped.
var schemaMigrations = []migration{
	{Version: 1, Name: "word_and_chapter_records", Apply: migrateV001},
	{Version: 2, Name: "review_records", Apply: migrateV002},
	{Version: 3, Name: "aggregate_counters", Apply: migrateV003},
}

// MigrationRunner brings a SQLite database up to the current schema.
type MigrationRunner struct {
	db    *sql.DB
	steps []migration
}

func NewMigrationRunner(db *sql.DB) *MigrationRunner {
	return &MigrationRunner{db: db, steps: schemaMigrations}
}

// Run configures the connection, ensures the schema_migrations tracking
// table, and applies every step not yet recorded there. Safe to call on
// every open.
func (r *MigrationRunner) Run() error {
	pragmas := []struct{ stmt, what string }{
		{"PRAGMA journal_mode = WAL", "set WAL mode"},
		{"PRAGMA foreign_keys = ON", "enable foreign keys"},
	}
	for _, p := range pragmas {
		if _, err := r.db.Exec(p.stmt); err != nil {
			return fmt.Errorf("%s: %w", p.what, err)
		}
	}

	if _, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	current, err := r.currentVersion()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range r.steps {
		if m.Version <= current {
			continue
		}
		if err := r.apply(m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// currentVersion returns the highest recorded migration version, 0 for a
// fresh database.
func (r *MigrationRunner) currentVersion() (int, error) {
	var v sql.NullInt64
	err := r.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&v)
	if err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

// apply runs one step inside a transaction and records it, so a failed
// step leaves no trace.
func (r *MigrationRunner) apply(m migration) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.Apply(tx); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}
