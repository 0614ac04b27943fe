package storage

import "database/sql"

// migrateV001 creates the initial schema: word and chapter record tables
// plus the per-table key generator. Record tables keep the full record as
// JSON in data, with the queryable fields extracted into indexed columns.
// Every statement uses IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS word_records (
			key        TEXT PRIMARY KEY,
			word       TEXT NOT NULL,
			dict       TEXT NOT NULL,
			chapter    INTEGER,
			time_stamp INTEGER NOT NULL,
			wrong_count INTEGER NOT NULL DEFAULT 0,
			data       TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS chapter_records (
			key        TEXT PRIMARY KEY,
			dict       TEXT NOT NULL,
			chapter    INTEGER NOT NULL,
			time_stamp INTEGER NOT NULL,
			time       INTEGER NOT NULL DEFAULT 0,
			wrong_count INTEGER NOT NULL DEFAULT 0,
			data       TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS table_meta (
			table_name TEXT PRIMARY KEY,
			last_index INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE INDEX IF NOT EXISTS idx_word_records_word          ON word_records(word)`,
		`CREATE INDEX IF NOT EXISTS idx_word_records_dict          ON word_records(dict)`,
		`CREATE INDEX IF NOT EXISTS idx_word_records_ts            ON word_records(time_stamp)`,
		`CREATE INDEX IF NOT EXISTS idx_word_records_dict_chapter  ON word_records(dict, chapter)`,
		`CREATE INDEX IF NOT EXISTS idx_word_records_wrong_count   ON word_records(wrong_count)`,
		`CREATE INDEX IF NOT EXISTS idx_chapter_records_dict       ON chapter_records(dict)`,
		`CREATE INDEX IF NOT EXISTS idx_chapter_records_ts         ON chapter_records(time_stamp)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_chapter_records_dict_chapter ON chapter_records(dict, chapter)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// migrateV002 adds review-session persistence.
func migrateV002(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS review_records (
			key         TEXT PRIMARY KEY,
			dict        TEXT NOT NULL,
			create_time INTEGER NOT NULL,
			is_finished INTEGER NOT NULL DEFAULT 0,
			data        TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_review_records_dict        ON review_records(dict)`,
		`CREATE INDEX IF NOT EXISTS idx_review_records_create_time ON review_records(create_time)`,
		`CREATE INDEX IF NOT EXISTS idx_review_records_is_finished ON review_records(is_finished)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// migrateV003 adds the aggregate counter table. Counter rows are created
// lazily on first read, so no seeding happens here.
func migrateV003(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS counters (
			name       TEXT PRIMARY KEY,
			value      INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}
