// Package storage is the durable on-device record store: three record
// tables over SQLite with schema migrations, monotonic key assignment,
// upsert semantics, and incrementally maintained aggregate counters.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/runnerr0/typelog/internal/record"
)

// TableOps is the type-erased view of a record table used by
// reconciliation: counting, dumping, and wholesale replacement.
type TableOps interface {
	Name() string
	Count(ctx context.Context) (int64, error)
	Dump(ctx context.Context) ([]Row, error)
	ReplaceAll(ctx context.Context, rows []Row) error
	Clear(ctx context.Context) error
}

// Store is the local record store. Typed table handles cover per-record
// queries; chapter-record mutations go through the Save/Put/Remove methods
// so the aggregate counters stay in step with the table.
type Store struct {
	db     *sql.DB
	ownsDB bool

	Words    *Table[record.WordRecord, int64]
	Chapters *Table[record.ChapterRecord, string]
	Reviews  *Table[record.ReviewRecord, int64]
	Counters *Counters

	tables map[string]TableOps
}

// Open opens or creates the database at path, applies pending migrations,
// and returns a ready store. The store owns the connection.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	runner := NewMigrationRunner(db)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	store.ownsDB = true
	return store, nil
}

// NewStore creates a Store from an already-opened and migrated database.
// The caller keeps ownership of db.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db, Counters: newCounters(db)}

	s.Words = newTable(db, tableSpec[record.WordRecord, int64]{
		name:      TableWordRecords,
		sqlName:   "word_records",
		indexCols: []string{"word", "dict", "chapter", "time_stamp", "wrong_count"},
		indexVals: func(w *record.WordRecord) []any {
			var chapter any
			if w.Chapter != record.NoChapter {
				chapter = int(w.Chapter)
			}
			return []any{w.Word, w.Dict, chapter, w.TimeStamp, w.WrongCount}
		},
		setKey: func(w *record.WordRecord, key int64) { w.ID = key },
	})

	s.Chapters = newTable(db, tableSpec[record.ChapterRecord, string]{
		name:      TableChapterRecords,
		sqlName:   "chapter_records",
		indexCols: []string{"dict", "chapter", "time_stamp", "time", "wrong_count"},
		indexVals: func(c *record.ChapterRecord) []any {
			return []any{c.Dict, c.Chapter, c.TimeStamp, c.Time, c.WrongCount}
		},
		setKey: func(c *record.ChapterRecord, key string) { c.ID = key },
	})
	// A pulled chapter table invalidates the incremental counters; rebuild
	// them inside the same transaction as the swap.
	s.Chapters.afterReplace = func(ctx context.Context, tx *sql.Tx) error {
		for _, name := range []string{CounterPracticeTime, CounterWrongCount} {
			if _, err := s.Counters.recomputeTx(ctx, tx, name); err != nil {
				return err
			}
		}
		return nil
	}

	s.Reviews = newTable(db, tableSpec[record.ReviewRecord, int64]{
		name:      TableReviewRecords,
		sqlName:   "review_records",
		indexCols: []string{"dict", "create_time", "is_finished"},
		indexVals: func(r *record.ReviewRecord) []any {
			return []any{r.Dict, r.CreateTime, r.IsFinished}
		},
		setKey: func(r *record.ReviewRecord, key int64) { r.ID = key },
	})

	s.tables = map[string]TableOps{
		TableWordRecords:    s.Words,
		TableChapterRecords: s.Chapters,
		TableReviewRecords:  s.Reviews,
	}

	return s, nil
}

// DB exposes the underlying connection for status reporting and tests.
func (s *Store) DB() *sql.DB { return s.db }

// Table returns the type-erased handle for a logical table name.
func (s *Store) Table(name string) (TableOps, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// TableNames lists the logical record tables in a stable order.
func (s *Store) TableNames() []string {
	return []string{TableWordRecords, TableChapterRecords, TableReviewRecords}
}

// Close releases the database connection if the store owns it.
func (s *Store) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// SaveWordRecord persists one completed word attempt and returns its id.
func (s *Store) SaveWordRecord(ctx context.Context, rec *record.WordRecord) (int64, error) {
	return s.Words.Add(ctx, rec)
}

// SaveChapterPass merges a finished practice pass into the chapter's
// record. Time accumulates across passes; every other field, including the
// schedule block, is taken from the latest pass. The counter deltas are
// applied in the same transaction as the record write.
func (s *Store) SaveChapterPass(ctx context.Context, pass *record.ChapterRecord) error {
	if pass.FlatSchedule.Zero() {
		return fmt.Errorf("save chapter %s: %w", record.ChapterID(pass.Dict, pass.Chapter), ErrScheduleMissing)
	}
	merge := func(old, next *record.ChapterRecord) {
		next.Time += old.Time
	}
	return s.writeChapter(ctx, pass, merge)
}

// PutChapterRecord upserts a chapter record as-is, replacing any previous
// content under the same id. Counters move by the difference between the
// new and old values, so re-putting identical content is a no-op for them.
func (s *Store) PutChapterRecord(ctx context.Context, rec *record.ChapterRecord) error {
	return s.writeChapter(ctx, rec, nil)
}

// writeChapter upserts rec under its composite id, applying merge (if any)
// against the previously stored record and adjusting the counters by the
// signed difference, all in one transaction.
func (s *Store) writeChapter(ctx context.Context, rec *record.ChapterRecord, merge func(old, next *record.ChapterRecord)) error {
	id := record.ChapterID(rec.Dict, rec.Chapter)
	rec.ID = id

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var oldTime, oldWrong int64
	old, err := s.Chapters.getTx(ctx, tx, id)
	switch {
	case err == nil:
		oldTime, oldWrong = int64(old.Time), int64(old.WrongCount)
		if merge != nil {
			merge(old, rec)
		}
	case errors.Is(err, ErrNotFound):
		// first pass over this chapter
	default:
		return err
	}

	if err := s.Chapters.addWithKeyTx(ctx, tx, rec, id); err != nil {
		return err
	}
	if err := s.Counters.applyDeltaTx(ctx, tx, CounterPracticeTime, int64(rec.Time)-oldTime); err != nil {
		return err
	}
	if err := s.Counters.applyDeltaTx(ctx, tx, CounterWrongCount, int64(rec.WrongCount)-oldWrong); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveChapterRecord deletes a chapter record and walks the counters back
// by its contribution, in one transaction.
func (s *Store) RemoveChapterRecord(ctx context.Context, dict string, chapter int) error {
	id := record.ChapterID(dict, chapter)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	old, err := s.Chapters.getTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := s.Chapters.removeTx(ctx, tx, id); err != nil {
		return err
	}
	if err := s.Counters.applyDeltaTx(ctx, tx, CounterPracticeTime, -int64(old.Time)); err != nil {
		return err
	}
	if err := s.Counters.applyDeltaTx(ctx, tx, CounterWrongCount, -int64(old.WrongCount)); err != nil {
		return err
	}
	return tx.Commit()
}

// PurgeAll deletes every record and counter. The key generators are kept
// so ids stay monotonic across a purge.
func (s *Store) PurgeAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, sqlName := range []string{"word_records", "chapter_records", "review_records"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+sqlName); err != nil {
			return fmt.Errorf("purge %s: %w", sqlName, err)
		}
	}
	if err := s.Counters.reset(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}
