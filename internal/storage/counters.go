package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Counters maintains the practiceTime and wrongCount aggregates over
// chapter records without scanning the table on every read. Record writes
// apply signed deltas in the same transaction; a missing or suspect value
// is rebuilt from the table with Recompute.
type Counters struct {
	db *sql.DB
}

func newCounters(db *sql.DB) *Counters {
	return &Counters{db: db}
}

// sumColumn maps a counter name to the chapter-record column it totals.
func sumColumn(name string) (string, error) {
	switch name {
	case CounterPracticeTime:
		return "time", nil
	case CounterWrongCount:
		return "wrong_count", nil
	default:
		return "", fmt.Errorf("unknown counter %q", name)
	}
}

// Read returns the counter value. If the counter has never been
// materialized it is computed from the current chapter records, persisted,
// and returned.
func (c *Counters) Read(ctx context.Context, name string) (int64, error) {
	if _, err := sumColumn(name); err != nil {
		return 0, err
	}
	var value int64
	err := c.db.QueryRowContext(ctx,
		"SELECT value FROM counters WHERE name = ?", name,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return c.Recompute(ctx, name)
	}
	if err != nil {
		return 0, fmt.Errorf("read counter %s: %w", name, err)
	}
	return value, nil
}

// ApplyDelta increments the counter by delta. Callers writing records must
// apply the matching delta in the same transaction via applyDeltaTx; this
// form exists for standalone adjustments.
func (c *Counters) ApplyDelta(ctx context.Context, name string, delta int64) error {
	return c.applyDeltaTx(ctx, c.db, name, delta)
}

func (c *Counters) applyDeltaTx(ctx context.Context, q querier, name string, delta int64) error {
	if _, err := sumColumn(name); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO counters (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET
			value = value + excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, name, delta)
	if err != nil {
		return fmt.Errorf("apply delta to counter %s: %w", name, err)
	}
	return nil
}

// Recompute rebuilds the counter from the current chapter records and
// persists it. It is idempotent and safe to run at any time; a write that
// lands after the sum is taken shows up on the next recompute.
func (c *Counters) Recompute(ctx context.Context, name string) (int64, error) {
	return c.recomputeTx(ctx, c.db, name)
}

func (c *Counters) recomputeTx(ctx context.Context, q querier, name string) (int64, error) {
	col, err := sumColumn(name)
	if err != nil {
		return 0, err
	}
	var total int64
	err = q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(SUM(%s), 0) FROM chapter_records", col),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum chapter records for %s: %w", name, err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO counters (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, name, total)
	if err != nil {
		return 0, fmt.Errorf("store counter %s: %w", name, err)
	}
	return total, nil
}

// reset drops all counter rows so the next read recomputes from scratch.
func (c *Counters) reset(ctx context.Context, q querier) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM counters"); err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}
	return nil
}
