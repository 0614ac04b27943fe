package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Key constrains the key types a table may use: store-assigned integer ids
// or deterministic composite string ids.
type Key interface {
	~int64 | ~string
}

// querier is satisfied by both *sql.DB and *sql.Tx so table operations can
// run standalone or inside a caller-owned transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// tableSpec describes how one record type maps onto its table: the SQL
// table name, the indexed columns extracted from the record, and how to
// read and write the record's key.
type tableSpec[T any, K Key] struct {
	name      string
	sqlName   string
	indexCols []string
	indexVals func(*T) []any
	getKey    func(*T) K
	setKey    func(*T, K)
}

// Table is the generic table-access implementation, instantiated once per
// record type. Rows hold the extracted index columns plus the full record
// as JSON, mirroring an indexed object store.
type Table[T any, K Key] struct {
	db   *sql.DB
	spec tableSpec[T, K]

	// afterReplace runs inside the ReplaceAll transaction, after the new
	// rows are in place. The store uses it to keep derived counters in
	// step with wholesale table swaps.
	afterReplace func(ctx context.Context, tx *sql.Tx) error
}

func newTable[T any, K Key](db *sql.DB, spec tableSpec[T, K]) *Table[T, K] {
	return &Table[T, K]{db: db, spec: spec}
}

// Name returns the logical table name used by the remote namespace.
func (t *Table[T, K]) Name() string { return t.spec.name }

// Add inserts the record under the next store-assigned key and returns it.
// Key generation is monotonic per table and independent of remote state.
func (t *Table[T, K]) Add(ctx context.Context, rec *T) (K, error) {
	var zero K
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return zero, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	key, err := t.nextKey(ctx, tx)
	if err != nil {
		return zero, err
	}
	t.spec.setKey(rec, key)
	if err := t.put(ctx, tx, rec, key); err != nil {
		return zero, err
	}
	return key, tx.Commit()
}

// AddWithKey upserts the record under the given key. A colliding key
// replaces the existing record; there is no collision error.
func (t *Table[T, K]) AddWithKey(ctx context.Context, rec *T, key K) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := t.addWithKeyTx(ctx, tx, rec, key); err != nil {
		return err
	}
	return tx.Commit()
}

func (t *Table[T, K]) addWithKeyTx(ctx context.Context, tx *sql.Tx, rec *T, key K) error {
	t.spec.setKey(rec, key)
	if err := t.put(ctx, tx, rec, key); err != nil {
		return err
	}
	return t.bumpKeyFloor(ctx, tx, key)
}

// put writes one row, replacing any previous row under the same key.
func (t *Table[T, K]) put(ctx context.Context, q querier, rec *T, key K) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", t.spec.name, err)
	}

	cols := append([]string{"key"}, t.spec.indexCols...)
	cols = append(cols, "data")
	args := append([]any{keyString(key)}, t.spec.indexVals(rec)...)
	args = append(args, string(data))

	stmt := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		t.spec.sqlName, strings.Join(cols, ", "), placeholders(len(cols)),
	)
	if _, err := q.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert %s record: %w", t.spec.name, err)
	}
	return nil
}

// nextKey issues the next monotonic key for this table.
func (t *Table[T, K]) nextKey(ctx context.Context, q querier) (K, error) {
	var zero K
	var last int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO table_meta (table_name, last_index) VALUES (?, 1)
		ON CONFLICT(table_name) DO UPDATE SET last_index = last_index + 1
		RETURNING last_index
	`, t.spec.sqlName).Scan(&last)
	if err != nil {
		return zero, fmt.Errorf("next key for %s: %w", t.spec.name, err)
	}
	key, err := keyFromString[K](strconv.FormatInt(last, 10))
	if err != nil {
		return zero, err
	}
	return key, nil
}

// bumpKeyFloor keeps the key generator ahead of explicitly supplied numeric
// keys, so records re-inserted under their remote ids never collide with
// later locally generated ones.
func (t *Table[T, K]) bumpKeyFloor(ctx context.Context, q querier, key K) error {
	n, err := strconv.ParseInt(keyString(key), 10, 64)
	if err != nil {
		return nil // composite string keys don't feed the generator
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO table_meta (table_name, last_index) VALUES (?, ?)
		ON CONFLICT(table_name) DO UPDATE SET last_index = MAX(last_index, excluded.last_index)
	`, t.spec.sqlName, n)
	if err != nil {
		return fmt.Errorf("bump key floor for %s: %w", t.spec.name, err)
	}
	return nil
}

// Get returns the record under key, or ErrNotFound.
func (t *Table[T, K]) Get(ctx context.Context, key K) (*T, error) {
	return t.getTx(ctx, t.db, key)
}

func (t *Table[T, K]) getTx(ctx context.Context, q querier, key K) (*T, error) {
	var data string
	err := q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT data FROM %s WHERE key = ?", t.spec.sqlName),
		keyString(key),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s record: %w", t.spec.name, err)
	}
	return t.decode(data)
}

// All returns every record in insertion order.
func (t *Table[T, K]) All(ctx context.Context) ([]T, error) {
	return t.scan(ctx,
		fmt.Sprintf("SELECT data FROM %s ORDER BY rowid", t.spec.sqlName))
}

// Find returns records matching every condition, in insertion order. Only
// indexed columns may be queried.
func (t *Table[T, K]) Find(ctx context.Context, conds ...Cond) ([]T, error) {
	var clauses []string
	var args []any
	for _, c := range conds {
		if !t.indexed(c.Col) {
			return nil, fmt.Errorf("%s: column %q is not indexed", t.spec.name, c.Col)
		}
		clauses = append(clauses, c.Col+" = ?")
		args = append(args, c.Val)
	}
	stmt := fmt.Sprintf("SELECT data FROM %s", t.spec.sqlName)
	if len(clauses) > 0 {
		stmt += " WHERE " + strings.Join(clauses, " AND ")
	}
	stmt += " ORDER BY rowid"
	return t.scan(ctx, stmt, args...)
}

// FindRange returns records whose indexed column lies in [lo, hi].
func (t *Table[T, K]) FindRange(ctx context.Context, col string, lo, hi int64) ([]T, error) {
	if !t.indexed(col) {
		return nil, fmt.Errorf("%s: column %q is not indexed", t.spec.name, col)
	}
	return t.scan(ctx,
		fmt.Sprintf("SELECT data FROM %s WHERE %s >= ? AND %s <= ? ORDER BY %s", t.spec.sqlName, col, col, col),
		lo, hi)
}

// Remove deletes the record under key, returning ErrNotFound if absent.
func (t *Table[T, K]) Remove(ctx context.Context, key K) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := t.removeTx(ctx, tx, key); err != nil {
		return err
	}
	return tx.Commit()
}

func (t *Table[T, K]) removeTx(ctx context.Context, q querier, key K) error {
	res, err := q.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE key = ?", t.spec.sqlName),
		keyString(key),
	)
	if err != nil {
		return fmt.Errorf("delete %s record: %w", t.spec.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear deletes every record. The key generator is left untouched so keys
// stay monotonic across a clear.
func (t *Table[T, K]) Clear(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, "DELETE FROM "+t.spec.sqlName); err != nil {
		return fmt.Errorf("clear %s: %w", t.spec.name, err)
	}
	return nil
}

// Count returns the current row count.
func (t *Table[T, K]) Count(ctx context.Context) (int64, error) {
	return t.countTx(ctx, t.db)
}

func (t *Table[T, K]) countTx(ctx context.Context, q querier) (int64, error) {
	var n int64
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.spec.sqlName).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", t.spec.name, err)
	}
	return n, nil
}

// Dump serializes every record with its key, in insertion order.
func (t *Table[T, K]) Dump(ctx context.Context) ([]Row, error) {
	rows, err := t.db.QueryContext(ctx,
		fmt.Sprintf("SELECT key, data FROM %s ORDER BY rowid", t.spec.sqlName))
	if err != nil {
		return nil, fmt.Errorf("dump %s: %w", t.spec.name, err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var r Row
		var data string
		if err := rows.Scan(&r.Key, &data); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", t.spec.name, err)
		}
		r.Data = []byte(data)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceAll swaps the table's whole contents for the given rows, keeping
// their original keys. The swap is one transaction, so concurrent readers
// see either the old table or the new one, never a partially-cleared state.
func (t *Table[T, K]) ReplaceAll(ctx context.Context, rows []Row) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+t.spec.sqlName); err != nil {
		return fmt.Errorf("clear %s: %w", t.spec.name, err)
	}
	for _, r := range rows {
		rec, err := t.decode(string(r.Data))
		if err != nil {
			return err
		}
		key, err := keyFromString[K](r.Key)
		if err != nil {
			return fmt.Errorf("%s key %q: %w", t.spec.name, r.Key, err)
		}
		if err := t.addWithKeyTx(ctx, tx, rec, key); err != nil {
			return err
		}
	}
	if t.afterReplace != nil {
		if err := t.afterReplace(ctx, tx); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (t *Table[T, K]) scan(ctx context.Context, stmt string, args ...any) ([]T, error) {
	rows, err := t.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.spec.name, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", t.spec.name, err)
		}
		rec, err := t.decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (t *Table[T, K]) decode(data string) (*T, error) {
	rec := new(T)
	if err := json.Unmarshal([]byte(data), rec); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", t.spec.name, err)
	}
	return rec, nil
}

func (t *Table[T, K]) indexed(col string) bool {
	for _, c := range t.spec.indexCols {
		if c == col {
			return true
		}
	}
	return false
}

func keyString[K Key](key K) string {
	switch v := any(key).(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func keyFromString[K Key](s string) (K, error) {
	var zero K
	switch any(zero).(type) {
	case int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return zero, fmt.Errorf("parse numeric key %q: %w", s, err)
		}
		return any(n).(K), nil
	default:
		return any(s).(K), nil
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
