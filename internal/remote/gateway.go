// Package remote presents the same table-shaped surface as the local
// store, backed by a per-user remote namespace. Operations become
// available only once an identity is resolved; until then they report
// ErrNoIdentity, which callers treat as ordinary offline state.
package remote

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNoIdentity signals that no user is logged in. It is an expected
// state, not a failure: anonymous use simply has no remote namespace.
var ErrNoIdentity = errors.New("no identity resolved")

// ErrNotFound is returned by GetByID when the remote row is absent.
var ErrNotFound = errors.New("remote row not found")

// Row is one record in wire form: its key in the remote table plus the
// JSON-encoded record.
type Row struct {
	Key  string          `json:"key"`
	Data json.RawMessage `json:"data"`
}

// Gateway is the remote counterpart of a record store. Subscriptions
// deliver a full current snapshot on first notification and a full
// snapshot again on every change; each delivery is authoritative state,
// never a diff. The returned unsubscribe function stops all further
// deliveries; callbacks never fire after it returns.
type Gateway interface {
	Get(ctx context.Context, table string) ([]Row, error)
	GetByID(ctx context.Context, table, id string) (Row, error)
	// Add upserts a row. An empty row key asks the remote to assign the
	// next key; the assigned key is returned either way.
	Add(ctx context.Context, table string, row Row) (string, error)
	Remove(ctx context.Context, table, id string) error
	Count(ctx context.Context, table string) (int64, error)
	// Replace overwrites the table wholesale with the given rows.
	Replace(ctx context.Context, table string, rows []Row) error

	Subscribe(table string, cb func([]Row)) (unsubscribe func(), err error)
	SubscribeCount(table string, cb func(int64)) (unsubscribe func(), err error)
}
