// Package sync keeps the local record store and a remote gateway
// convergent. Divergence is detected cheaply by comparing row counts;
// repair is explicit and wholesale, either pulling the remote state
// over the local table or pushing the local table over the remote.
package sync

import (
	"context"
	"fmt"
	gosync "sync"

	"github.com/charmbracelet/log"

	"github.com/runnerr0/typelog/internal/remote"
	"github.com/runnerr0/typelog/internal/storage"
)

// State is the reconciliation state of one table.
type State int

const (
	StateInSync State = iota
	StateDiverged
	StateReconciling
)

func (s State) String() string {
	switch s {
	case StateInSync:
		return "in-sync"
	case StateDiverged:
		return "diverged"
	case StateReconciling:
		return "reconciling"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Divergence describes one observed count mismatch.
type Divergence struct {
	Table  string
	Local  int64
	Remote int64
}

// Reconciler tracks per-table sync state against a remote gateway.
// Count equality is a heuristic: equal counts report InSync even when
// contents differ, which matches the cost ceiling of a client that
// must not re-download everything to find out.
type Reconciler struct {
	store  *storage.Store
	gw     remote.Gateway
	logger *log.Logger

	mu        gosync.Mutex
	states    map[string]State
	unsubs    []func()
	onDiverge func(Divergence)
}

// NewReconciler builds a reconciler over the given store and gateway.
// All tables start out InSync; nothing has been observed yet.
func NewReconciler(store *storage.Store, gw remote.Gateway, logger *log.Logger) *Reconciler {
	states := make(map[string]State)
	for _, name := range store.TableNames() {
		states[name] = StateInSync
	}
	return &Reconciler{
		store:  store,
		gw:     gw,
		logger: logger,
		states: states,
	}
}

// OnDiverge registers a callback fired on every InSync to Diverged
// transition. Must be called before Watch.
func (r *Reconciler) OnDiverge(cb func(Divergence)) {
	r.mu.Lock()
	r.onDiverge = cb
	r.mu.Unlock()
}

// State reports the current state of one table.
func (r *Reconciler) State(table string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[table]
}

// Watch subscribes to the remote count of every table and flags
// divergence as remote counts change. It fails fast with
// remote.ErrNoIdentity when no user is logged in.
func (r *Reconciler) Watch(ctx context.Context) error {
	for _, name := range r.store.TableNames() {
		name := name
		unsub, err := r.gw.SubscribeCount(name, func(remoteCount int64) {
			r.observe(ctx, name, remoteCount)
		})
		if err != nil {
			r.Stop()
			return fmt.Errorf("watch %s: %w", name, err)
		}
		r.mu.Lock()
		r.unsubs = append(r.unsubs, unsub)
		r.mu.Unlock()
	}
	return nil
}

// Stop cancels all count subscriptions started by Watch.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	unsubs := r.unsubs
	r.unsubs = nil
	r.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}

// Recheck compares every table's counts once, without a subscription.
// Called after local writes and by the CLI's sync status.
func (r *Reconciler) Recheck(ctx context.Context) error {
	for _, name := range r.store.TableNames() {
		remoteCount, err := r.gw.Count(ctx, name)
		if err != nil {
			return fmt.Errorf("recheck %s: %w", name, err)
		}
		r.observe(ctx, name, remoteCount)
	}
	return nil
}

func (r *Reconciler) observe(ctx context.Context, table string, remoteCount int64) {
	tbl, ok := r.store.Table(table)
	if !ok {
		return
	}
	localCount, err := tbl.Count(ctx)
	if err != nil {
		r.logger.Error("local count failed", "table", table, "err", err)
		return
	}

	r.mu.Lock()
	prev := r.states[table]
	if prev == StateReconciling {
		// A pull or push is in flight; it settles the state itself.
		r.mu.Unlock()
		return
	}
	var fire func(Divergence)
	if localCount == remoteCount {
		r.states[table] = StateInSync
	} else {
		r.states[table] = StateDiverged
		if prev != StateDiverged {
			fire = r.onDiverge
		}
	}
	next := r.states[table]
	r.mu.Unlock()

	if prev != next {
		r.logger.Info("sync state changed", "table", table,
			"state", next, "local", localCount, "remote", remoteCount)
	}
	if fire != nil {
		fire(Divergence{Table: table, Local: localCount, Remote: remoteCount})
	}
}

// Pull overwrites the local table with the remote rows, atomically and
// under their original keys. On failure the local table is untouched
// and the state stays Diverged.
func (r *Reconciler) Pull(ctx context.Context, table string) error {
	tbl, ok := r.store.Table(table)
	if !ok {
		return fmt.Errorf("pull: unknown table %q", table)
	}
	r.setState(table, StateReconciling)

	rows, err := r.gw.Get(ctx, table)
	if err != nil {
		r.setState(table, StateDiverged)
		return fmt.Errorf("pull %s: %w", table, err)
	}
	local := make([]storage.Row, len(rows))
	for i, row := range rows {
		local[i] = storage.Row{Key: row.Key, Data: row.Data}
	}
	if err := tbl.ReplaceAll(ctx, local); err != nil {
		r.setState(table, StateDiverged)
		return fmt.Errorf("pull %s: %w", table, err)
	}

	r.setState(table, StateInSync)
	r.logger.Info("pulled table", "table", table, "rows", len(local))
	return nil
}

// Push overwrites the remote table with the local rows. On failure the
// state stays Diverged.
func (r *Reconciler) Push(ctx context.Context, table string) error {
	tbl, ok := r.store.Table(table)
	if !ok {
		return fmt.Errorf("push: unknown table %q", table)
	}
	r.setState(table, StateReconciling)

	rows, err := tbl.Dump(ctx)
	if err != nil {
		r.setState(table, StateDiverged)
		return fmt.Errorf("push %s: %w", table, err)
	}
	wire := make([]remote.Row, len(rows))
	for i, row := range rows {
		wire[i] = remote.Row{Key: row.Key, Data: row.Data}
	}
	if err := r.gw.Replace(ctx, table, wire); err != nil {
		r.setState(table, StateDiverged)
		return fmt.Errorf("push %s: %w", table, err)
	}

	r.setState(table, StateInSync)
	r.logger.Info("pushed table", "table", table, "rows", len(wire))
	return nil
}

// PullAll pulls every table, stopping at the first failure.
func (r *Reconciler) PullAll(ctx context.Context) error {
	for _, name := range r.store.TableNames() {
		if err := r.Pull(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// PushAll pushes every table, stopping at the first failure.
func (r *Reconciler) PushAll(ctx context.Context) error {
	for _, name := range r.store.TableNames() {
		if err := r.Push(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) setState(table string, s State) {
	r.mu.Lock()
	r.states[table] = s
	r.mu.Unlock()
}
