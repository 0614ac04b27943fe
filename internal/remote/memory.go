package remote

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/runnerr0/typelog/internal/identity"
)

// Memory is an in-process Gateway keeping each user's tables in maps.
// It is used by tests and by local-only setups that still want the
// reconciliation machinery wired end to end. Snapshot deliveries are
// synchronous: by the time Add, Remove or Replace returns, every
// subscriber has seen the new state.
type Memory struct {
	mu    sync.Mutex
	ident identity.Provider

	// user -> table -> key -> row
	users map[string]map[string]map[string]Row
	// user -> table -> highest numeric key handed out
	lastKey map[string]map[string]int64

	nextSub   int
	rowSubs   map[string]map[int]*rowSub
	countSubs map[string]map[int]*countSub
}

// rowSub serializes deliveries against unsubscription so a callback
// can never fire after its unsubscribe function has returned.
type rowSub struct {
	mu        sync.Mutex
	cancelled bool
	cb        func([]Row)
}

func (s *rowSub) deliver(rows []Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cancelled {
		s.cb(rows)
	}
}

type countSub struct {
	mu        sync.Mutex
	cancelled bool
	cb        func(int64)
}

func (s *countSub) deliver(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cancelled {
		s.cb(n)
	}
}

// NewMemory builds an empty in-memory gateway gated on ident.
func NewMemory(ident identity.Provider) *Memory {
	return &Memory{
		ident:     ident,
		users:     make(map[string]map[string]map[string]Row),
		lastKey:   make(map[string]map[string]int64),
		rowSubs:   make(map[string]map[int]*rowSub),
		countSubs: make(map[string]map[int]*countSub),
	}
}

var _ Gateway = (*Memory)(nil)

func (m *Memory) uid() (string, error) {
	id, ok := m.ident.Current()
	if !ok {
		return "", ErrNoIdentity
	}
	return id, nil
}

// table returns the live row map for the current user, creating it on
// first use. Caller holds m.mu.
func (m *Memory) table(uid, name string) map[string]Row {
	tables, ok := m.users[uid]
	if !ok {
		tables = make(map[string]map[string]Row)
		m.users[uid] = tables
	}
	rows, ok := tables[name]
	if !ok {
		rows = make(map[string]Row)
		tables[name] = rows
	}
	return rows
}

func (m *Memory) Get(ctx context.Context, table string) ([]Row, error) {
	uid, err := m.uid()
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshot(m.table(uid, table)), nil
}

func (m *Memory) GetByID(ctx context.Context, table, id string) (Row, error) {
	uid, err := m.uid()
	if err != nil {
		return Row{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.table(uid, table)[id]
	if !ok {
		return Row{}, ErrNotFound
	}
	return row, nil
}

func (m *Memory) Add(ctx context.Context, table string, row Row) (string, error) {
	uid, err := m.uid()
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	rows := m.table(uid, table)
	if row.Key == "" {
		row.Key = strconv.FormatInt(m.nextKey(uid, table), 10)
	} else if n, perr := strconv.ParseInt(row.Key, 10, 64); perr == nil {
		// Explicit numeric keys pull the generator forward so later
		// assigned keys stay unique.
		m.floorKey(uid, table, n)
	}
	rows[row.Key] = row
	notify := m.notifierLocked(table, rows)
	m.mu.Unlock()
	notify()
	return row.Key, nil
}

func (m *Memory) Remove(ctx context.Context, table, id string) error {
	uid, err := m.uid()
	if err != nil {
		return err
	}
	m.mu.Lock()
	rows := m.table(uid, table)
	delete(rows, id)
	notify := m.notifierLocked(table, rows)
	m.mu.Unlock()
	notify()
	return nil
}

func (m *Memory) Count(ctx context.Context, table string) (int64, error) {
	uid, err := m.uid()
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.table(uid, table))), nil
}

func (m *Memory) Replace(ctx context.Context, table string, rows []Row) error {
	uid, err := m.uid()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.table(uid, table)
	fresh := make(map[string]Row, len(rows))
	for _, row := range rows {
		fresh[row.Key] = row
		if n, perr := strconv.ParseInt(row.Key, 10, 64); perr == nil {
			m.floorKey(uid, table, n)
		}
	}
	m.users[uid][table] = fresh
	notify := m.notifierLocked(table, fresh)
	m.mu.Unlock()
	notify()
	return nil
}

// Subscribe delivers the current snapshot before returning, then a
// fresh snapshot after every mutation of the table.
func (m *Memory) Subscribe(table string, cb func([]Row)) (func(), error) {
	uid, err := m.uid()
	if err != nil {
		return nil, err
	}
	sub := &rowSub{cb: cb}
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	if m.rowSubs[table] == nil {
		m.rowSubs[table] = make(map[int]*rowSub)
	}
	m.rowSubs[table][id] = sub
	initial := snapshot(m.table(uid, table))
	m.mu.Unlock()

	sub.deliver(initial)

	return func() {
		m.mu.Lock()
		delete(m.rowSubs[table], id)
		m.mu.Unlock()
		sub.mu.Lock()
		sub.cancelled = true
		sub.mu.Unlock()
	}, nil
}

func (m *Memory) SubscribeCount(table string, cb func(int64)) (func(), error) {
	uid, err := m.uid()
	if err != nil {
		return nil, err
	}
	sub := &countSub{cb: cb}
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	if m.countSubs[table] == nil {
		m.countSubs[table] = make(map[int]*countSub)
	}
	m.countSubs[table][id] = sub
	initial := int64(len(m.table(uid, table)))
	m.mu.Unlock()

	sub.deliver(initial)

	return func() {
		m.mu.Lock()
		delete(m.countSubs[table], id)
		m.mu.Unlock()
		sub.mu.Lock()
		sub.cancelled = true
		sub.mu.Unlock()
	}, nil
}

// notifierLocked captures the new state and the live subscribers of
// the table while m.mu is held, and returns a closure that performs
// the deliveries. The caller invokes it after releasing the lock so
// callbacks may call back into the gateway or unsubscribe.
func (m *Memory) notifierLocked(table string, rows map[string]Row) func() {
	snap := snapshot(rows)
	count := int64(len(rows))
	rowTargets := make([]*rowSub, 0, len(m.rowSubs[table]))
	for _, sub := range m.rowSubs[table] {
		rowTargets = append(rowTargets, sub)
	}
	countTargets := make([]*countSub, 0, len(m.countSubs[table]))
	for _, sub := range m.countSubs[table] {
		countTargets = append(countTargets, sub)
	}
	return func() {
		for _, sub := range rowTargets {
			sub.deliver(snap)
		}
		for _, sub := range countTargets {
			sub.deliver(count)
		}
	}
}

func (m *Memory) nextKey(uid, table string) int64 {
	keys, ok := m.lastKey[uid]
	if !ok {
		keys = make(map[string]int64)
		m.lastKey[uid] = keys
	}
	keys[table]++
	return keys[table]
}

func (m *Memory) floorKey(uid, table string, n int64) {
	keys, ok := m.lastKey[uid]
	if !ok {
		keys = make(map[string]int64)
		m.lastKey[uid] = keys
	}
	if n > keys[table] {
		keys[table] = n
	}
}

// snapshot copies the row map into a deterministically ordered slice:
// numeric keys ascending first, then the rest lexically.
func snapshot(rows map[string]Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		return keyLess(out[i].Key, out[j].Key)
	})
	return out
}

func keyLess(a, b string) bool {
	na, aerr := strconv.ParseInt(a, 10, 64)
	nb, berr := strconv.ParseInt(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		return na < nb
	case aerr == nil:
		return true
	case berr == nil:
		return false
	default:
		return a < b
	}
}
