// Package identity exposes the current-user capability the remote gateway
// depends on. Login and logout themselves happen elsewhere; this package
// only answers "who is the user right now" and signals changes.
package identity

import "sync"

// Provider reports the current user identity and identity changes.
type Provider interface {
	// Current returns the user id, or ok=false when nobody is logged in.
	Current() (id string, ok bool)
	// OnChange registers cb for future identity changes and returns an
	// unsubscribe function. After unsubscribe returns, cb is never
	// invoked again.
	OnChange(cb func(id string, ok bool)) (unsubscribe func())
}

// Static is a Provider with a fixed identity, for offline use and tests.
type Static struct {
	ID string
}

// Current implements Provider.
func (s Static) Current() (string, bool) {
	return s.ID, s.ID != ""
}

// OnChange implements Provider. A static identity never changes, so the
// callback is never invoked.
func (s Static) OnChange(func(id string, ok bool)) func() {
	return func() {}
}

// Switchable is a Provider whose identity can be set and cleared at
// runtime, fanning out changes to subscribers. It backs login/logout
// flows and tests that exercise identity transitions.
type Switchable struct {
	mu   sync.Mutex
	id   string
	ok   bool
	subs map[int]*identSub
	next int
}

// identSub serializes deliveries against unsubscription so a callback
// can never fire after its unsubscribe function has returned.
type identSub struct {
	mu        sync.Mutex
	cancelled bool
	cb        func(id string, ok bool)
}

func (s *identSub) deliver(id string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cancelled {
		s.cb(id, ok)
	}
}

// NewSwitchable creates a Switchable with no identity.
func NewSwitchable() *Switchable {
	return &Switchable{subs: make(map[int]*identSub)}
}

// Current implements Provider.
func (s *Switchable) Current() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.ok
}

// SetIdentity records a login and notifies subscribers.
func (s *Switchable) SetIdentity(id string) {
	s.broadcast(id, true)
}

// ClearIdentity records a logout and notifies subscribers.
func (s *Switchable) ClearIdentity() {
	s.broadcast("", false)
}

func (s *Switchable) broadcast(id string, ok bool) {
	s.mu.Lock()
	s.id, s.ok = id, ok
	targets := make([]*identSub, 0, len(s.subs))
	for _, sub := range s.subs {
		targets = append(targets, sub)
	}
	s.mu.Unlock()

	for _, sub := range targets {
		sub.deliver(id, ok)
	}
}

// OnChange implements Provider.
func (s *Switchable) OnChange(cb func(id string, ok bool)) func() {
	sub := &identSub{cb: cb}
	s.mu.Lock()
	if s.subs == nil {
		s.subs = make(map[int]*identSub)
	}
	key := s.next
	s.next++
	s.subs[key] = sub
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, key)
		s.mu.Unlock()
		sub.mu.Lock()
		sub.cancelled = true
		sub.mu.Unlock()
	}
}
