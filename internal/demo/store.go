// Package demo holds the process-wide demo-mode flag. The flag is persisted
// through the state store and observers are notified on every change, so
// views react without polling a global.
package demo

import (
	"sync"
)

// Flags is the persistence boundary; satisfied by *state.Store.
type Flags interface {
	DemoMode() bool
	SetDemoMode(on bool) error
}

type Store struct {
	mu    sync.Mutex
	flags Flags
	subs  map[int]func(bool)
	next  int
}

func NewStore(flags Flags) *Store {
	return &Store{flags: flags, subs: make(map[int]func(bool))}
}

// Enabled reports whether the UI operates against the canned demo documents.
func (s *Store) Enabled() bool {
	return s.flags.DemoMode()
}

// SetEnabled persists the flag and notifies subscribers. Notification happens
// even when the value is unchanged; subscribers treat it as idempotent.
func (s *Store) SetEnabled(on bool) error {
	if err := s.flags.SetDemoMode(on); err != nil {
		return err
	}
	s.mu.Lock()
	fns := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(on)
	}
	return nil
}

// Subscribe registers fn for change notifications and returns an unsubscribe
// func tied to the subscriber's lifetime.
func (s *Store) Subscribe(fn func(enabled bool)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
