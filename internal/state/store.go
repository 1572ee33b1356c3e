// Package state holds the client runtime state behind an explicit
// publish/subscribe container. The original front end relied on a reactive
// proxy for change notification; here subscribers are invoked synchronously
// on every update, so a front end repaints before the updating call returns.
package state

import (
	"sync"

	"tebnegar/client/internal/model"
)

// Listener observes every committed state update.
type Listener func(model.RuntimeState)

// Store is the single home of model.RuntimeState. Updates go through
// Update, which mutates a copy under the lock and then notifies listeners
// in subscription order.
type Store struct {
	mu        sync.Mutex
	current   model.RuntimeState
	listeners []Listener
}

func New() *Store {
	return &Store{current: model.RuntimeState{Phase: model.PhaseUninitialized}}
}

// Get returns a snapshot of the current state.
func (s *Store) Get() model.RuntimeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Update applies fn to the state and synchronously notifies subscribers.
// Listeners run outside the lock; a listener calling Get observes the state
// it was notified with or a newer one, never an older one.
func (s *Store) Update(fn func(*model.RuntimeState)) {
	s.mu.Lock()
	fn(&s.current)
	snapshot := s.current
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

// Subscribe registers a listener for all future updates.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}
