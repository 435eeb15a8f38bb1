// Package unread keeps per-scope unread counters and hidden-since marks
// for locally dismissed threads.
package unread

import (
	"sync"

	"chatsync/pkg/models"
)

// Store tracks unread counts, the currently focused scope and hidden
// threads. Shared between the engine (writer) and API handlers (readers).
type Store struct {
	mu     sync.Mutex
	counts map[models.ScopeID]int
	hidden map[models.ScopeID]int64
	active models.ScopeID
}

// New creates an empty store.
func New() *Store {
	return &Store{
		counts: make(map[models.ScopeID]int),
		hidden: make(map[models.ScopeID]int64),
	}
}

// Focus marks the scope as active and resets its counter to zero.
func (s *Store) Focus(scope models.ScopeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = scope
	delete(s.counts, scope)
}

// Blur clears the active scope without touching counters.
func (s *Store) Blur() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = ""
}

// Active returns the currently focused scope, or "".
func (s *Store) Active() models.ScopeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Count returns the scope's unread counter.
func (s *Store) Count(scope models.ScopeID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[scope]
}

// Hide marks the scope hidden as of ts. While hidden it is omitted from
// listings until a newer message arrives.
func (s *Store) Hide(scope models.ScopeID, ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden[scope] = ts
	delete(s.counts, scope)
}

// Visible reports whether the scope should appear in thread listings.
func (s *Store) Visible(scope models.ScopeID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, hidden := s.hidden[scope]
	return !hidden
}

// Observe records an inbound message for unread and visibility
// bookkeeping. It increments the counter unless the message is
// self-authored or the scope is focused, and un-hides the scope when the
// message is strictly newer than the hidden-since mark. Time alone never
// un-hides a scope.
func (s *Store) Observe(scope models.ScopeID, ts int64, self bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if since, hidden := s.hidden[scope]; hidden && ts > since {
		delete(s.hidden, scope)
	}
	if self || scope == s.active {
		return
	}
	s.counts[scope]++
}

// Reset zeroes the scope's counter without changing focus.
func (s *Store) Reset(scope models.ScopeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, scope)
}

// Forget drops all state for the scope (thread clear).
func (s *Store) Forget(scope models.ScopeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, scope)
	delete(s.hidden, scope)
	if s.active == scope {
		s.active = ""
	}
}
