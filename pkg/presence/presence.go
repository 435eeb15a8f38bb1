// Package presence tracks which participants are currently typing in a
// scope. Entries carry an absolute expiry and are swept lazily: every read
// purges expired entries first, so there is no background timer.
package presence

import (
	"sync"
	"time"

	"chatsync/pkg/models"
)

// DefaultTTL is applied when a typing signal carries no ttl.
const DefaultTTL = 6 * time.Second

// Entry is one participant's typing state.
type Entry struct {
	UserID    string
	Username  string
	ExpiresAt time.Time
}

// Store holds typing entries keyed by (scope, participant). Safe for
// concurrent readers; the engine and API handlers share it.
type Store struct {
	mu     sync.Mutex
	typing map[models.ScopeID]map[string]Entry

	// Now is the clock; replaceable in tests.
	Now func() time.Time
}

// New creates an empty presence store.
func New() *Store {
	return &Store{
		typing: make(map[models.ScopeID]map[string]Entry),
		Now:    time.Now,
	}
}

// Set marks the participant as typing and (re)arms the expiry to now+ttl.
// A non-positive ttl falls back to DefaultTTL.
func (s *Store) Set(scope models.ScopeID, userID, username string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.typing[scope]
	if m == nil {
		m = make(map[string]Entry)
		s.typing[scope] = m
	}
	m[userID] = Entry{UserID: userID, Username: username, ExpiresAt: s.Now().Add(ttl)}
}

// Clear removes the participant's typing entry immediately.
func (s *Store) Clear(scope models.ScopeID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.typing[scope]; m != nil {
		delete(m, userID)
		if len(m) == 0 {
			delete(s.typing, scope)
		}
	}
}

// IsTyping reports whether the participant has an unexpired entry. Expired
// entries for the scope are removed as a side effect.
func (s *Store) IsTyping(scope models.ScopeID, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(scope)
	m := s.typing[scope]
	if m == nil {
		return false
	}
	_, ok := m[userID]
	return ok
}

// ListTyping returns the unexpired entries for the scope, sweeping expired
// ones first.
func (s *Store) ListTyping(scope models.ScopeID) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(scope)
	m := s.typing[scope]
	out := make([]Entry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	return out
}

func (s *Store) sweepLocked(scope models.ScopeID) {
	m := s.typing[scope]
	if m == nil {
		return
	}
	now := s.Now()
	for uid, e := range m {
		if !e.ExpiresAt.After(now) {
			delete(m, uid)
		}
	}
	if len(m) == 0 {
		delete(s.typing, scope)
	}
}
