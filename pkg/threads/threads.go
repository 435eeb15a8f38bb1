// Package threads holds the per-scope ordered message sequences. It is a
// pure data container with structural primitives; the synchronization
// engine is its only writer.
package threads

import "chatsync/pkg/models"

// Store owns one ordered message sequence per conversation scope.
type Store struct {
	seqs map[models.ScopeID][]*models.Message
}

// New creates an empty store.
func New() *Store {
	return &Store{seqs: make(map[models.ScopeID][]*models.Message)}
}

// Append adds a record to the end of the scope's sequence.
func (s *Store) Append(scope models.ScopeID, m *models.Message) {
	s.seqs[scope] = append(s.seqs[scope], m)
}

// ReplaceAll swaps the scope's whole sequence, used for history replays.
func (s *Store) ReplaceAll(scope models.ScopeID, msgs []*models.Message) {
	s.seqs[scope] = msgs
}

// Clear drops the scope's sequence entirely.
func (s *Store) Clear(scope models.ScopeID) {
	delete(s.seqs, scope)
}

// Len returns the number of records in the scope.
func (s *Store) Len(scope models.ScopeID) int {
	return len(s.seqs[scope])
}

// List returns the live sequence. Callers outside the engine must treat
// the result as read-only.
func (s *Store) List(scope models.ScopeID) []*models.Message {
	return s.seqs[scope]
}

// Snapshot returns deep copies of the scope's records, safe to hand to
// readers outside the engine's lock.
func (s *Store) Snapshot(scope models.ScopeID) []models.Message {
	live := s.seqs[scope]
	out := make([]models.Message, 0, len(live))
	for _, m := range live {
		out = append(out, m.Clone())
	}
	return out
}

// Find returns the first record matching the predicate, or nil.
func (s *Store) Find(scope models.ScopeID, match func(*models.Message) bool) *models.Message {
	for _, m := range s.seqs[scope] {
		if match(m) {
			return m
		}
	}
	return nil
}

// Update applies mut to the first record matching the predicate and
// reports whether a record was found.
func (s *Store) Update(scope models.ScopeID, match func(*models.Message) bool, mut func(*models.Message)) bool {
	if m := s.Find(scope, match); m != nil {
		mut(m)
		return true
	}
	return false
}

// Each applies mut to every record in the scope.
func (s *Store) Each(scope models.ScopeID, mut func(*models.Message)) {
	for _, m := range s.seqs[scope] {
		mut(m)
	}
}

// Replace swaps the first record matching the predicate for repl in place,
// preserving its position. Returns false when nothing matched.
func (s *Store) Replace(scope models.ScopeID, match func(*models.Message) bool, repl *models.Message) bool {
	for i, m := range s.seqs[scope] {
		if match(m) {
			s.seqs[scope][i] = repl
			return true
		}
	}
	return false
}

// Scopes lists every scope currently holding a sequence.
func (s *Store) Scopes() []models.ScopeID {
	out := make([]models.ScopeID, 0, len(s.seqs))
	for sc := range s.seqs {
		out = append(out, sc)
	}
	return out
}

// Last returns the newest record of the scope, or nil when empty.
func (s *Store) Last(scope models.ScopeID) *models.Message {
	seq := s.seqs[scope]
	if len(seq) == 0 {
		return nil
	}
	return seq[len(seq)-1]
}
