// Package notify collects transient user notices. Operation-level
// failures surface here instead of tearing anything down; entries
// auto-dismiss by age, pruned lazily on read like typing entries.
package notify

import (
	"sync"
	"time"
)

// DefaultTTL is how long a notice stays visible.
const DefaultTTL = 5 * time.Second

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notice is one transient message for the user.
type Notice struct {
	Level Level     `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// Notifier is the engine-facing surface.
type Notifier interface {
	Notify(level Level, text string)
}

// Store is a bounded in-memory notice list.
type Store struct {
	mu      sync.Mutex
	notices []Notice
	ttl     time.Duration

	Now func() time.Time
}

// New creates a store with the given ttl; non-positive means DefaultTTL.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{ttl: ttl, Now: time.Now}
}

// Notify appends a notice.
func (s *Store) Notify(level Level, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	s.notices = append(s.notices, Notice{Level: level, Text: text, At: s.Now()})
}

// List returns the live notices, pruning expired ones first.
func (s *Store) List() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	out := make([]Notice, len(s.notices))
	copy(out, s.notices)
	return out
}

func (s *Store) pruneLocked() {
	cutoff := s.Now().Add(-s.ttl)
	keep := s.notices[:0]
	for _, n := range s.notices {
		if n.At.After(cutoff) {
			keep = append(keep, n)
		}
	}
	s.notices = keep
}
