// Package journal persists reconciled message sequences in a local
// Pebble database so threads survive restarts and cold starts render
// without waiting for history.
package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"chatsync/pkg/logger"
	"chatsync/pkg/models"
)

// Store is a Pebble-backed journal. All methods are safe for use from
// the engine's serialized mutation path.
type Store struct {
	db *pebble.DB

	// seq breaks key collisions when records share a timestamp.
	seq uint64
}

// Open opens (or creates) the journal database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, err
	}
	logger.Info("opening_journal", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("journal_open_failed", "path", path, "error", err)
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	logger.Info("journal_closed")
	return err
}

// Ready reports whether the journal is open.
func (s *Store) Ready() bool {
	return s != nil && s.db != nil
}

func scopePrefix(scope models.ScopeID) []byte {
	return []byte(fmt.Sprintf("scope:%s:msg:", scope))
}

func (s *Store) recordKey(scope models.ScopeID, ts int64) []byte {
	n := atomic.AddUint64(&s.seq, 1)
	return []byte(fmt.Sprintf("scope:%s:msg:%020d-%06d", scope, ts, n))
}

// SaveMessage appends one record under a sortable timestamp key.
func (s *Store) SaveMessage(scope models.ScopeID, m models.Message) error {
	if !s.Ready() {
		return fmt.Errorf("journal not opened")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	key := s.recordKey(scope, m.TS)
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		logger.Error("journal_save_failed", "scope", scope, "key", string(key), "error", err)
		return err
	}
	return nil
}

// ReplaceScope atomically swaps the scope's stored sequence for msgs.
// The engine calls this after every reconciliation, so the journal is
// always a snapshot of the live sequence, not an event log.
func (s *Store) ReplaceScope(scope models.ScopeID, msgs []models.Message) error {
	if !s.Ready() {
		return fmt.Errorf("journal not opened")
	}
	prefix := scopePrefix(scope)
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.DeleteRange(prefix, prefixEnd(prefix), nil); err != nil {
		return err
	}
	for i := range msgs {
		data, err := json.Marshal(msgs[i])
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		if err := b.Set(s.recordKey(scope, msgs[i].TS), data, nil); err != nil {
			return err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("journal_replace_failed", "scope", scope, "error", err)
		return err
	}
	return nil
}

// LoadScope returns the stored sequence in timestamp order.
func (s *Store) LoadScope(scope models.ScopeID) ([]models.Message, error) {
	if !s.Ready() {
		return nil, fmt.Errorf("journal not opened")
	}
	prefix := scopePrefix(scope)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for iter.First(); iter.Valid(); iter.Next() {
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Warn("journal_corrupt_record", "scope", scope, "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, m)
	}
	return out, iter.Error()
}

// ClearScope drops every stored record for the scope.
func (s *Store) ClearScope(scope models.ScopeID) error {
	if !s.Ready() {
		return fmt.Errorf("journal not opened")
	}
	prefix := scopePrefix(scope)
	return s.db.DeleteRange(prefix, prefixEnd(prefix), pebble.Sync)
}

// Scopes lists every scope with at least one stored record.
func (s *Store) Scopes() ([]models.ScopeID, error) {
	if !s.Ready() {
		return nil, fmt.Errorf("journal not opened")
	}
	prefix := []byte("scope:")
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.ScopeID
	seen := map[models.ScopeID]bool{}
	for iter.First(); iter.Valid(); iter.Next() {
		k := iter.Key()
		rest := k[len(prefix):]
		idx := bytes.LastIndex(rest, []byte(":msg:"))
		if idx < 0 {
			continue
		}
		sc := models.ScopeID(rest[:idx])
		if !seen[sc] {
			seen[sc] = true
			out = append(out, sc)
		}
	}
	return out, iter.Error()
}

// CompactTombstones removes tombstoned records whose deletion time is
// older than cutoff and returns the number removed. Retention runs this
// on a schedule; live records are never touched.
func (s *Store) CompactTombstones(cutoff time.Time) (int, error) {
	if !s.Ready() {
		return 0, fmt.Errorf("journal not opened")
	}
	before := cutoff.UnixMilli()
	prefix := []byte("scope:")
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return 0, err
	}
	var stale [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if m.Deleted && m.DeletedAt != 0 && m.DeletedAt < before {
			k := make([]byte, len(iter.Key()))
			copy(k, iter.Key())
			stale = append(stale, k)
		}
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}
	b := s.db.NewBatch()
	defer b.Close()
	for _, k := range stale {
		if err := b.Delete(k, nil); err != nil {
			return 0, err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// prefixEnd returns the smallest key greater than every key with the
// prefix.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
