// Package ledger keeps pre-mutation snapshots of records with an
// optimistic edit or delete in flight, so a later failure can restore the
// exact prior state.
package ledger

import (
	"fmt"

	"chatsync/pkg/models"
)

// OpKind names the reversible operation a snapshot belongs to.
type OpKind string

const (
	OpEdit   OpKind = "edit"
	OpDelete OpKind = "delete"
)

// Key identifies one pending operation: kind plus the record's identity.
type Key struct {
	Kind OpKind
	Ref  string
}

// RecordRef builds the identity half of a key: the server id when known,
// otherwise a composite of author and original timestamp.
func RecordRef(id, username string, ts int64) string {
	if id != "" {
		return id
	}
	return fmt.Sprintf("%s|%d", username, ts)
}

// Entry stores the scope and the deep snapshot captured immediately
// before the optimistic mutation. The snapshot is held by value; the live
// record can never reach it.
type Entry struct {
	Scope    models.ScopeID
	Snapshot models.Message
}

// Ledger maps pending-operation keys to snapshot entries. It is only
// touched under the engine's lock.
type Ledger struct {
	entries map[Key]Entry
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[Key]Entry)}
}

// Capture stores a snapshot under the key unless one is already present.
// First writer wins: a second concurrent attempt on the same key must not
// overwrite the true pre-mutation state. Reports whether the snapshot was
// stored.
func (l *Ledger) Capture(k Key, scope models.ScopeID, snap models.Message) bool {
	if _, ok := l.entries[k]; ok {
		return false
	}
	l.entries[k] = Entry{Scope: scope, Snapshot: snap}
	return true
}

// Take removes and returns the entry for the key. Each entry is resolved
// exactly once, by either a success (discarded) or a failure (restored).
func (l *Ledger) Take(k Key) (Entry, bool) {
	e, ok := l.entries[k]
	if ok {
		delete(l.entries, k)
	}
	return e, ok
}

// Has reports whether a snapshot is pending under the key.
func (l *Ledger) Has(k Key) bool {
	_, ok := l.entries[k]
	return ok
}

// Len returns the number of pending entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}
