package engine

import (
	"encoding/json"
	"time"

	"chatsync/pkg/ledger"
	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/notify"
	"chatsync/pkg/telemetry"
)

// Subscribe attaches the inbound handler table to the channel adapter.
// Each handler decodes its payload and hands off under the engine lock,
// so local intent and remote events stay strictly serialized.
func (e *Engine) Subscribe() {
	table := map[string]func(json.RawMessage){
		evHistory:         e.onHistory,
		evMessage:         e.onMessage,
		evEditConfirmed:   e.onEditConfirmed,
		evDeleteConfirmed: e.onDeleteConfirmed,
		evReactionState:   e.onReactionState,
		evEditError:       e.onEditError,
		evDeleteError:     e.onDeleteError,
		evReactionError:   e.onReactionError,
		evTyping:          e.onTyping,
	}
	for name, h := range table {
		name, h := name, h
		e.ch.On(name, func(payload json.RawMessage) {
			telemetry.InboundEvents.WithLabelValues(name).Inc()
			h(payload)
		})
	}
}

func (e *Engine) onHistory(payload json.RawMessage) {
	var ev HistoryEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		logger.Warn("bad_history_event", "error", err)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	// full replace, not append: replayed history after a reconnect must
	// not duplicate what we already hold
	seq := make([]*models.Message, 0, len(ev.Messages))
	for i := range ev.Messages {
		m := ev.Messages[i]
		m.Scope = ev.Scope
		if m.Reactions == nil {
			m.Reactions = map[string]models.Reaction{}
		}
		seq = append(seq, &m)
	}
	e.threads.ReplaceAll(ev.Scope, seq)
	e.persist(ev.Scope)
}

func (e *Engine) onMessage(payload json.RawMessage) {
	var m models.Message
	if err := json.Unmarshal(payload, &m); err != nil {
		logger.Warn("bad_message_event", "error", err)
		return
	}
	scope := m.Scope
	e.mu.Lock()
	defer e.mu.Unlock()

	// at-least-once tolerance: a record we already hold by server id is
	// a duplicate, full stop
	if m.ID != "" {
		if e.threads.Find(scope, func(x *models.Message) bool { return x.ID == m.ID }) != nil {
			telemetry.DuplicatesSuppressed.Inc()
			return
		}
	}

	// echo of our own optimistic send: primary match by local id
	if m.LocalID != "" {
		if rec := e.threads.Find(scope, func(x *models.Message) bool { return x.LocalID == m.LocalID }); rec != nil {
			e.adopt(rec, &m)
			e.persist(scope)
			return
		}
	}

	// slow echo from another client instance of ours can lack the local
	// id; absorb it by content before duplicating. Two rapid identical
	// sends can in principle collapse here; that matches the deployed
	// behavior this engine reproduces.
	if e.isSelf(m.UserID, m.Username) {
		if rec := e.threads.Find(scope, func(x *models.Message) bool {
			return x.ID == "" &&
				x.Text == m.Text &&
				x.Kind == m.Kind &&
				x.Media.Fingerprint() == m.Media.Fingerprint() &&
				sameReplyTarget(x.ReplyTo, m.ReplyTo)
		}); rec != nil {
			telemetry.EchoAbsorbed.Inc()
			e.adopt(rec, &m)
			e.persist(scope)
			return
		}
	}

	rec := m.Clone()
	if rec.Reactions == nil {
		rec.Reactions = map[string]models.Reaction{}
	}
	e.threads.Append(scope, &rec)
	e.unread.Observe(scope, rec.TS, e.isSelf(rec.UserID, rec.Username))
	e.persist(scope)
}

// adopt merges a confirmed server record into the optimistic one in
// place, retaining the local id for the reconciliation window.
func (e *Engine) adopt(rec *models.Message, srv *models.Message) {
	rec.ID = srv.ID
	if srv.TS != 0 {
		rec.TS = srv.TS
	}
	rec.Text = srv.Text
	if srv.Kind != "" {
		rec.Kind = srv.Kind
	}
	if srv.Media != nil {
		rec.Media = srv.Media
	}
	if srv.Audio != nil {
		rec.Audio = srv.Audio
	}
	if srv.ReplyTo != nil {
		rec.ReplyTo = srv.ReplyTo
	}
	if srv.Reactions != nil {
		rec.Reactions = srv.Reactions
	}
	rec.Edited = srv.Edited
	if srv.LastEditedAt != 0 {
		rec.LastEditedAt = srv.LastEditedAt
	}
	if srv.Deleted {
		rec.Deleted = true
		rec.DeletedAt = srv.DeletedAt
		rec.Text = ""
		rec.Media = nil
		rec.Audio = nil
	}
}

func (e *Engine) onEditConfirmed(payload json.RawMessage) {
	var ev EditResultEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		logger.Warn("bad_edit_confirmed", "error", err)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.takeLedger(ledger.OpEdit, ev.Target)

	rec := e.resolve(ev.Scope, ev.Target)
	if rec != nil {
		if ev.NewText != "" {
			rec.Text = ev.NewText
		}
		rec.Edited = true
		if ev.EditedAt != 0 {
			rec.LastEditedAt = ev.EditedAt
		}
		// embedded reply previews catch up eventually; do it now
		e.patchReplyPreviews(ev.Scope, rec, func(ref *models.ReplyRef) {
			ref.Text = rec.Text
		})
	}
	e.persist(ev.Scope)
}

func (e *Engine) onDeleteConfirmed(payload json.RawMessage) {
	var ev DeleteResultEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		logger.Warn("bad_delete_confirmed", "error", err)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.takeLedger(ledger.OpDelete, ev.Target)

	rec := e.resolve(ev.Scope, ev.Target)
	if rec != nil {
		at := ev.DeletedAt
		if at == 0 {
			at = rec.DeletedAt
		}
		rec.Tombstone(at)
		e.patchReplyPreviews(ev.Scope, rec, func(ref *models.ReplyRef) {
			ref.Deleted = true
			ref.DeletedAt = at
			ref.Text = ""
			ref.Media = nil
			ref.Audio = nil
		})
	}
	e.persist(ev.Scope)
}

func (e *Engine) onReactionState(payload json.RawMessage) {
	var ev ReactionStateEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		logger.Warn("bad_reaction_state", "error", err)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.resolve(ev.Scope, ev.Target)
	if rec == nil {
		return
	}
	// authoritative snapshot: replace the whole map, never merge, so
	// concurrent reactions by other participants cannot diverge
	if ev.Reactions == nil {
		rec.Reactions = map[string]models.Reaction{}
	} else {
		rec.Reactions = ev.Reactions
	}
	e.persist(ev.Scope)
}

func (e *Engine) onEditError(payload json.RawMessage) {
	var ev EditResultEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		logger.Warn("bad_edit_error", "error", err)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rollback(ledger.OpEdit, ev.Scope, ev.Target)
	e.notices.Notify(notify.LevelError, "couldn't edit message")
}

func (e *Engine) onDeleteError(payload json.RawMessage) {
	var ev DeleteResultEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		logger.Warn("bad_delete_error", "error", err)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rollback(ledger.OpDelete, ev.Scope, ev.Target)
	e.notices.Notify(notify.LevelError, "couldn't delete message")
}

func (e *Engine) onReactionError(payload json.RawMessage) {
	var ev ReactionStateEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		logger.Warn("bad_reaction_error", "error", err)
		return
	}
	// reactions are idempotent and low-stakes: the optimistic state
	// stands, only a notice surfaces
	e.notices.Notify(notify.LevelWarn, "couldn't update reaction")
}

func (e *Engine) onTyping(payload json.RawMessage) {
	var ev TypingEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		logger.Warn("bad_typing_event", "error", err)
		return
	}
	if e.isSelf(ev.UserID, ev.Username) {
		return
	}
	if !ev.Typing {
		e.presence.Clear(ev.Scope, ev.UserID)
		return
	}
	ttl := time.Duration(ev.TTLMS) * time.Millisecond
	e.presence.Set(ev.Scope, ev.UserID, ev.Username, ttl)
}

// takeLedger removes the pending entry for the target, trying the server
// id key first and the author+timestamp composite second (the capture may
// predate the id assignment).
func (e *Engine) takeLedger(kind ledger.OpKind, t TargetRef) (ledger.Entry, bool) {
	if t.MessageID != "" {
		if entry, ok := e.ledger.Take(ledger.Key{Kind: kind, Ref: t.MessageID}); ok {
			return entry, true
		}
	}
	if t.Username != "" && t.TS != 0 {
		if entry, ok := e.ledger.Take(ledger.Key{Kind: kind, Ref: ledger.RecordRef("", t.Username, t.TS)}); ok {
			return entry, true
		}
	}
	return ledger.Entry{}, false
}

// rollback restores the pre-mutation snapshot into the live sequence: at
// the matching position when one exists, appended otherwise. Restoring
// user intent outranks placement tidiness.
func (e *Engine) rollback(kind ledger.OpKind, scope models.ScopeID, t TargetRef) {
	entry, ok := e.takeLedger(kind, t)
	if !ok {
		return
	}
	telemetry.Rollbacks.WithLabelValues(string(kind)).Inc()

	snap := entry.Snapshot.Clone()
	restored := &snap
	match := func(m *models.Message) bool {
		if snap.ID != "" {
			return m.ID == snap.ID
		}
		return m.Username == snap.Username && m.TS == snap.TS
	}
	if !e.threads.Replace(entry.Scope, match, restored) {
		e.threads.Append(entry.Scope, restored)
	}
	e.persist(entry.Scope)
}

// patchReplyPreviews rewrites the denormalized snapshots of records that
// reply to rec.
func (e *Engine) patchReplyPreviews(scope models.ScopeID, rec *models.Message, patch func(*models.ReplyRef)) {
	e.threads.Each(scope, func(m *models.Message) {
		ref := m.ReplyTo
		if ref == nil {
			return
		}
		if (rec.ID != "" && ref.MessageID == rec.ID) ||
			(ref.Username == rec.Username && ref.TS == rec.TS) {
			patch(ref)
		}
	})
}

func sameReplyTarget(a, b *models.ReplyRef) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.MessageID != "" && a.MessageID == b.MessageID {
		return true
	}
	return a.Username == b.Username && a.TS == b.TS
}
