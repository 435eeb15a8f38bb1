package engine

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"chatsync/pkg/channel"
	"chatsync/pkg/ledger"
	"chatsync/pkg/models"
)

type emission struct {
	op      string
	payload any
}

// fakeChannel records emissions and lets tests fire inbound events
// synchronously, standing in for the remote peer.
type fakeChannel struct {
	mu       sync.Mutex
	handlers map[string][]channel.Handler
	emitted  []emission
	ch       chan emission
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		handlers: make(map[string][]channel.Handler),
		ch:       make(chan emission, 32),
	}
}

func (f *fakeChannel) Emit(event string, payload any) error {
	f.mu.Lock()
	f.emitted = append(f.emitted, emission{event, payload})
	f.mu.Unlock()
	f.ch <- emission{event, payload}
	return nil
}

func (f *fakeChannel) On(event string, h channel.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = append(f.handlers[event], h)
}

func (f *fakeChannel) fire(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s: %v", event, err)
	}
	f.mu.Lock()
	hs := append([]channel.Handler(nil), f.handlers[event]...)
	f.mu.Unlock()
	if len(hs) == 0 {
		t.Fatalf("no handler for %s", event)
	}
	for _, h := range hs {
		h(data)
	}
}

func (f *fakeChannel) expectEmit(t *testing.T, op string) emission {
	t.Helper()
	select {
	case em := <-f.ch:
		if em.op != op {
			t.Fatalf("emitted %s, want %s", em.op, op)
		}
		return em
	case <-time.After(time.Second):
		t.Fatalf("no %s emission", op)
		return emission{}
	}
}

func (f *fakeChannel) expectNoEmit(t *testing.T) {
	t.Helper()
	select {
	case em := <-f.ch:
		t.Fatalf("unexpected emission %s", em.op)
	case <-time.After(50 * time.Millisecond):
	}
}

var self = Identity{UserID: "u-self", Username: "ana"}

func newTestEngine(t *testing.T) (*Engine, *fakeChannel) {
	t.Helper()
	fc := newFakeChannel()
	e := New(Options{Self: self, Channel: fc, TypingRate: 1000, TypingBurst: 1000})
	e.Subscribe()
	return e, fc
}

func TestSendAppendsOptimistically(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")

	msg, err := e.SendMessage(scope, SendInput{Text: "hello"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.LocalID == "" || msg.ID != "" {
		t.Fatalf("optimistic record ids wrong: %+v", msg)
	}
	if got := e.Messages(scope); len(got) != 1 || got[0].Text != "hello" {
		t.Fatalf("sequence after send: %v", got)
	}
	fc.expectEmit(t, "send")
}

func TestSendEmptyRefused(t *testing.T) {
	e, fc := newTestEngine(t)
	if _, err := e.SendMessage("room1", SendInput{Text: "   "}); err != ErrEmptyMessage {
		t.Fatalf("err = %v", err)
	}
	fc.expectNoEmit(t)

	// structured payload makes empty text legal
	if _, err := e.SendMessage("room1", SendInput{Media: &models.Media{URL: "u"}}); err != nil {
		t.Fatalf("media send refused: %v", err)
	}
	fc.expectEmit(t, "send")
}

func TestSendRetrySameLocalIDUpdatesInPlace(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")

	first, _ := e.SendMessage(scope, SendInput{Text: "draft"})
	fc.expectEmit(t, "send")

	if _, err := e.SendMessage(scope, SendInput{Text: "final", LocalID: first.LocalID}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	fc.expectEmit(t, "send")

	got := e.Messages(scope)
	if len(got) != 1 {
		t.Fatalf("retry appended a duplicate: %d records", len(got))
	}
	if got[0].Text != "final" {
		t.Fatalf("retry did not update in place: %q", got[0].Text)
	}
}

func TestLocalIDReconciliation(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")

	msg, _ := e.SendMessage(scope, SendInput{Text: "hello"})
	fc.expectEmit(t, "send")

	echo := models.Message{
		ID: "srv-1", LocalID: msg.LocalID, Scope: scope,
		UserID: self.UserID, Username: self.Username,
		Text: "hello", Kind: models.KindText, TS: 12345,
	}
	fc.fire(t, "message", echo)

	got := e.Messages(scope)
	if len(got) != 1 {
		t.Fatalf("echo duplicated the record: %d", len(got))
	}
	if got[0].ID != "srv-1" || got[0].TS != 12345 {
		t.Fatalf("server identity not adopted: %+v", got[0])
	}
	if got[0].LocalID != msg.LocalID {
		t.Fatalf("local id dropped during the reconciliation window")
	}
}

func TestDuplicateSuppressionByServerID(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")

	peer := models.Message{ID: "srv-9", Scope: scope, UserID: "u-peer", Username: "bea", Text: "hi", TS: 10}
	fc.fire(t, "message", peer)
	fc.fire(t, "message", peer)

	if got := e.Messages(scope); len(got) != 1 {
		t.Fatalf("duplicate not suppressed: %d records", len(got))
	}
	if e.Unread().Count(scope) != 1 {
		t.Fatalf("duplicate counted twice: %d", e.Unread().Count(scope))
	}
}

func TestHeuristicEchoAbsorption(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")

	e.SendMessage(scope, SendInput{Text: "ping", Media: &models.Media{URL: "cdn/x"}})
	fc.expectEmit(t, "send")

	// echo without the local id, as another client instance would send
	echo := models.Message{
		ID: "srv-2", Scope: scope, UserID: self.UserID, Username: self.Username,
		Text: "ping", Kind: models.KindMedia, Media: &models.Media{URL: "cdn/x"}, TS: 99,
	}
	fc.fire(t, "message", echo)

	got := e.Messages(scope)
	if len(got) != 1 {
		t.Fatalf("slow echo duplicated the record: %d", len(got))
	}
	if got[0].ID != "srv-2" {
		t.Fatalf("echo not absorbed: %+v", got[0])
	}
}

func TestPeerMessageAppendsAndCounts(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")

	fc.fire(t, "message", models.Message{ID: "srv-3", Scope: scope, UserID: "u-peer", Username: "bea", Text: "yo", TS: 5})
	if got := e.Messages(scope); len(got) != 1 || got[0].Username != "bea" {
		t.Fatalf("peer message missing: %v", got)
	}
	if e.Unread().Count(scope) != 1 {
		t.Fatalf("unread = %d", e.Unread().Count(scope))
	}
}

func TestUnreadSuppressedWhileFocused(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")
	other := models.ScopeID("room2")

	e.Focus(scope)
	fc.fire(t, "message", models.Message{ID: "srv-4", Scope: scope, UserID: "u-peer", Username: "bea", Text: "a", TS: 1})
	if e.Unread().Count(scope) != 0 {
		t.Fatalf("focused scope counted: %d", e.Unread().Count(scope))
	}

	e.Focus(other)
	fc.fire(t, "message", models.Message{ID: "srv-5", Scope: scope, UserID: "u-peer", Username: "bea", Text: "b", TS: 2})
	if e.Unread().Count(scope) != 1 {
		t.Fatalf("unfocused scope not counted: %d", e.Unread().Count(scope))
	}
}

func TestHistoryReplaces(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")

	fc.fire(t, "message", models.Message{ID: "old", Scope: scope, Username: "bea", Text: "old", TS: 1})
	hist := HistoryEvent{Scope: scope, Messages: []models.Message{
		{ID: "h1", Username: "bea", Text: "one", TS: 1},
		{ID: "h2", Username: "ana", Text: "two", TS: 2},
	}}
	fc.fire(t, "history", hist)
	fc.fire(t, "history", hist) // replay must not append

	got := e.Messages(scope)
	if len(got) != 2 || got[0].ID != "h1" || got[1].ID != "h2" {
		t.Fatalf("history replace wrong: %v", got)
	}
}

func TestEditOptimisticAndConfirm(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")

	fc.fire(t, "message", models.Message{ID: "srv-1", Scope: scope, UserID: self.UserID, Username: self.Username, Text: "A", TS: 10})
	if err := e.EditMessage(scope, TargetRef{MessageID: "srv-1"}, "B"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	fc.expectEmit(t, "edit")

	got := e.Messages(scope)
	if got[0].Text != "B" || !got[0].Edited {
		t.Fatalf("optimistic edit missing: %+v", got[0])
	}

	fc.fire(t, "edit-confirmed", EditResultEvent{Scope: scope, Target: TargetRef{MessageID: "srv-1", Username: self.Username, TS: 10}, NewText: "B", EditedAt: 777})
	got = e.Messages(scope)
	if got[0].LastEditedAt != 777 {
		t.Fatalf("server edit time not adopted: %+v", got[0])
	}
	if e.ledger.Len() != 0 {
		t.Fatalf("ledger entry not discarded on confirm")
	}
}

func TestEditRollback(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")

	fc.fire(t, "message", models.Message{ID: "srv-1", Scope: scope, UserID: self.UserID, Username: self.Username, Text: "A", TS: 10})
	e.EditMessage(scope, TargetRef{MessageID: "srv-1"}, "B")
	fc.expectEmit(t, "edit")

	fc.fire(t, "edit-error", EditResultEvent{Scope: scope, Target: TargetRef{MessageID: "srv-1"}, Reason: "nope"})

	got := e.Messages(scope)
	if got[0].Text != "A" || got[0].Edited {
		t.Fatalf("rollback incomplete: %+v", got[0])
	}
	if e.ledger.Has(ledger.Key{Kind: ledger.OpEdit, Ref: "srv-1"}) {
		t.Fatalf("ledger still holds the key after rollback")
	}
}

func TestEditValidation(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")
	fc.fire(t, "message", models.Message{ID: "srv-1", Scope: scope, UserID: "u-peer", Username: "bea", Text: "hi", TS: 10})

	if err := e.EditMessage(scope, TargetRef{MessageID: "srv-1"}, "  "); err != ErrEmptyEdit {
		t.Fatalf("empty edit err = %v", err)
	}
	if err := e.EditMessage(scope, TargetRef{MessageID: "srv-1"}, "x"); err != ErrNotAuthor {
		t.Fatalf("foreign edit err = %v", err)
	}
	fc.expectNoEmit(t)
}

func TestEditSnapshotFirstWriterWins(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")

	fc.fire(t, "message", models.Message{ID: "srv-1", Scope: scope, UserID: self.UserID, Username: self.Username, Text: "A", TS: 10})
	e.EditMessage(scope, TargetRef{MessageID: "srv-1"}, "B")
	fc.expectEmit(t, "edit")
	e.EditMessage(scope, TargetRef{MessageID: "srv-1"}, "C")
	fc.expectEmit(t, "edit")

	// failure of either attempt restores the true pre-edit text
	fc.fire(t, "edit-error", EditResultEvent{Scope: scope, Target: TargetRef{MessageID: "srv-1"}})
	if got := e.Messages(scope); got[0].Text != "A" {
		t.Fatalf("snapshot was overwritten by second edit: %q", got[0].Text)
	}
}

func TestEditConfirmPatchesReplyPreviews(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")

	fc.fire(t, "message", models.Message{ID: "srv-1", Scope: scope, UserID: self.UserID, Username: self.Username, Text: "A", TS: 10})
	fc.fire(t, "message", models.Message{
		ID: "srv-2", Scope: scope, UserID: "u-peer", Username: "bea", Text: "re", TS: 11,
		ReplyTo: &models.ReplyRef{MessageID: "srv-1", Username: self.Username, Text: "A", TS: 10},
	})

	e.EditMessage(scope, TargetRef{MessageID: "srv-1"}, "B")
	fc.expectEmit(t, "edit")
	fc.fire(t, "edit-confirmed", EditResultEvent{Scope: scope, Target: TargetRef{MessageID: "srv-1"}, NewText: "B"})

	got := e.Messages(scope)
	if got[1].ReplyTo.Text != "B" {
		t.Fatalf("reply preview not patched: %+v", got[1].ReplyTo)
	}
}

func TestDeleteTombstoneAndRollback(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")

	orig := models.Message{
		ID: "srv-1", Scope: scope, UserID: self.UserID, Username: self.Username,
		Text: "bye", Kind: models.KindMedia, Media: &models.Media{URL: "cdn/pic", Width: 10}, TS: 10,
	}
	fc.fire(t, "message", orig)

	if err := e.DeleteMessage(scope, TargetRef{MessageID: "srv-1"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	fc.expectEmit(t, "delete")

	got := e.Messages(scope)
	if !got[0].Deleted || got[0].Text != "" || got[0].Media != nil {
		t.Fatalf("tombstone incomplete: %+v", got[0])
	}

	fc.fire(t, "delete-error", DeleteResultEvent{Scope: scope, Target: TargetRef{MessageID: "srv-1"}})
	got = e.Messages(scope)
	if got[0].Deleted {
		t.Fatalf("rollback left tombstone: %+v", got[0])
	}
	if got[0].Text != "bye" || got[0].Media == nil || got[0].Media.URL != "cdn/pic" || got[0].Media.Width != 10 {
		t.Fatalf("payload not restored exactly: %+v", got[0])
	}
}

func TestDeleteUnconfirmedRefused(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")

	msg, _ := e.SendMessage(scope, SendInput{Text: "in flight"})
	fc.expectEmit(t, "send")

	if err := e.DeleteMessage(scope, TargetRef{LocalID: msg.LocalID}); err != ErrUnconfirmedDelete {
		t.Fatalf("err = %v", err)
	}
	fc.expectNoEmit(t)
	if got := e.Messages(scope); got[0].Deleted {
		t.Fatalf("refused delete still tombstoned the record")
	}
}

func TestDeleteResolvesStaleReference(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")

	// caller holds only (author, ts) from before reconciliation
	fc.fire(t, "message", models.Message{ID: "srv-1", Scope: scope, UserID: self.UserID, Username: self.Username, Text: "x", TS: 42})
	if err := e.DeleteMessage(scope, TargetRef{Username: self.Username, TS: 42}); err != nil {
		t.Fatalf("stale ref not resolved: %v", err)
	}
	fc.expectEmit(t, "delete")
}

func TestRollbackAppendsWhenPositionGone(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")

	fc.fire(t, "message", models.Message{ID: "srv-1", Scope: scope, UserID: self.UserID, Username: self.Username, Text: "A", TS: 10})
	e.EditMessage(scope, TargetRef{MessageID: "srv-1"}, "B")
	fc.expectEmit(t, "edit")

	// the scope was cleared while the edit was in flight
	e.ClearThread(scope)

	fc.fire(t, "edit-error", EditResultEvent{Scope: scope, Target: TargetRef{MessageID: "srv-1"}})
	got := e.Messages(scope)
	if len(got) != 1 || got[0].Text != "A" {
		t.Fatalf("restored snapshot not appended: %v", got)
	}
}

func TestReactionToggle(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")
	fc.fire(t, "message", models.Message{ID: "srv-1", Scope: scope, UserID: "u-peer", Username: "bea", Text: "hi", TS: 10})

	e.ToggleReaction(scope, TargetRef{MessageID: "srv-1"}, "heart")
	fc.expectEmit(t, "react")
	got := e.Messages(scope)
	if r := got[0].Reactions[self.UserID]; r.Emoji != "heart" {
		t.Fatalf("reaction not set: %+v", got[0].Reactions)
	}

	// different emoji replaces
	e.ToggleReaction(scope, TargetRef{MessageID: "srv-1"}, "fire")
	fc.expectEmit(t, "react")
	if r := e.Messages(scope)[0].Reactions[self.UserID]; r.Emoji != "fire" {
		t.Fatalf("reaction not replaced: %+v", r)
	}

	// same emoji toggles off
	e.ToggleReaction(scope, TargetRef{MessageID: "srv-1"}, "fire")
	fc.expectEmit(t, "react")
	if got := e.Messages(scope)[0].Reactions; len(got) != 0 {
		t.Fatalf("reaction not removed: %+v", got)
	}
}

func TestReactionStateFullReplace(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")
	fc.fire(t, "message", models.Message{ID: "srv-1", Scope: scope, UserID: "u-peer", Username: "bea", Text: "hi", TS: 10})

	e.ToggleReaction(scope, TargetRef{MessageID: "srv-1"}, "heart")
	fc.expectEmit(t, "react")

	// authoritative empty map clears the optimistic reaction
	fc.fire(t, "reaction-state", ReactionStateEvent{Scope: scope, Target: TargetRef{MessageID: "srv-1"}, Reactions: map[string]models.Reaction{}})
	if got := e.Messages(scope)[0].Reactions; len(got) != 0 {
		t.Fatalf("reaction-state merged instead of replaced: %+v", got)
	}
}

func TestReactionErrorLeavesOptimisticState(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")
	fc.fire(t, "message", models.Message{ID: "srv-1", Scope: scope, UserID: "u-peer", Username: "bea", Text: "hi", TS: 10})

	e.ToggleReaction(scope, TargetRef{MessageID: "srv-1"}, "heart")
	fc.expectEmit(t, "react")
	fc.fire(t, "reaction-error", ReactionStateEvent{Scope: scope, Target: TargetRef{MessageID: "srv-1"}, Reason: "nope"})

	if r := e.Messages(scope)[0].Reactions[self.UserID]; r.Emoji != "heart" {
		t.Fatalf("reaction rolled back but should stand: %+v", r)
	}
}

func TestReplyUnresolvedAbortsSend(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")

	// replying to a message that never confirmed
	ref := &models.ReplyRef{Username: "bea", TS: 123, Text: "ghost"}
	if _, err := e.SendMessage(scope, SendInput{Text: "re", ReplyTo: ref}); err != ErrReplyUnresolved {
		t.Fatalf("err = %v", err)
	}
	fc.expectNoEmit(t)
	if got := e.Messages(scope); len(got) != 0 {
		t.Fatalf("aborted send left a record: %v", got)
	}
}

func TestReplyRecoversConfirmedID(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")

	fc.fire(t, "message", models.Message{ID: "srv-7", Scope: scope, UserID: "u-peer", Username: "bea", Text: "orig", TS: 123})

	ref := &models.ReplyRef{Username: "bea", TS: 123, Text: "orig"}
	if _, err := e.SendMessage(scope, SendInput{Text: "re", ReplyTo: ref}); err != nil {
		t.Fatalf("send: %v", err)
	}
	em := fc.expectEmit(t, "send")
	op := em.payload.(SendOp)
	if op.ReplyTo == nil || op.ReplyTo.MessageID != "srv-7" {
		t.Fatalf("confirmed id not recovered: %+v", op.ReplyTo)
	}
}

func TestSendPayloadDetachedFromLiveRecord(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")

	fc.fire(t, "message", models.Message{ID: "srv-1", Scope: scope, UserID: self.UserID, Username: self.Username, Text: "A", TS: 10})

	if _, err := e.SendMessage(scope, SendInput{Text: "re", ReplyTo: &models.ReplyRef{MessageID: "srv-1", Username: self.Username, Text: "A", TS: 10}}); err != nil {
		t.Fatalf("send: %v", err)
	}
	op := fc.expectEmit(t, "send").payload.(SendOp)

	e.EditMessage(scope, TargetRef{MessageID: "srv-1"}, "B")
	fc.expectEmit(t, "edit")
	fc.fire(t, "edit-confirmed", EditResultEvent{Scope: scope, Target: TargetRef{MessageID: "srv-1"}, NewText: "B"})

	// patching the live preview must not reach through into the payload
	// handed to the channel
	if got := e.Messages(scope); got[1].ReplyTo.Text != "B" {
		t.Fatalf("live preview not patched: %+v", got[1].ReplyTo)
	}
	if op.ReplyTo == nil || op.ReplyTo.Text != "A" {
		t.Fatalf("emitted payload aliases live record: %+v", op.ReplyTo)
	}
}

func TestTypingFanIn(t *testing.T) {
	e, fc := newTestEngine(t)
	scope := models.ScopeID("room1")

	fc.fire(t, "typing", TypingEvent{Scope: scope, UserID: "u-peer", Username: "bea", Typing: true, TTLMS: 60000})
	if !e.Presence().IsTyping(scope, "u-peer") {
		t.Fatalf("peer typing not recorded")
	}

	fc.fire(t, "typing", TypingEvent{Scope: scope, UserID: "u-peer", Username: "bea", Typing: false})
	if e.Presence().IsTyping(scope, "u-peer") {
		t.Fatalf("typing=false did not clear entry")
	}

	// own echo is ignored
	fc.fire(t, "typing", TypingEvent{Scope: scope, UserID: self.UserID, Username: self.Username, Typing: true})
	if e.Presence().IsTyping(scope, self.UserID) {
		t.Fatalf("own typing echo recorded")
	}
}

func TestSetTypingEmits(t *testing.T) {
	e, fc := newTestEngine(t)
	e.SetTyping("room1", true)
	em := fc.expectEmit(t, "typing")
	op := em.payload.(TypingOp)
	if !op.Typing || op.TTLMS == 0 {
		t.Fatalf("typing op wrong: %+v", op)
	}
}

func TestThreadListing(t *testing.T) {
	e, fc := newTestEngine(t)
	a := models.ScopeID("rooma")
	b := models.DirectScope("ana", "bea")

	fc.fire(t, "message", models.Message{ID: "m1", Scope: a, Username: "bea", UserID: "u-peer", Text: "1", TS: 100})
	fc.fire(t, "message", models.Message{ID: "m2", Scope: b, Username: "bea", UserID: "u-peer", Text: "2", TS: 200})

	list := e.Threads()
	if len(list) != 2 || list[0].Scope != b || list[1].Scope != a {
		t.Fatalf("listing order wrong: %+v", list)
	}
	if list[0].Unread != 1 {
		t.Fatalf("listing unread wrong: %+v", list[0])
	}

	// hide a; an older message keeps it hidden, a newer one restores it
	e.Hide(a)
	if got := e.Threads(); len(got) != 1 {
		t.Fatalf("hidden scope still listed: %+v", got)
	}
	fc.fire(t, "message", models.Message{ID: "m3", Scope: a, Username: "bea", UserID: "u-peer", Text: "3", TS: time.Now().UnixMilli() + 60000})
	if got := e.Threads(); len(got) != 2 {
		t.Fatalf("newer message did not un-hide: %+v", got)
	}
}
