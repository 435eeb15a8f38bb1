// Package engine implements the optimistic message-synchronization core:
// local intent is applied immediately, emitted over the channel, and
// reconciled against asynchronous confirmations, echoes and errors.
package engine

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"chatsync/pkg/channel"
	"chatsync/pkg/ledger"
	"chatsync/pkg/logger"
	"chatsync/pkg/models"
	"chatsync/pkg/notify"
	"chatsync/pkg/presence"
	"chatsync/pkg/telemetry"
	"chatsync/pkg/threads"
	"chatsync/pkg/unread"
)

// Identity is the local user on whose behalf the engine operates.
type Identity struct {
	UserID      string
	Username    string
	Avatar      string
	BubbleColor string
}

// Journal persists reconciled sequences locally. Implementations must
// tolerate being called from the engine's single serialized mutation path.
type Journal interface {
	ReplaceScope(scope models.ScopeID, msgs []models.Message) error
	ClearScope(scope models.ScopeID) error
}

// Options wires the engine's collaborators. Stores default to fresh
// instances; Channel is required.
type Options struct {
	Self    Identity
	Channel channel.Adapter

	Presence *presence.Store
	Unread   *unread.Store
	Notices  notify.Notifier

	// Journal is optional; nil disables local persistence.
	Journal Journal

	// TypingTTL is attached to outbound typing signals.
	TypingTTL time.Duration
	// TypingRate throttles outbound typing emissions per scope.
	TypingRate  float64
	TypingBurst int
}

// Engine orchestrates the thread store, ledger, presence and unread
// bookkeeping. Every mutation, local or inbound, is serialized through
// one mutex; the live sequences have no other writer.
type Engine struct {
	mu sync.Mutex

	self     Identity
	threads  *threads.Store
	ledger   *ledger.Ledger
	presence *presence.Store
	unread   *unread.Store
	notices  notify.Notifier
	ch       channel.Adapter
	journal  Journal

	typingTTL    time.Duration
	typingLimits map[models.ScopeID]*rate.Limiter
	typingRate   rate.Limit
	typingBurst  int

	now func() time.Time
}

type noopNotifier struct{}

func (noopNotifier) Notify(notify.Level, string) {}

// New builds an engine. Call Subscribe to attach the inbound handler
// table to the channel.
func New(opts Options) *Engine {
	if opts.Presence == nil {
		opts.Presence = presence.New()
	}
	if opts.Unread == nil {
		opts.Unread = unread.New()
	}
	if opts.Notices == nil {
		opts.Notices = noopNotifier{}
	}
	if opts.TypingTTL <= 0 {
		opts.TypingTTL = presence.DefaultTTL
	}
	if opts.TypingRate <= 0 {
		opts.TypingRate = 1
	}
	if opts.TypingBurst <= 0 {
		opts.TypingBurst = 2
	}
	return &Engine{
		self:         opts.Self,
		threads:      threads.New(),
		ledger:       ledger.New(),
		presence:     opts.Presence,
		unread:       opts.Unread,
		notices:      opts.Notices,
		ch:           opts.Channel,
		journal:      opts.Journal,
		typingTTL:    opts.TypingTTL,
		typingLimits: make(map[models.ScopeID]*rate.Limiter),
		typingRate:   rate.Limit(opts.TypingRate),
		typingBurst:  opts.TypingBurst,
		now:          time.Now,
	}
}

// Presence exposes the typing store for read-side consumers.
func (e *Engine) Presence() *presence.Store { return e.presence }

// Unread exposes the unread/visibility store for read-side consumers.
func (e *Engine) Unread() *unread.Store { return e.unread }

// Messages returns a detached snapshot of the scope's sequence.
func (e *Engine) Messages(scope models.ScopeID) []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.threads.Snapshot(scope)
}

// ThreadInfo is one row of the thread listing.
type ThreadInfo struct {
	Scope  models.ScopeID  `json:"scopeId"`
	Last   *models.Message `json:"last,omitempty"`
	Unread int             `json:"unread"`
}

// Threads lists visible scopes with their newest record and unread count,
// newest first. Hidden scopes are omitted until a newer message un-hides
// them.
func (e *Engine) Threads() []ThreadInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ThreadInfo, 0)
	for _, sc := range e.threads.Scopes() {
		if !e.unread.Visible(sc) {
			continue
		}
		info := ThreadInfo{Scope: sc, Unread: e.unread.Count(sc)}
		if last := e.threads.Last(sc); last != nil {
			c := last.Clone()
			info.Last = &c
		}
		out = append(out, info)
	}
	// newest activity first
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && lastTS(out[j]) > lastTS(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func lastTS(t ThreadInfo) int64 {
	if t.Last == nil {
		return 0
	}
	return t.Last.TS
}

// Restore seeds a scope's sequence from the journal at startup. It does
// not persist; authoritative history later replaces it wholesale.
func (e *Engine) Restore(scope models.ScopeID, msgs []models.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	seq := make([]*models.Message, 0, len(msgs))
	for i := range msgs {
		m := msgs[i]
		m.Scope = scope
		if m.Reactions == nil {
			m.Reactions = map[string]models.Reaction{}
		}
		seq = append(seq, &m)
	}
	e.threads.ReplaceAll(scope, seq)
}

// Focus marks the scope active; its unread counter resets and inbound
// messages for it stop counting.
func (e *Engine) Focus(scope models.ScopeID) {
	e.unread.Focus(scope)
}

// Hide dismisses the scope from listings as of now. Only a message newer
// than the mark brings it back.
func (e *Engine) Hide(scope models.ScopeID) {
	e.unread.Hide(scope, e.nowMS())
}

// ClearThread drops the scope's sequence and bookkeeping. This is the
// only way records leave the in-memory sequence.
func (e *Engine) ClearThread(scope models.ScopeID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.threads.Clear(scope)
	e.unread.Forget(scope)
	if e.journal != nil {
		if err := e.journal.ClearScope(scope); err != nil {
			logger.Warn("journal_clear_failed", "scope", scope, "error", err)
		}
	}
}

// SendInput is a draft message. Text may be empty only when a structured
// payload is present. LocalID supports retrying one exact send.
type SendInput struct {
	Text    string
	Kind    models.Kind
	Media   *models.Media
	Audio   *models.Audio
	ReplyTo *models.ReplyRef
	LocalID string
}

// SendMessage applies the draft optimistically and emits the outbound
// send. The returned snapshot carries the local id used for the record.
func (e *Engine) SendMessage(scope models.ScopeID, in SendInput) (models.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if strings.TrimSpace(in.Text) == "" && in.Media == nil && in.Audio == nil {
		telemetry.Refused.WithLabelValues(opSend).Inc()
		return models.Message{}, ErrEmptyMessage
	}

	kind := in.Kind
	if kind == "" {
		switch {
		case in.Audio != nil:
			kind = models.KindAudio
		case in.Media != nil:
			kind = models.KindMedia
		default:
			kind = models.KindText
		}
	}

	// A reply target without a server id may have been confirmed since
	// the UI captured the snapshot; recover the id from the live list.
	// Without one the remote side would store an orphaned reply, so the
	// send is aborted instead.
	replyTo := in.ReplyTo
	if replyTo != nil && replyTo.MessageID == "" {
		orig := e.threads.Find(scope, func(m *models.Message) bool {
			return m.Username == replyTo.Username && m.TS == replyTo.TS
		})
		if orig == nil || orig.ID == "" {
			telemetry.Refused.WithLabelValues(opSend).Inc()
			e.notices.Notify(notify.LevelWarn, "that message isn't ready to reply to yet")
			return models.Message{}, ErrReplyUnresolved
		}
		rt := *replyTo
		rt.MessageID = orig.ID
		replyTo = &rt
	}

	var msg *models.Message
	if in.LocalID != "" {
		msg = e.threads.Find(scope, func(m *models.Message) bool {
			return m.LocalID == in.LocalID
		})
	}
	if msg != nil {
		// retry of the same optimistic send: refresh in place, never
		// append a duplicate
		msg.Text = in.Text
		msg.Kind = kind
		msg.Media = in.Media
		msg.Audio = in.Audio
		msg.ReplyTo = replyTo
	} else {
		localID := in.LocalID
		if localID == "" {
			localID = uuid.NewString()
		}
		msg = &models.Message{
			LocalID:     localID,
			Scope:       scope,
			UserID:      e.self.UserID,
			Username:    e.self.Username,
			Avatar:      e.self.Avatar,
			BubbleColor: e.self.BubbleColor,
			TS:          e.nowMS(),
			Text:        in.Text,
			Kind:        kind,
			Media:       in.Media,
			Audio:       in.Audio,
			ReplyTo:     replyTo,
			Reactions:   map[string]models.Reaction{},
		}
		e.threads.Append(scope, msg)
	}

	// The emit goroutine marshals off-lock, so the payload must not
	// alias the live record's pointees.
	wire := msg.Clone()
	e.emit(opSend, SendOp{
		Scope:    scope,
		LocalID:  wire.LocalID,
		UserID:   e.self.UserID,
		Username: e.self.Username,
		Text:     wire.Text,
		TS:       wire.TS,
		Kind:     wire.Kind,
		Media:    wire.Media,
		Audio:    wire.Audio,
		ReplyTo:  wire.ReplyTo,
	})
	return msg.Clone(), nil
}

// EditMessage snapshots the target, applies the new text optimistically
// and emits the outbound edit.
func (e *Engine) EditMessage(scope models.ScopeID, target TargetRef, newText string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	text := strings.TrimSpace(newText)
	if text == "" {
		telemetry.Refused.WithLabelValues(opEdit).Inc()
		e.notices.Notify(notify.LevelWarn, "edited message can't be empty")
		return ErrEmptyEdit
	}

	rec := e.resolve(scope, target)
	if rec == nil {
		telemetry.Refused.WithLabelValues(opEdit).Inc()
		e.notices.Notify(notify.LevelWarn, "message not found")
		return ErrTargetNotFound
	}
	if !e.isSelf(rec.UserID, rec.Username) {
		telemetry.Refused.WithLabelValues(opEdit).Inc()
		return ErrNotAuthor
	}

	key := ledger.Key{Kind: ledger.OpEdit, Ref: ledger.RecordRef(rec.ID, rec.Username, rec.TS)}
	e.ledger.Capture(key, scope, rec.Clone())

	rec.Text = text
	rec.Edited = true
	rec.LastEditedAt = e.nowMS()

	e.emit(opEdit, EditOp{Scope: scope, Target: refFor(rec), NewText: text})
	return nil
}

// DeleteMessage snapshots the target, tombstones it optimistically and
// emits the outbound delete.
func (e *Engine) DeleteMessage(scope models.ScopeID, target TargetRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.resolve(scope, target)
	if rec == nil {
		telemetry.Refused.WithLabelValues(opDelete).Inc()
		e.notices.Notify(notify.LevelWarn, "message not found")
		return ErrTargetNotFound
	}
	if rec.ID == "" {
		// still in flight; the remote side has no record to delete yet
		telemetry.Refused.WithLabelValues(opDelete).Inc()
		e.notices.Notify(notify.LevelWarn, "message is still sending; try again shortly")
		return ErrUnconfirmedDelete
	}

	key := ledger.Key{Kind: ledger.OpDelete, Ref: ledger.RecordRef(rec.ID, rec.Username, rec.TS)}
	e.ledger.Capture(key, scope, rec.Clone())

	rec.Tombstone(e.nowMS())

	e.emit(opDelete, DeleteOp{Scope: scope, Target: refFor(rec)})
	return nil
}

// ToggleReaction flips the local user's reaction on the target: same or
// empty emoji removes it, anything else replaces it. Reactions are never
// ledgered; a remote refusal only surfaces a notice.
func (e *Engine) ToggleReaction(scope models.ScopeID, target TargetRef, emoji string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.resolve(scope, target)
	if rec == nil {
		telemetry.Refused.WithLabelValues(opReact).Inc()
		e.notices.Notify(notify.LevelWarn, "message not found")
		return ErrTargetNotFound
	}

	if rec.Reactions == nil {
		rec.Reactions = map[string]models.Reaction{}
	}
	cur, has := rec.Reactions[e.self.UserID]
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || (has && cur.Emoji == emoji) {
		delete(rec.Reactions, e.self.UserID)
	} else {
		rec.Reactions[e.self.UserID] = models.Reaction{
			Emoji:    emoji,
			UserID:   e.self.UserID,
			Username: e.self.Username,
			At:       e.nowMS(),
		}
	}

	e.emit(opReact, ReactOp{Scope: scope, Target: refFor(rec), Emoji: emoji})
	return nil
}

// SetTyping emits the local user's typing signal. Emissions are rate
// limited per scope; a suppressed ping is not an error.
func (e *Engine) SetTyping(scope models.ScopeID, typing bool) {
	e.mu.Lock()
	lim := e.typingLimits[scope]
	if lim == nil {
		lim = rate.NewLimiter(e.typingRate, e.typingBurst)
		e.typingLimits[scope] = lim
	}
	ttl := e.typingTTL
	at := e.nowMS()
	e.mu.Unlock()

	if typing && !lim.Allow() {
		return
	}
	e.emit(opTyping, TypingOp{
		Scope:    scope,
		UserID:   e.self.UserID,
		Username: e.self.Username,
		Typing:   typing,
		At:       at,
		TTLMS:    ttl.Milliseconds(),
	})
}

// resolve finds the authoritative live record for a reference: server id
// first, then local id, then (author, timestamp). The caller may hold a
// stale reference captured before reconciliation replaced the record.
func (e *Engine) resolve(scope models.ScopeID, t TargetRef) *models.Message {
	if t.MessageID != "" {
		if m := e.threads.Find(scope, func(m *models.Message) bool { return m.ID == t.MessageID }); m != nil {
			return m
		}
	}
	if t.LocalID != "" {
		if m := e.threads.Find(scope, func(m *models.Message) bool { return m.LocalID == t.LocalID }); m != nil {
			return m
		}
	}
	if t.Username != "" && t.TS != 0 {
		return e.threads.Find(scope, func(m *models.Message) bool {
			return m.Username == t.Username && m.TS == t.TS
		})
	}
	return nil
}

func (e *Engine) isSelf(userID, username string) bool {
	if userID != "" && e.self.UserID != "" {
		return userID == e.self.UserID
	}
	return username == e.self.Username
}

// refFor names a record for the wire: server id when known, else author
// plus timestamp (the local id rides along for the echo window).
func refFor(m *models.Message) TargetRef {
	return TargetRef{MessageID: m.ID, LocalID: m.LocalID, Username: m.Username, TS: m.TS}
}

// emit sends fire-and-forget: optimistic application never waits on the
// network, and an emission error is an operational log line, not a state
// change.
func (e *Engine) emit(op string, payload any) {
	telemetry.OutboundOps.WithLabelValues(op).Inc()
	go func() {
		if err := e.ch.Emit(op, payload); err != nil {
			logger.Warn("emit_failed", "op", op, "error", err)
		}
	}()
}

func (e *Engine) nowMS() int64 {
	return e.now().UnixMilli()
}

func (e *Engine) persist(scope models.ScopeID) {
	if e.journal == nil {
		return
	}
	if err := e.journal.ReplaceScope(scope, e.threads.Snapshot(scope)); err != nil {
		logger.Warn("journal_write_failed", "scope", scope, "error", err)
	}
}
