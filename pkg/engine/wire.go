package engine

import (
	"chatsync/pkg/models"
)

// Outbound operation names.
const (
	opSend   = "send"
	opEdit   = "edit"
	opDelete = "delete"
	opReact  = "react"
	opTyping = "typing"
)

// Inbound event names. The handler table in events.go is keyed by this
// closed set.
const (
	evHistory         = "history"
	evMessage         = "message"
	evEditConfirmed   = "edit-confirmed"
	evDeleteConfirmed = "delete-confirmed"
	evReactionState   = "reaction-state"
	evEditError       = "edit-error"
	evDeleteError     = "delete-error"
	evReactionError   = "reaction-error"
	evTyping          = "typing"
)

// TargetRef names a message for an operation. The server identifier wins
// when present; author plus original timestamp is the fallback identity
// for records still inside the confirmation window.
type TargetRef struct {
	MessageID string `json:"messageId,omitempty"`
	LocalID   string `json:"localId,omitempty"`
	Username  string `json:"username,omitempty"`
	TS        int64  `json:"ts,omitempty"`
}

// SendOp is the outbound send payload.
type SendOp struct {
	Scope    models.ScopeID   `json:"scopeId"`
	LocalID  string           `json:"localId"`
	UserID   string           `json:"userId"`
	Username string           `json:"username"`
	Text     string           `json:"text"`
	TS       int64            `json:"ts"`
	Kind     models.Kind      `json:"kind,omitempty"`
	Media    *models.Media    `json:"media,omitempty"`
	Audio    *models.Audio    `json:"audio,omitempty"`
	ReplyTo  *models.ReplyRef `json:"replyTo,omitempty"`
}

// EditOp is the outbound edit payload.
type EditOp struct {
	Scope   models.ScopeID `json:"scopeId"`
	Target  TargetRef      `json:"target"`
	NewText string         `json:"newText"`
}

// DeleteOp is the outbound delete payload.
type DeleteOp struct {
	Scope  models.ScopeID `json:"scopeId"`
	Target TargetRef      `json:"target"`
}

// ReactOp is the outbound reaction toggle payload.
type ReactOp struct {
	Scope  models.ScopeID `json:"scopeId"`
	Target TargetRef      `json:"target"`
	Emoji  string         `json:"emoji,omitempty"`
}

// TypingOp is the outbound typing signal.
type TypingOp struct {
	Scope    models.ScopeID `json:"scopeId"`
	UserID   string         `json:"userId"`
	Username string         `json:"username"`
	Typing   bool           `json:"typing"`
	At       int64          `json:"at"`
	TTLMS    int64          `json:"ttlMs,omitempty"`
}

// HistoryEvent is a bulk sequence replacement sent on (re)join.
type HistoryEvent struct {
	Scope    models.ScopeID   `json:"scopeId"`
	Messages []models.Message `json:"messages"`
}

// EditResultEvent confirms or refuses an edit.
type EditResultEvent struct {
	Scope    models.ScopeID `json:"scopeId"`
	Target   TargetRef      `json:"target"`
	NewText  string         `json:"newText,omitempty"`
	EditedAt int64          `json:"editedAt,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

// DeleteResultEvent confirms or refuses a delete.
type DeleteResultEvent struct {
	Scope     models.ScopeID `json:"scopeId"`
	Target    TargetRef      `json:"target"`
	DeletedAt int64          `json:"deletedAt,omitempty"`
	Reason    string         `json:"reason,omitempty"`
}

// ReactionStateEvent carries the authoritative full reaction map for one
// message. It replaces, never merges.
type ReactionStateEvent struct {
	Scope     models.ScopeID             `json:"scopeId"`
	Target    TargetRef                  `json:"target"`
	Reactions map[string]models.Reaction `json:"reactions"`
	Reason    string                     `json:"reason,omitempty"`
}

// TypingEvent is an inbound typing indicator from a peer.
type TypingEvent struct {
	Scope    models.ScopeID `json:"scopeId"`
	UserID   string         `json:"userId"`
	Username string         `json:"username"`
	Typing   bool           `json:"typing"`
	At       int64          `json:"at,omitempty"`
	TTLMS    int64          `json:"ttlMs,omitempty"`
}
