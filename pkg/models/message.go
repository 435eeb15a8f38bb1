package models

// Kind tags the payload variant carried by a message. "gif" is the wire
// name for animated images.
type Kind string

const (
	KindText  Kind = "text"
	KindMedia Kind = "media"
	KindGIF   Kind = "gif"
	KindAudio Kind = "audio"
)

// Media is the structured payload for media/gif messages.
type Media struct {
	URL      string `json:"url"`
	ThumbURL string `json:"thumbUrl,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// Fingerprint identifies the media payload for echo matching. The URL is
// stable across the send/echo round trip.
func (m *Media) Fingerprint() string {
	if m == nil {
		return ""
	}
	return m.URL
}

// Audio is the structured payload for voice messages.
type Audio struct {
	URL        string `json:"url"`
	DurationMS int64  `json:"durationMs,omitempty"`
}

// Reaction is one participant's reaction to a message. The reactions map
// on a message is keyed by UserID, so a participant holds at most one.
type Reaction struct {
	Emoji    string `json:"emoji"`
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	At       int64  `json:"at"`
}

// ReplyRef is a denormalized snapshot of a replied-to message, captured at
// reply time rather than live-linked. Previews are patched on later edits
// and deletes of the referenced message.
type ReplyRef struct {
	MessageID string `json:"messageId,omitempty"`
	Username  string `json:"username,omitempty"`
	Text      string `json:"text"`
	TS        int64  `json:"ts,omitempty"`
	Kind      Kind   `json:"kind,omitempty"`
	Media     *Media `json:"media,omitempty"`
	Audio     *Audio `json:"audio,omitempty"`
	Deleted   bool   `json:"deleted,omitempty"`
	DeletedAt int64  `json:"deletedAt,omitempty"`
}

// Message is the central record. ID is assigned once by the remote
// authority; LocalID is client-generated for optimistic sends and is kept
// through the reconciliation window after the server id arrives.
type Message struct {
	ID      string  `json:"messageId,omitempty"`
	LocalID string  `json:"localId,omitempty"`
	Scope   ScopeID `json:"scopeId,omitempty"`

	UserID      string `json:"userId,omitempty"`
	Username    string `json:"username"`
	Avatar      string `json:"avatar,omitempty"`
	BubbleColor string `json:"bubbleColor,omitempty"`

	// TS is the creation time in unix milliseconds and participates in
	// ordering and reply-reference identity.
	TS int64 `json:"ts"`

	Text  string `json:"text"`
	Kind  Kind   `json:"kind,omitempty"`
	Media *Media `json:"media,omitempty"`
	Audio *Audio `json:"audio,omitempty"`

	ReplyTo *ReplyRef `json:"replyTo,omitempty"`

	Edited       bool  `json:"edited,omitempty"`
	LastEditedAt int64 `json:"lastEditedAt,omitempty"`

	Deleted   bool  `json:"deleted,omitempty"`
	DeletedAt int64 `json:"deletedAt,omitempty"`

	Reactions map[string]Reaction `json:"reactions,omitempty"`
}

// Clone returns a deep copy suitable for ledger snapshots: later in-place
// mutation of the live record cannot reach the copy.
func (m *Message) Clone() Message {
	out := *m
	if m.Media != nil {
		md := *m.Media
		out.Media = &md
	}
	if m.Audio != nil {
		au := *m.Audio
		out.Audio = &au
	}
	if m.ReplyTo != nil {
		rt := *m.ReplyTo
		if m.ReplyTo.Media != nil {
			md := *m.ReplyTo.Media
			rt.Media = &md
		}
		if m.ReplyTo.Audio != nil {
			au := *m.ReplyTo.Audio
			rt.Audio = &au
		}
		out.ReplyTo = &rt
	}
	if m.Reactions != nil {
		out.Reactions = make(map[string]Reaction, len(m.Reactions))
		for k, v := range m.Reactions {
			out.Reactions[k] = v
		}
	}
	return out
}

// Tombstone clears content fields in place while retaining identity,
// author and timestamps for ordering and reply-reference integrity.
func (m *Message) Tombstone(at int64) {
	m.Deleted = true
	m.DeletedAt = at
	m.Text = ""
	m.Media = nil
	m.Audio = nil
}

// Ref returns the snapshot used when replying to this message. Payload
// pointers are copied so the preview stays a capture, not a live link.
func (m *Message) Ref() *ReplyRef {
	ref := &ReplyRef{
		MessageID: m.ID,
		Username:  m.Username,
		Text:      m.Text,
		TS:        m.TS,
		Kind:      m.Kind,
		Deleted:   m.Deleted,
		DeletedAt: m.DeletedAt,
	}
	if m.Media != nil {
		md := *m.Media
		ref.Media = &md
	}
	if m.Audio != nil {
		au := *m.Audio
		ref.Audio = &au
	}
	return ref
}
