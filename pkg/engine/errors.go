package engine

import "errors"

// Local validation failures. These are rejected before any network
// emission and leave state untouched.
var (
	// ErrEmptyMessage is returned when a send carries neither text nor a
	// structured payload.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrEmptyEdit is returned when the replacement text is empty after
	// trimming.
	ErrEmptyEdit = errors.New("edit text is empty")

	// ErrNotAuthor is returned when a user edits someone else's message.
	ErrNotAuthor = errors.New("only the author may edit a message")

	// ErrTargetNotFound is returned when no record in the scope matches
	// the given reference.
	ErrTargetNotFound = errors.New("target message not found")

	// ErrReplyUnresolved is returned when a reply target has no server
	// identifier and none can be recovered from the live list. The send
	// is aborted so the remote side never stores an orphaned reply.
	ErrReplyUnresolved = errors.New("reply target not yet confirmed")

	// ErrUnconfirmedDelete is returned when the target exists only under
	// a local identifier; the remote side has nothing to delete yet.
	ErrUnconfirmedDelete = errors.New("message not yet confirmed; try again shortly")
)
