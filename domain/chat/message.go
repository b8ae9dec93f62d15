package chat

import (
	"strings"
	"time"

	"clinic-relay/domain"

	"github.com/google/uuid"
)

const tempIDPrefix = "temp-"

// Message represents an immutable chat event. ID is the storage-assigned
// identifier once the message is confirmed; before that it carries a
// locally generated temporary ID.
type Message struct {
	ID         string
	RoomID     RoomID
	SenderID   string
	SenderRole domain.Role
	Content    string
	CreatedAt  time.Time
}

// NewTempID generates a local identifier for an optimistic message that has
// not yet been confirmed by storage.
func NewTempID() string {
	return tempIDPrefix + uuid.NewString()
}

// IsTempID reports whether the identifier was generated locally.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// SameLogical reports whether two records describe the same logical message
// regardless of their identifiers. Used to reconcile an optimistic copy with
// its storage-confirmed counterpart when the confirmed copy arrives first.
func (m Message) SameLogical(other Message) bool {
	return m.RoomID == other.RoomID &&
		m.SenderID == other.SenderID &&
		m.Content == other.Content &&
		m.CreatedAt.Equal(other.CreatedAt)
}
