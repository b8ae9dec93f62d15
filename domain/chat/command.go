package chat

import (
	"time"

	"clinic-relay/domain"
)

type Command interface {
	Room() RoomID
}

type SendMessageCommand struct {
	RoomID      RoomID
	SenderID    string
	SenderRole  domain.Role
	RecipientID string
	Content     string
	CreatedAt   time.Time
}

func (c SendMessageCommand) Room() RoomID {
	return c.RoomID
}

// MarkReadCommand resets the unread counter of one side of a room.
type MarkReadCommand struct {
	RoomID RoomID
	Side   domain.Role
}

func (c MarkReadCommand) Room() RoomID {
	return c.RoomID
}
