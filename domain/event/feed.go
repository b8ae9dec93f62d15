package event

import (
	"clinic-relay/domain/chat"
)

// Table identifies a storage table in the change feed.
type Table string

const (
	TableRooms    Table = "chat_rooms"
	TableMessages Table = "chat_messages"
)

type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeUpdate ChangeKind = "UPDATE"
)

// FeedEvent is a push notification from the storage collaborator on row
// insert or update.
type FeedEvent interface {
	FeedTable() Table
	Room() chat.RoomID
}

// RoomChanged notifies a room insert or a partial room update.
type RoomChanged struct {
	Kind   ChangeKind
	Update chat.RoomUpdate
}

func (e RoomChanged) FeedTable() Table  { return TableRooms }
func (e RoomChanged) Room() chat.RoomID { return e.Update.ID }

// MessageInserted notifies a confirmed message, carrying its canonical ID.
type MessageInserted struct {
	Message chat.Message
}

func (e MessageInserted) FeedTable() Table  { return TableMessages }
func (e MessageInserted) Room() chat.RoomID { return e.Message.RoomID }
