//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"clinic-relay/domain"
	"clinic-relay/domain/chat"
	"clinic-relay/domain/event"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	StoreMessage(message chat.Message) (chat.Message, error)
	GetMessages(roomID chat.RoomID) ([]chat.Message, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	feed          *Feed
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, feed *Feed, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, feed: feed, limitMessages: limitMessages}
}

// diskMessage is the stored representation of a message.
type diskMessage struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"chat_room_id"`
	SenderID   string    `json:"sender_id"`
	SenderRole string    `json:"sender_type"`
	Content    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// StoreMessage persists a message and returns it with its canonical ID.
// A locally generated temporary ID is replaced here: the insert response is
// the reconciliation trigger the client uses to rewrite its optimistic copy.
//
// The key is formatted as "msg:{room_id}:{timestamp_padded}:{id}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using the ID as a collision disconnector if two
//     messages arrive at the same nanosecond.
func (m MessageRepository) StoreMessage(message chat.Message) (chat.Message, error) {
	if message.ID == "" || chat.IsTempID(message.ID) {
		message.ID = uuid.NewString()
	}

	key := fmt.Sprintf("msg:%s:%019d:%s",
		message.RoomID,
		message.CreatedAt.UnixNano(),
		message.ID,
	)
	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return chat.Message{}, err
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
	if err != nil {
		return chat.Message{}, err
	}

	m.feed.Publish(event.MessageInserted{Message: message})
	return message, nil
}

// GetMessages retrieves a room's messages ordered ascending by creation
// timestamp, thanks to the padded timestamp in the key. When limitMessages
// is configured only the most recent ones are kept.
func (m MessageRepository) GetMessages(roomID chat.RoomID) ([]chat.Message, error) {
	var diskMessages []diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", roomID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(value []byte) error {
				var dm diskMessage
				if err := json.Unmarshal(value, &dm); err != nil {
					return err
				}
				diskMessages = append(diskMessages, dm)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if m.limitMessages != nil && len(diskMessages) > *m.limitMessages {
		m.log.Debug(fmt.Sprintf("Maximum of %d messages reached, keeping most recent", *m.limitMessages))
		diskMessages = diskMessages[len(diskMessages)-*m.limitMessages:]
	}

	return lo.Map(diskMessages, func(dm diskMessage, _ int) chat.Message {
		return toMessage(dm)
	}), nil
}

func fromMessage(message chat.Message) diskMessage {
	return diskMessage{
		ID:         message.ID,
		RoomID:     string(message.RoomID),
		SenderID:   message.SenderID,
		SenderRole: string(message.SenderRole),
		Content:    message.Content,
		CreatedAt:  message.CreatedAt.UTC(),
	}
}

func toMessage(dm diskMessage) chat.Message {
	return chat.Message{
		ID:         dm.ID,
		RoomID:     chat.RoomID(dm.RoomID),
		SenderID:   dm.SenderID,
		SenderRole: domain.Role(dm.SenderRole),
		Content:    dm.Content,
		CreatedAt:  dm.CreatedAt.UTC(),
	}
}
