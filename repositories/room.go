//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"clinic-relay/domain"
	"clinic-relay/domain/chat"
	"clinic-relay/domain/event"
	"clinic-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type IRoomRepository interface {
	UpsertRoom(room chat.Room) error
	GetRoom(id chat.RoomID) (chat.Room, error)
	ListRoomsByDoctor(doctorID string) ([]chat.Room, error)
	RecordMessage(id chat.RoomID, lastMessage string, at time.Time, sender domain.Role) (chat.Room, error)
	MarkRead(id chat.RoomID, side domain.Role) (chat.Room, error)
}

type RoomRepository struct {
	db   *badger.DB
	log  *slog.Logger
	feed *Feed
}

func NewRoomRepository(db *badger.DB, log *slog.Logger, feed *Feed) RoomRepository {
	return RoomRepository{db: db, log: log, feed: feed}
}

type diskRoom struct {
	ID              string    `json:"id"`
	DoctorID        string    `json:"doctor_id"`
	PatientID       string    `json:"patient_id"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	UnreadDoctor    int       `json:"unread_doctor"`
	UnreadPatient   int       `json:"unread_patient"`
}

func roomKey(id chat.RoomID) []byte {
	return []byte("room:" + string(id))
}

// UpsertRoom stores the full room record and publishes an insert or update
// notification to the change feed.
func (r RoomRepository) UpsertRoom(room chat.Room) error {
	bytes, err := json.Marshal(fromRoom(room))
	if err != nil {
		return err
	}

	kind := event.ChangeUpdate
	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(room.ID)); err == badger.ErrKeyNotFound {
			kind = event.ChangeInsert
		}
		return txn.Set(roomKey(room.ID), bytes)
	})
	if err != nil {
		return err
	}

	r.feed.Publish(event.RoomChanged{Kind: kind, Update: fullUpdate(room)})
	return nil
}

func (r RoomRepository) GetRoom(id chat.RoomID) (chat.Room, error) {
	var dr diskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dr)
		})
	})
	if err == badger.ErrKeyNotFound {
		return chat.Room{}, errors.ErrRoomNotFound
	}
	if err != nil {
		return chat.Room{}, err
	}
	return toRoom(dr), nil
}

// ListRoomsByDoctor scans the room keyspace and keeps the doctor's rooms,
// most recently active first.
func (r RoomRepository) ListRoomsByDoctor(doctorID string) ([]chat.Room, error) {
	var rooms []chat.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("room:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var dr diskRoom
				if err := json.Unmarshal(val, &dr); err != nil {
					return err
				}
				if dr.DoctorID == doctorID {
					rooms = append(rooms, toRoom(dr))
				}
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

	// Newest conversation first, mirroring the portal room list.
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].LastMessageTime.After(rooms[j].LastMessageTime)
	})
	return rooms, nil
}

// RecordMessage refreshes the room's last-message fields and increments the
// unread counter of the sender's counterpart, in one transaction.
func (r RoomRepository) RecordMessage(id chat.RoomID, lastMessage string, at time.Time, sender domain.Role) (chat.Room, error) {
	room, err := r.mutate(id, func(dr *diskRoom) {
		dr.LastMessage = lastMessage
		dr.LastMessageTime = at.UTC()
		if sender == domain.RoleDoctor {
			dr.UnreadPatient++
		} else {
			dr.UnreadDoctor++
		}
	})
	if err != nil {
		return chat.Room{}, err
	}

	r.feed.Publish(event.RoomChanged{Kind: event.ChangeUpdate, Update: fullUpdate(room)})
	return room, nil
}

// MarkRead resets the unread counter for the given side.
func (r RoomRepository) MarkRead(id chat.RoomID, side domain.Role) (chat.Room, error) {
	room, err := r.mutate(id, func(dr *diskRoom) {
		if side == domain.RoleDoctor {
			dr.UnreadDoctor = 0
		} else {
			dr.UnreadPatient = 0
		}
	})
	if err != nil {
		return chat.Room{}, err
	}

	r.feed.Publish(event.RoomChanged{Kind: event.ChangeUpdate, Update: fullUpdate(room)})
	return room, nil
}

func (r RoomRepository) mutate(id chat.RoomID, fn func(*diskRoom)) (chat.Room, error) {
	var dr diskRoom
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(id))
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dr)
		}); err != nil {
			return err
		}

		fn(&dr)

		bytes, err := json.Marshal(dr)
		if err != nil {
			return err
		}
		return txn.Set(roomKey(id), bytes)
	})
	if err == badger.ErrKeyNotFound {
		return chat.Room{}, errors.ErrRoomNotFound
	}
	if err != nil {
		return chat.Room{}, fmt.Errorf("room mutation failed: %w", err)
	}
	return toRoom(dr), nil
}

func fromRoom(room chat.Room) diskRoom {
	return diskRoom{
		ID:              string(room.ID),
		DoctorID:        room.DoctorID,
		PatientID:       room.PatientID,
		LastMessage:     room.LastMessage,
		LastMessageTime: room.LastMessageTime.UTC(),
		UnreadDoctor:    room.UnreadDoctor,
		UnreadPatient:   room.UnreadPatient,
	}
}

func toRoom(dr diskRoom) chat.Room {
	return chat.Room{
		ID:              chat.RoomID(dr.ID),
		DoctorID:        dr.DoctorID,
		PatientID:       dr.PatientID,
		LastMessage:     dr.LastMessage,
		LastMessageTime: dr.LastMessageTime.UTC(),
		UnreadDoctor:    dr.UnreadDoctor,
		UnreadPatient:   dr.UnreadPatient,
	}
}

// fullUpdate converts a complete room record into a change-feed update with
// every field present.
func fullUpdate(room chat.Room) chat.RoomUpdate {
	return chat.RoomUpdate{
		ID:              room.ID,
		DoctorID:        lo.ToPtr(room.DoctorID),
		PatientID:       lo.ToPtr(room.PatientID),
		LastMessage:     lo.ToPtr(room.LastMessage),
		LastMessageTime: lo.ToPtr(room.LastMessageTime.UTC()),
		UnreadDoctor:    lo.ToPtr(room.UnreadDoctor),
		UnreadPatient:   lo.ToPtr(room.UnreadPatient),
	}
}
