// Package projection builds the per-client local view of rooms and messages
// from observed updates. It handles ordering, deduplication, and temp-ID
// reconciliation; it does not emit events or interact with UI directly.
package projection

import (
	"sort"

	"clinic-relay/domain/chat"
)

// view is the engine's in-memory projection. Message sequences are kept
// sorted ascending by creation timestamp, and each room carries an ID index
// so duplicate detection is a map lookup instead of an array scan.
type view struct {
	rooms    map[chat.RoomID]*chat.Room
	messages map[chat.RoomID][]chat.Message
	index    map[chat.RoomID]map[string]struct{}
}

func newView() *view {
	return &view{
		rooms:    make(map[chat.RoomID]*chat.Room),
		messages: make(map[chat.RoomID][]chat.Message),
		index:    make(map[chat.RoomID]map[string]struct{}),
	}
}

func (v *view) roomIndex(roomID chat.RoomID) map[string]struct{} {
	idx, ok := v.index[roomID]
	if !ok {
		idx = make(map[string]struct{})
		v.index[roomID] = idx
	}
	return idx
}

func (v *view) contains(roomID chat.RoomID, messageID string) bool {
	_, ok := v.roomIndex(roomID)[messageID]
	return ok
}

// insert places the message at its timestamp position. Arrival order is not
// trusted: relay-pushed and polled messages can arrive out of creation order.
func (v *view) insert(m chat.Message) {
	seq := v.messages[m.RoomID]
	pos := sort.Search(len(seq), func(i int) bool {
		return seq[i].CreatedAt.After(m.CreatedAt)
	})
	seq = append(seq, chat.Message{})
	copy(seq[pos+1:], seq[pos:])
	seq[pos] = m
	v.messages[m.RoomID] = seq
	v.roomIndex(m.RoomID)[m.ID] = struct{}{}
}

// rewriteID swaps a message's identifier in place, keeping its position.
func (v *view) rewriteID(roomID chat.RoomID, oldID, newID string) bool {
	seq := v.messages[roomID]
	for i := range seq {
		if seq[i].ID == oldID {
			seq[i].ID = newID
			idx := v.roomIndex(roomID)
			delete(idx, oldID)
			idx[newID] = struct{}{}
			return true
		}
	}
	return false
}

// remove deletes a message by ID, used to roll back a failed optimistic send.
func (v *view) remove(roomID chat.RoomID, messageID string) bool {
	seq := v.messages[roomID]
	for i := range seq {
		if seq[i].ID == messageID {
			v.messages[roomID] = append(seq[:i], seq[i+1:]...)
			delete(v.roomIndex(roomID), messageID)
			return true
		}
	}
	return false
}

// matchLogical finds an optimistic entry describing the same logical message
// as the given storage-confirmed copy.
func (v *view) matchLogical(m chat.Message) (string, bool) {
	for _, existing := range v.messages[m.RoomID] {
		if chat.IsTempID(existing.ID) && existing.SameLogical(m) {
			return existing.ID, true
		}
	}
	return "", false
}
