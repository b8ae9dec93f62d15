//go:generate go run go.uber.org/mock/mockgen -source=engine.go -destination=../mocks/mock_projection.go -package=mocks
package projection

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"clinic-relay/domain"
	"clinic-relay/domain/chat"
	"clinic-relay/domain/event"
)

// Listener receives the side effects of a merge: re-render triggers, the
// incoming-message notification (sound), and typing indicator flips.
type Listener interface {
	RoomChanged(roomID chat.RoomID)
	MessagesChanged(roomID chat.RoomID)
	TypingChanged(roomID chat.RoomID, active bool)
	IncomingMessage(roomID chat.RoomID, message chat.Message)
}

// ReadMarker is the storage operation resetting an unread counter. Calls
// are fire-and-forget: a failure is logged, never retried.
type ReadMarker interface {
	MarkRead(id chat.RoomID, side domain.Role) (chat.Room, error)
}

// PatientFetcher loads a patient profile referenced by a room that the
// engine discovered through the change feed.
type PatientFetcher interface {
	GetPatient(id string) (domain.PatientProfile, error)
}

// Engine reconciles three concurrent update channels - relay push, storage
// change-feed push, and periodic poll - into one consistent local view.
// Every apply entry point is idempotent: the same logical message may arrive
// on all three channels and is displayed exactly once.
type Engine struct {
	mu   sync.Mutex
	log  *slog.Logger
	self domain.Participant

	view     *view
	patients map[string]domain.PatientProfile
	fetching map[string]struct{}
	openRoom chat.RoomID

	typing     *typingState
	listener   Listener
	readMarker ReadMarker
	fetcher    PatientFetcher
}

func NewEngine(log *slog.Logger, self domain.Participant, typingTimeout time.Duration,
	listener Listener, readMarker ReadMarker, fetcher PatientFetcher) *Engine {
	e := &Engine{
		log:        log,
		self:       self,
		view:       newView(),
		patients:   make(map[string]domain.PatientProfile),
		fetching:   make(map[string]struct{}),
		listener:   listener,
		readMarker: readMarker,
		fetcher:    fetcher,
	}
	e.typing = newTypingState(typingTimeout, func(roomID chat.RoomID) {
		listener.TypingChanged(roomID, false)
	})
	return e
}

// Stop cancels pending typing timers.
func (e *Engine) Stop() {
	e.typing.stopAll()
}

// OpenRoom marks a room as the one currently displayed. Its unread counter
// is reset immediately and the mark-read operation fired against storage.
func (e *Engine) OpenRoom(roomID chat.RoomID) {
	e.mu.Lock()
	e.openRoom = roomID
	if room, ok := e.view.rooms[roomID]; ok {
		e.setOwnUnread(room, 0)
	}
	e.mu.Unlock()

	e.fireMarkRead(roomID)
	e.listener.RoomChanged(roomID)
}

// OpenRoomID returns the currently displayed room, empty if none.
func (e *Engine) OpenRoomID() chat.RoomID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.openRoom
}

// AppendLocal inserts an optimistic copy of a message being sent, under a
// temporary ID, and bumps the counterpart's unread counter on the local
// room record. The returned message carries the temporary ID the caller
// needs for ConfirmMessage or DiscardMessage.
func (e *Engine) AppendLocal(cmd chat.SendMessageCommand) chat.Message {
	message := chat.Message{
		ID:         chat.NewTempID(),
		RoomID:     cmd.RoomID,
		SenderID:   cmd.SenderID,
		SenderRole: cmd.SenderRole,
		Content:    cmd.Content,
		CreatedAt:  cmd.CreatedAt,
	}

	e.mu.Lock()
	e.view.insert(message)
	if room, ok := e.view.rooms[cmd.RoomID]; ok {
		room.LastMessage = cmd.Content
		room.LastMessageTime = cmd.CreatedAt
		e.addUnread(room, e.self.Role.Counterpart(), 1)
	}
	e.mu.Unlock()

	e.listener.MessagesChanged(cmd.RoomID)
	e.listener.RoomChanged(cmd.RoomID)
	return message
}

// ConfirmMessage rewrites an optimistic entry with its canonical storage ID.
// The storage insert response is the reconciliation trigger; if the change
// feed already delivered the canonical copy, the temp entry was reconciled
// by fingerprint and there is nothing left to do.
func (e *Engine) ConfirmMessage(roomID chat.RoomID, tempID string, confirmed chat.Message) {
	e.mu.Lock()
	if e.view.contains(roomID, confirmed.ID) {
		removed := e.view.remove(roomID, tempID)
		e.mu.Unlock()
		if removed {
			e.listener.MessagesChanged(roomID)
		}
		return
	}
	e.view.rewriteID(roomID, tempID, confirmed.ID)
	e.mu.Unlock()
}

// DiscardMessage rolls back a failed optimistic send so the UI can restore
// the unsent text.
func (e *Engine) DiscardMessage(roomID chat.RoomID, tempID string) {
	e.mu.Lock()
	removed := e.view.remove(roomID, tempID)
	e.mu.Unlock()

	if removed {
		e.listener.MessagesChanged(roomID)
	}
}

// ApplyRelayEvent merges a frame pushed by the relay. Malformed frames are
// logged and skipped; an error here never stops subsequent events.
func (e *Engine) ApplyRelayEvent(env event.Envelope) {
	switch env.Event {
	case event.NameMessage:
		payload, err := event.DecodeChatMessage(env.Payload)
		if err != nil {
			e.log.Warn("Skipping malformed relay frame", "error", err)
			return
		}
		// Relay push precedes the storage write: the copy is provisional
		// and carries a temporary ID until a confirmed copy reconciles it.
		e.applyMessage(chat.Message{
			ID:        chat.NewTempID(),
			RoomID:    chat.RoomID(payload.RoomID),
			SenderID:  payload.SenderID,
			Content:   payload.Message,
			CreatedAt: payload.Timestamp,
		})
	case event.NameTyping:
		payload, err := event.DecodeChatTyping(env.Payload)
		if err != nil {
			e.log.Warn("Skipping malformed relay frame", "error", err)
			return
		}
		e.ApplyTyping(payload)
	default:
		e.log.Debug(fmt.Sprintf("Ignoring relay event %q", env.Event))
	}
}

// ApplyTyping flips the typing indicator for the currently open room and
// restarts its clearance timer.
func (e *Engine) ApplyTyping(payload event.ChatTyping) {
	roomID := chat.RoomID(payload.RoomID)

	e.mu.Lock()
	open := e.openRoom
	e.mu.Unlock()

	if roomID != open {
		return
	}
	e.typing.touch(roomID)
	e.listener.TypingChanged(roomID, true)
}

// IsTyping reports the transient typing indicator for a room.
func (e *Engine) IsTyping(roomID chat.RoomID) bool {
	return e.typing.isActive(roomID)
}

// ApplyFeedEvent merges an authoritative storage change-feed notification.
func (e *Engine) ApplyFeedEvent(fe event.FeedEvent) {
	switch evt := fe.(type) {
	case event.MessageInserted:
		e.applyMessage(evt.Message)
	case event.RoomChanged:
		e.mergeRoom(evt.Update)
	}
}

// ApplyResync merges a polled full reload of a room's messages. Used by the
// periodic resync policy to heal any missed push.
func (e *Engine) ApplyResync(roomID chat.RoomID, messages []chat.Message) {
	for _, m := range messages {
		if m.RoomID != roomID {
			continue
		}
		e.applyMessage(m)
	}
}

// applyMessage is the single merge path for all three channels.
func (e *Engine) applyMessage(m chat.Message) {
	e.mu.Lock()

	if e.view.contains(m.RoomID, m.ID) {
		e.mu.Unlock()
		return
	}

	// A copy of the same logical message may already be present under a
	// temporary ID (optimistic insert or earlier relay push). Adopt the
	// canonical ID in place instead of appending a duplicate.
	if tempID, ok := e.view.matchLogical(m); ok {
		if chat.IsTempID(m.ID) {
			// Both copies are provisional: keep the first one.
			e.mu.Unlock()
			return
		}
		e.view.rewriteID(m.RoomID, tempID, m.ID)
		e.mu.Unlock()
		e.listener.MessagesChanged(m.RoomID)
		return
	}

	e.view.insert(m)

	fromSelf := m.SenderID == e.self.ID
	openRoom := e.openRoom == m.RoomID
	if room, ok := e.view.rooms[m.RoomID]; ok {
		room.LastMessage = m.Content
		room.LastMessageTime = m.CreatedAt
		if !fromSelf && openRoom {
			e.setOwnUnread(room, 0)
		} else if !fromSelf {
			e.addUnread(room, e.self.Role, 1)
		}
	}
	e.mu.Unlock()

	switch {
	case fromSelf:
		// Own echo from another channel: nothing to notify.
	case openRoom:
		e.fireMarkRead(m.RoomID)
	default:
		e.listener.IncomingMessage(m.RoomID, m)
	}
	e.listener.MessagesChanged(m.RoomID)
	e.listener.RoomChanged(m.RoomID)
}

// mergeRoom shallow-merges a partial room update; an unknown room is
// inserted and its patient profile fetched asynchronously if not loaded.
func (e *Engine) mergeRoom(update chat.RoomUpdate) {
	e.mu.Lock()
	room, ok := e.view.rooms[update.ID]
	if !ok {
		room = &chat.Room{ID: update.ID}
		e.view.rooms[update.ID] = room
	}
	room.Merge(update)

	patientID := room.PatientID
	_, loaded := e.patients[patientID]
	_, inFlight := e.fetching[patientID]
	needFetch := patientID != "" && !loaded && !inFlight && e.fetcher != nil
	if needFetch {
		e.fetching[patientID] = struct{}{}
	}

	unreadOpen := update.ID == e.openRoom && room.Unread(e.self.Role) > 0
	if unreadOpen {
		e.setOwnUnread(room, 0)
	}
	e.mu.Unlock()

	if needFetch {
		go e.fetchPatient(patientID, update.ID)
	}
	if unreadOpen {
		// The open room accumulated unread state upstream; reset it.
		e.fireMarkRead(update.ID)
	}
	e.listener.RoomChanged(update.ID)
}

func (e *Engine) fetchPatient(patientID string, roomID chat.RoomID) {
	profile, err := e.fetcher.GetPatient(patientID)

	e.mu.Lock()
	delete(e.fetching, patientID)
	if err == nil {
		e.patients[patientID] = profile
	}
	e.mu.Unlock()

	if err != nil {
		e.log.Warn("Patient profile fetch failed", "patient_id", patientID, "error", err)
		return
	}
	e.listener.RoomChanged(roomID)
}

// fireMarkRead issues the storage mark-read without waiting for the result.
func (e *Engine) fireMarkRead(roomID chat.RoomID) {
	if e.readMarker == nil {
		return
	}
	go func() {
		if _, err := e.readMarker.MarkRead(roomID, e.self.Role); err != nil {
			e.log.Warn("Mark read failed", "room_id", roomID, "error", err)
		}
	}()
}

func (e *Engine) addUnread(room *chat.Room, side domain.Role, delta int) {
	if side == domain.RoleDoctor {
		room.UnreadDoctor += delta
	} else {
		room.UnreadPatient += delta
	}
}

func (e *Engine) setOwnUnread(room *chat.Room, value int) {
	if e.self.Role == domain.RoleDoctor {
		room.UnreadDoctor = value
	} else {
		room.UnreadPatient = value
	}
}

// Rooms returns a snapshot of known rooms, most recently active first.
func (e *Engine) Rooms() []chat.Room {
	e.mu.Lock()
	defer e.mu.Unlock()

	rooms := make([]chat.Room, 0, len(e.view.rooms))
	for _, room := range e.view.rooms {
		rooms = append(rooms, *room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].LastMessageTime.After(rooms[j].LastMessageTime)
	})
	return rooms
}

// Room returns a snapshot of one room.
func (e *Engine) Room(roomID chat.RoomID) (chat.Room, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	room, ok := e.view.rooms[roomID]
	if !ok {
		return chat.Room{}, false
	}
	return *room, true
}

// Messages returns a snapshot of a room's message sequence, ascending by
// creation timestamp.
func (e *Engine) Messages(roomID chat.RoomID) []chat.Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	seq := e.view.messages[roomID]
	out := make([]chat.Message, len(seq))
	copy(out, seq)
	return out
}

// Patient returns a locally loaded patient profile.
func (e *Engine) Patient(id string) (domain.PatientProfile, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	profile, ok := e.patients[id]
	return profile, ok
}
