package projection_test

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"clinic-relay/domain"
	"clinic-relay/domain/chat"
	"clinic-relay/domain/event"
	"clinic-relay/projection"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

// recordingListener captures notification side effects.
type recordingListener struct {
	mu       sync.Mutex
	incoming []chat.Message
	typing   []bool
	messages []chat.RoomID
}

func (l *recordingListener) RoomChanged(chat.RoomID) {}

func (l *recordingListener) MessagesChanged(roomID chat.RoomID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, roomID)
}

func (l *recordingListener) MessagesChangedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

func (l *recordingListener) TypingChanged(_ chat.RoomID, active bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.typing = append(l.typing, active)
}

func (l *recordingListener) IncomingMessage(_ chat.RoomID, m chat.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.incoming = append(l.incoming, m)
}

func (l *recordingListener) Incoming() []chat.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]chat.Message, len(l.incoming))
	copy(out, l.incoming)
	return out
}

// fakeReadMarker signals mark-read calls through a channel, since the engine
// fires them from a goroutine.
type fakeReadMarker struct {
	calls chan chat.RoomID
}

func newFakeReadMarker() *fakeReadMarker {
	return &fakeReadMarker{calls: make(chan chat.RoomID, 16)}
}

func (f *fakeReadMarker) MarkRead(id chat.RoomID, _ domain.Role) (chat.Room, error) {
	f.calls <- id
	return chat.Room{ID: id}, nil
}

func (f *fakeReadMarker) expectCall(t *testing.T, roomID chat.RoomID) {
	t.Helper()
	select {
	case got := <-f.calls:
		require.Equal(t, roomID, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("No mark-read call for room %s", roomID)
	}
}

type fakePatientFetcher struct {
	mu      sync.Mutex
	fetched []string
	done    chan string
}

func newFakePatientFetcher() *fakePatientFetcher {
	return &fakePatientFetcher{done: make(chan string, 16)}
}

func (f *fakePatientFetcher) GetPatient(id string) (domain.PatientProfile, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, id)
	f.mu.Unlock()
	f.done <- id
	return domain.PatientProfile{ID: id, Name: "Patient " + id}, nil
}

type engineFixture struct {
	engine     *projection.Engine
	listener   *recordingListener
	readMarker *fakeReadMarker
	fetcher    *fakePatientFetcher
}

func newFixture(t *testing.T) *engineFixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &engineFixture{
		listener:   &recordingListener{},
		readMarker: newFakeReadMarker(),
		fetcher:    newFakePatientFetcher(),
	}
	f.engine = projection.NewEngine(log,
		domain.Participant{ID: "doc-1", Role: domain.RoleDoctor},
		3*time.Second, f.listener, f.readMarker, f.fetcher)
	t.Cleanup(f.engine.Stop)
	return f
}

// seedRoom inserts a room through the feed channel, as the change feed would.
func (f *engineFixture) seedRoom(t *testing.T, roomID chat.RoomID, patientID string) {
	t.Helper()
	f.engine.ApplyFeedEvent(event.RoomChanged{
		Kind: event.ChangeInsert,
		Update: chat.RoomUpdate{
			ID:        roomID,
			DoctorID:  lo.ToPtr("doc-1"),
			PatientID: lo.ToPtr(patientID),
		},
	})
	// The unknown patient triggers an async profile fetch
	select {
	case <-f.fetcher.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Patient profile was never fetched")
	}
}

func canonical(id string, roomID chat.RoomID, sender, content string, at time.Time) chat.Message {
	return chat.Message{
		ID:        id,
		RoomID:    roomID,
		SenderID:  sender,
		Content:   content,
		CreatedAt: at,
	}
}

func TestEngine_DuplicateDeliveryIsIdempotent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.seedRoom(t, "room-1", "pat-1")

	m := canonical("msg-1", "room-1", "pat-1", "hello", baseTime)

	// The same logical message arrives on the feed channel and again via
	// the periodic poll
	f.engine.ApplyFeedEvent(event.MessageInserted{Message: m})
	f.engine.ApplyResync("room-1", []chat.Message{m})
	f.engine.ApplyFeedEvent(event.MessageInserted{Message: m})

	messages := f.engine.Messages("room-1")
	req.Len(messages, 1)
	req.Equal("msg-1", messages[0].ID)
}

func TestEngine_MessagesOrderedByTimestampNotArrival(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.seedRoom(t, "room-1", "pat-1")

	// Messages arrive newest first
	f.engine.ApplyFeedEvent(event.MessageInserted{
		Message: canonical("msg-3", "room-1", "pat-1", "third", baseTime.Add(2*time.Minute))})
	f.engine.ApplyFeedEvent(event.MessageInserted{
		Message: canonical("msg-1", "room-1", "pat-1", "first", baseTime)})
	f.engine.ApplyFeedEvent(event.MessageInserted{
		Message: canonical("msg-2", "room-1", "pat-1", "second", baseTime.Add(time.Minute))})

	messages := f.engine.Messages("room-1")
	req.Len(messages, 3)
	req.Equal([]string{"msg-1", "msg-2", "msg-3"},
		[]string{messages[0].ID, messages[1].ID, messages[2].ID})
}

func TestEngine_OptimisticSendConfirmedByStorage(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.seedRoom(t, "room-1", "pat-1")

	// When the doctor sends optimistically
	temp := f.engine.AppendLocal(chat.SendMessageCommand{
		RoomID:      "room-1",
		SenderID:    "doc-1",
		SenderRole:  domain.RoleDoctor,
		RecipientID: "pat-1",
		Content:     "take your pills",
		CreatedAt:   baseTime,
	})
	req.True(chat.IsTempID(temp.ID))

	// The counterpart's unread counter is bumped locally
	room, ok := f.engine.Room("room-1")
	req.True(ok)
	req.Equal(1, room.UnreadPatient)
	req.Equal("take your pills", room.LastMessage)

	// When storage confirms with the canonical ID
	stored := temp
	stored.ID = "msg-42"
	f.engine.ConfirmMessage("room-1", temp.ID, stored)

	messages := f.engine.Messages("room-1")
	req.Len(messages, 1)
	req.Equal("msg-42", messages[0].ID)
}

func TestEngine_FeedCopyReconcilesTempBeforeConfirmation(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.seedRoom(t, "room-1", "pat-1")

	temp := f.engine.AppendLocal(chat.SendMessageCommand{
		RoomID:      "room-1",
		SenderID:    "doc-1",
		SenderRole:  domain.RoleDoctor,
		RecipientID: "pat-1",
		Content:     "hello",
		CreatedAt:   baseTime,
	})

	// The change feed delivers the canonical copy before the storage
	// response comes back
	f.engine.ApplyFeedEvent(event.MessageInserted{
		Message: canonical("msg-9", "room-1", "doc-1", "hello", baseTime)})

	messages := f.engine.Messages("room-1")
	req.Len(messages, 1)
	req.Equal("msg-9", messages[0].ID)

	// The late confirmation must not bring the entry back twice
	stored := temp
	stored.ID = "msg-9"
	f.engine.ConfirmMessage("room-1", temp.ID, stored)

	req.Len(f.engine.Messages("room-1"), 1)
}

func TestEngine_ConfirmRemovingDuplicateNotifiesListener(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.seedRoom(t, "room-1", "pat-1")

	temp := f.engine.AppendLocal(chat.SendMessageCommand{
		RoomID:      "room-1",
		SenderID:    "doc-1",
		SenderRole:  domain.RoleDoctor,
		RecipientID: "pat-1",
		Content:     "hello",
		CreatedAt:   baseTime,
	})

	// The feed copy carries a storage-assigned timestamp, so the fingerprint
	// does not match the optimistic entry and both sit in the view
	f.engine.ApplyFeedEvent(event.MessageInserted{
		Message: canonical("msg-9", "room-1", "doc-1", "hello", baseTime.Add(50*time.Millisecond))})
	req.Len(f.engine.Messages("room-1"), 2)

	// When the confirmation collapses the duplicate
	before := f.listener.MessagesChangedCount()
	stored := temp
	stored.ID = "msg-9"
	f.engine.ConfirmMessage("room-1", temp.ID, stored)

	// Then the rendering layer is told the sequence changed
	messages := f.engine.Messages("room-1")
	req.Len(messages, 1)
	req.Equal("msg-9", messages[0].ID)
	req.Greater(f.listener.MessagesChangedCount(), before)
}

func TestEngine_RelayPushReconciledByFingerprint(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.seedRoom(t, "room-1", "pat-1")

	payload := event.ChatMessage{
		RoomID:      "room-1",
		Message:     "bonjour",
		SenderID:    "pat-1",
		RecipientID: "doc-1",
		Timestamp:   baseTime,
	}
	env, err := event.NewEnvelope(event.NameMessage, payload)
	req.NoError(err)

	// The relay pushes the message (no storage ID on the wire), then the
	// change feed delivers the canonical copy
	f.engine.ApplyRelayEvent(env)
	f.engine.ApplyFeedEvent(event.MessageInserted{
		Message: canonical("msg-7", "room-1", "pat-1", "bonjour", baseTime)})

	messages := f.engine.Messages("room-1")
	req.Len(messages, 1)
	req.Equal("msg-7", messages[0].ID)
}

func TestEngine_IncomingMessageForClosedRoomIncrementsUnread(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.seedRoom(t, "room-1", "pat-1")

	// No room is open; a patient message arrives
	f.engine.ApplyFeedEvent(event.MessageInserted{
		Message: canonical("msg-1", "room-1", "pat-1", "hello?", baseTime)})

	room, _ := f.engine.Room("room-1")
	req.Equal(1, room.UnreadDoctor)
	req.Zero(room.UnreadPatient)
	req.Len(f.listener.Incoming(), 1)
}

func TestEngine_IncomingMessageForOpenRoomFiresMarkRead(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.seedRoom(t, "room-1", "pat-1")

	f.engine.OpenRoom("room-1")
	f.readMarker.expectCall(t, "room-1")

	f.engine.ApplyFeedEvent(event.MessageInserted{
		Message: canonical("msg-1", "room-1", "pat-1", "hello?", baseTime)})

	// Read immediately, not accumulated
	f.readMarker.expectCall(t, "room-1")
	room, _ := f.engine.Room("room-1")
	req.Zero(room.UnreadDoctor)
	req.Empty(f.listener.Incoming())
}

func TestEngine_OwnEchoDoesNotNotify(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.seedRoom(t, "room-1", "pat-1")

	// A copy of the doctor's own message comes back through the feed
	f.engine.ApplyFeedEvent(event.MessageInserted{
		Message: canonical("msg-1", "room-1", "doc-1", "mine", baseTime)})

	room, _ := f.engine.Room("room-1")
	req.Zero(room.UnreadDoctor)
	req.Empty(f.listener.Incoming())
}

func TestEngine_DiscardRollsBackFailedSend(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.seedRoom(t, "room-1", "pat-1")

	temp := f.engine.AppendLocal(chat.SendMessageCommand{
		RoomID:      "room-1",
		SenderID:    "doc-1",
		SenderRole:  domain.RoleDoctor,
		RecipientID: "pat-1",
		Content:     "oops",
		CreatedAt:   baseTime,
	})

	f.engine.DiscardMessage("room-1", temp.ID)

	req.Empty(f.engine.Messages("room-1"))
}

func TestEngine_RoomsSortedByLastActivity(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.seedRoom(t, "room-old", "pat-1")
	f.seedRoom(t, "room-new", "pat-2")

	f.engine.ApplyFeedEvent(event.MessageInserted{
		Message: canonical("m1", "room-old", "pat-1", "old", baseTime)})
	f.engine.ApplyFeedEvent(event.MessageInserted{
		Message: canonical("m2", "room-new", "pat-2", "new", baseTime.Add(time.Hour))})

	rooms := f.engine.Rooms()
	req.Len(rooms, 2)
	req.Equal(chat.RoomID("room-new"), rooms[0].ID)
	req.Equal(chat.RoomID("room-old"), rooms[1].ID)
}

func TestEngine_RoomMergeIsShallowAndFetchesPatient(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.seedRoom(t, "room-1", "pat-1")

	// A partial update touching only the last-message fields
	f.engine.ApplyFeedEvent(event.RoomChanged{
		Kind: event.ChangeUpdate,
		Update: chat.RoomUpdate{
			ID:              "room-1",
			LastMessage:     lo.ToPtr("latest"),
			LastMessageTime: lo.ToPtr(baseTime.Add(time.Hour)),
		},
	})

	room, ok := f.engine.Room("room-1")
	req.True(ok)
	// Untouched fields survive the merge
	req.Equal("pat-1", room.PatientID)
	req.Equal("latest", room.LastMessage)

	// The patient profile was fetched exactly once, on first sight
	profile, ok := f.engine.Patient("pat-1")
	req.True(ok)
	req.Equal("Patient pat-1", profile.Name)
	f.fetcher.mu.Lock()
	req.Len(f.fetcher.fetched, 1)
	f.fetcher.mu.Unlock()
}

func TestEngine_TypingOnlyAffectsOpenRoom(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.seedRoom(t, "room-1", "pat-1")
	f.seedRoom(t, "room-2", "pat-2")

	f.engine.OpenRoom("room-1")
	f.readMarker.expectCall(t, "room-1")

	// Typing in another room is ignored
	f.engine.ApplyTyping(event.ChatTyping{RoomID: "room-2", RecipientID: "doc-1", SenderID: "pat-2"})
	req.False(f.engine.IsTyping("room-2"))

	// Typing in the open room flips the indicator
	f.engine.ApplyTyping(event.ChatTyping{RoomID: "room-1", RecipientID: "doc-1", SenderID: "pat-1"})
	req.True(f.engine.IsTyping("room-1"))
}
