package relay_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"clinic-relay/domain"
	"clinic-relay/domain/event"
	"clinic-relay/errors"
	"clinic-relay/mocks"
	"clinic-relay/observability"
	"clinic-relay/relay"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// recordingConn captures everything sent to a participant.
type recordingConn struct {
	mu     sync.Mutex
	sent   []event.Envelope
	closed bool
}

func (c *recordingConn) Send(env event.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, env)
	return nil
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingConn) Sent() []event.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]event.Envelope, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *recordingConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEnvelope(t *testing.T, name string, payload any) event.Envelope {
	env, err := event.NewEnvelope(name, payload)
	require.NoError(t, err)
	return env
}

// attach runs Attach in a goroutine, feeding it the auth frame first.
func attach(t *testing.T, server *relay.Server, conn *recordingConn,
	auth event.HandshakeAuth) (chan<- event.Envelope, func() error) {
	t.Helper()

	frames := make(chan event.Envelope, 16)
	frames <- newEnvelope(t, event.NameAuth, auth)

	done := make(chan error, 1)
	go func() {
		done <- server.Attach(context.Background(), conn, frames)
	}()

	wait := func() error {
		close(frames)
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("Attach did not return")
			return nil
		}
	}
	return frames, wait
}

func waitForSent(t *testing.T, conn *recordingConn, want int) []event.Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sent := conn.Sent(); len(sent) >= want {
			return sent
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d sent frames, got %d", want, len(conn.Sent()))
	return nil
}

func TestServer_ForwardsMessageBetweenParticipants(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	log := testLogger()
	registry := relay.NewRegistry(log)
	monitor := observability.NewRelayMonitor()
	validator := mocks.NewMockIDoctorValidator(ctrl)
	validator.EXPECT().
		Validate(gomock.Any(), "doc-1").
		Return(domain.DoctorProfile{ID: "doc-1", Name: "Dr. Who"}, nil).
		Times(1)

	server := relay.NewServer(log, registry, validator, monitor)

	doctorConn := &recordingConn{}
	patientConn := &recordingConn{}

	// Given a validated doctor and an unvalidated patient, both connected
	_, waitDoctor := attach(t, server, doctorConn,
		event.HandshakeAuth{ParticipantID: "doc-1", Role: "doctor"})
	patientFrames, waitPatient := attach(t, server, patientConn,
		event.HandshakeAuth{ParticipantID: "pat-1", Role: "patient"})

	// Handshake frames are consumed asynchronously
	req.Eventually(func() bool { return registry.Size() == 2 },
		2*time.Second, 5*time.Millisecond)

	// When the patient sends a chat message addressed to the doctor
	sent := newEnvelope(t, event.NameMessage, event.ChatMessage{
		RoomID:      "doc-1_pat-1",
		Message:     "hello",
		SenderID:    "pat-1",
		RecipientID: "doc-1",
		Timestamp:   time.Now().UTC(),
	})
	patientFrames <- sent

	// Then the doctor receives the identical envelope
	received := waitForSent(t, doctorConn, 1)
	req.Equal(sent, received[0])
	req.Empty(patientConn.Sent())

	req.NoError(waitPatient())
	req.NoError(waitDoctor())
	req.Equal(uint64(1), monitor.Snapshot().ForwardedEvents)
}

func TestServer_RejectsUnknownDoctor(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	log := testLogger()
	registry := relay.NewRegistry(log)
	monitor := observability.NewRelayMonitor()
	validator := mocks.NewMockIDoctorValidator(ctrl)
	validator.EXPECT().
		Validate(gomock.Any(), "doc-ghost").
		Return(domain.DoctorProfile{}, errors.ErrProfileNotFound).
		Times(1)

	server := relay.NewServer(log, registry, validator, monitor)
	conn := &recordingConn{}

	frames := make(chan event.Envelope, 1)
	frames <- newEnvelope(t, event.NameAuth,
		event.HandshakeAuth{ParticipantID: "doc-ghost", Role: "doctor"})

	// When an unknown doctor attaches
	err := server.Attach(context.Background(), conn, frames)

	// Then the connection is rejected and force-closed, never registered
	req.ErrorIs(err, errors.ErrDoctorRejected)
	req.True(conn.Closed())
	req.Zero(registry.Size())
	req.Equal(uint64(1), monitor.Snapshot().RejectedHandshakes)
}

func TestServer_RejectsNonAuthFirstFrame(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	log := testLogger()
	registry := relay.NewRegistry(log)
	server := relay.NewServer(log, registry,
		mocks.NewMockIDoctorValidator(ctrl), observability.NewRelayMonitor())
	conn := &recordingConn{}

	frames := make(chan event.Envelope, 1)
	frames <- newEnvelope(t, event.NameMessage, event.ChatMessage{
		RoomID:      "r",
		Message:     "too early",
		SenderID:    "pat-1",
		RecipientID: "doc-1",
		Timestamp:   time.Now().UTC(),
	})

	err := server.Attach(context.Background(), conn, frames)

	req.ErrorIs(err, errors.ErrHandshakeFirst)
	req.True(conn.Closed())
	req.Zero(registry.Size())
}

func TestServer_MalformedFrameIsLocalOnly(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	log := testLogger()
	registry := relay.NewRegistry(log)
	monitor := observability.NewRelayMonitor()
	server := relay.NewServer(log, registry,
		mocks.NewMockIDoctorValidator(ctrl), monitor)

	conn := &recordingConn{}
	frames, wait := attach(t, server, conn,
		event.HandshakeAuth{ParticipantID: "pat-1", Role: "patient"})

	// When the participant sends a chat:message missing required fields
	frames <- newEnvelope(t, event.NameMessage, map[string]string{"roomId": "r"})

	// And a valid frame right after
	frames <- newEnvelope(t, event.NameTyping, event.ChatTyping{
		RoomID:      "r",
		RecipientID: "pat-1",
		SenderID:    "pat-1",
	})

	// Then the connection survives and keeps processing: the typing frame
	// addressed to itself comes back
	waitForSent(t, conn, 1)
	req.NoError(wait())
	req.Equal(uint64(1), monitor.Snapshot().MalformedPayloads)
}

func TestServer_OfflineRecipientIsSilentlyDropped(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	log := testLogger()
	registry := relay.NewRegistry(log)
	monitor := observability.NewRelayMonitor()
	server := relay.NewServer(log, registry,
		mocks.NewMockIDoctorValidator(ctrl), monitor)

	conn := &recordingConn{}
	frames, wait := attach(t, server, conn,
		event.HandshakeAuth{ParticipantID: "pat-1", Role: "patient"})

	// When the patient messages a doctor who is not connected
	frames <- newEnvelope(t, event.NameMessage, event.ChatMessage{
		RoomID:      "doc-1_pat-1",
		Message:     "anyone?",
		SenderID:    "pat-1",
		RecipientID: "doc-1",
		Timestamp:   time.Now().UTC(),
	})

	// Then no error reaches the sender and the drop is counted
	req.Eventually(func() bool { return monitor.Snapshot().DroppedOffline == 1 },
		2*time.Second, 5*time.Millisecond)
	req.Empty(conn.Sent())
	req.NoError(wait())
}
