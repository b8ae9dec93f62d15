package event

import (
	"encoding/json"
	"testing"
	"time"

	"clinic-relay/errors"

	"github.com/stretchr/testify/require"
)

func TestDecodeAuth(t *testing.T) {
	req := require.New(t)

	t.Run("valid doctor handshake", func(t *testing.T) {
		payload := json.RawMessage(`{"participantId":"doc-1","role":"doctor"}`)

		auth, err := DecodeAuth(payload)

		req.NoError(err)
		req.Equal("doc-1", auth.ParticipantID)
		req.Equal("doctor", auth.Role)
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		payload := json.RawMessage(`{"participantId":"x","role":"admin"}`)

		_, err := DecodeAuth(payload)

		req.ErrorIs(err, errors.ErrMalformedPayload)
	})

	t.Run("missing participant is rejected", func(t *testing.T) {
		payload := json.RawMessage(`{"role":"patient"}`)

		_, err := DecodeAuth(payload)

		req.ErrorIs(err, errors.ErrMalformedPayload)
	})
}

func TestDecodeChatMessage(t *testing.T) {
	req := require.New(t)

	t.Run("round trip through an envelope", func(t *testing.T) {
		sent := ChatMessage{
			RoomID:      "doc-1_pat-1",
			Message:     "hello",
			SenderID:    "pat-1",
			RecipientID: "doc-1",
			Timestamp:   time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		}
		env, err := NewEnvelope(NameMessage, sent)
		req.NoError(err)
		req.Equal(NameMessage, env.Event)

		decoded, err := DecodeChatMessage(env.Payload)
		req.NoError(err)
		req.Equal(sent, decoded)
	})

	t.Run("missing required fields are rejected", func(t *testing.T) {
		payload := json.RawMessage(`{"roomId":"r","message":"hi"}`)

		_, err := DecodeChatMessage(payload)

		req.ErrorIs(err, errors.ErrMalformedPayload)
	})

	t.Run("invalid JSON is rejected", func(t *testing.T) {
		_, err := DecodeChatMessage(json.RawMessage(`{not json`))

		req.ErrorIs(err, errors.ErrMalformedPayload)
	})
}

func TestDecodeChatTyping(t *testing.T) {
	req := require.New(t)

	t.Run("sender name is optional", func(t *testing.T) {
		payload := json.RawMessage(`{"roomId":"r","recipientId":"doc-1","senderId":"pat-1"}`)

		typing, err := DecodeChatTyping(payload)

		req.NoError(err)
		req.Empty(typing.SenderName)
	})

	t.Run("missing recipient is rejected", func(t *testing.T) {
		payload := json.RawMessage(`{"roomId":"r","senderId":"pat-1"}`)

		_, err := DecodeChatTyping(payload)

		req.ErrorIs(err, errors.ErrMalformedPayload)
	})
}
