// Package event defines the closed set of payloads crossing the relay
// boundary, and the change-feed events emitted by storage. Payload shapes
// are validated at the boundary; malformed frames are rejected instead of
// trusting caller-supplied data.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"clinic-relay/errors"

	"github.com/go-playground/validator/v10"
)

// Relay protocol event names. The forwarded payloads keep the exact shape
// they were received with.
const (
	NameAuth    = "auth"
	NameMessage = "chat:message"
	NameTyping  = "chat:typing"
	NameError   = "error"
)

var validate = validator.New()

// Envelope is the wire frame exchanged with the relay.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEnvelope(name string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: name, Payload: raw}, nil
}

// HandshakeAuth carries the claimed identity of a connecting participant.
type HandshakeAuth struct {
	ParticipantID string `json:"participantId" validate:"required"`
	Role          string `json:"role" validate:"required,oneof=doctor patient"`
}

// ChatMessage is the relay payload for a message. It carries no storage ID;
// durability and identity come from the storage collaborator, not the relay.
type ChatMessage struct {
	RoomID      string    `json:"roomId" validate:"required"`
	Message     string    `json:"message" validate:"required"`
	SenderID    string    `json:"senderId" validate:"required"`
	RecipientID string    `json:"recipientId" validate:"required"`
	Timestamp   time.Time `json:"timestamp" validate:"required"`
}

// ChatTyping is the transient typing indicator payload. Never persisted.
type ChatTyping struct {
	RoomID      string `json:"roomId" validate:"required"`
	RecipientID string `json:"recipientId" validate:"required"`
	SenderID    string `json:"senderId" validate:"required"`
	SenderName  string `json:"senderName,omitempty"`
}

func DecodeAuth(raw json.RawMessage) (HandshakeAuth, error) {
	var p HandshakeAuth
	return p, decode(raw, &p)
}

func DecodeChatMessage(raw json.RawMessage) (ChatMessage, error) {
	var p ChatMessage
	return p, decode(raw, &p)
}

func DecodeChatTyping(raw json.RawMessage) (ChatTyping, error) {
	var p ChatTyping
	return p, decode(raw, &p)
}

func decode(raw json.RawMessage, target any) error {
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	if err := validate.Struct(target); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	return nil
}
