//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"clinic-relay/domain"
	"clinic-relay/domain/chat"
	"clinic-relay/repositories"
)

type IChatService interface {
	SendMessage(cmd chat.SendMessageCommand) (chat.Message, error)
	MarkRead(roomID chat.RoomID, side domain.Role) (chat.Room, error)
	LoadMessages(roomID chat.RoomID) ([]chat.Message, error)
	LoadRooms(doctorID string) ([]chat.Room, error)
	EnsureRoom(roomID chat.RoomID, doctorID, patientID string) error
}

// ChatService is the storage-facing half of a message send. The relay
// forwards frames between live connections on its own; this service persists
// the message and refreshes the room metadata, which in turn feeds the
// change feed.
type ChatService struct {
	messages repositories.IMessageRepository
	rooms    repositories.IRoomRepository
}

func NewChatService(messages repositories.IMessageRepository, rooms repositories.IRoomRepository) *ChatService {
	return &ChatService{messages: messages, rooms: rooms}
}

// SendMessage persists the message and updates the room's last-message
// fields and the recipient's unread counter. Returns the canonical stored
// message, whose ID replaces the sender's temporary one.
func (s *ChatService) SendMessage(cmd chat.SendMessageCommand) (chat.Message, error) {
	stored, err := s.messages.StoreMessage(chat.Message{
		RoomID:     cmd.RoomID,
		SenderID:   cmd.SenderID,
		SenderRole: cmd.SenderRole,
		Content:    cmd.Content,
		CreatedAt:  cmd.CreatedAt,
	})
	if err != nil {
		return chat.Message{}, err
	}

	if _, err := s.rooms.RecordMessage(cmd.RoomID, cmd.Content, cmd.CreatedAt, cmd.SenderRole); err != nil {
		// The message is stored; the room row heals on the next send.
		return stored, err
	}
	return stored, nil
}

func (s *ChatService) MarkRead(roomID chat.RoomID, side domain.Role) (chat.Room, error) {
	return s.rooms.MarkRead(roomID, side)
}

func (s *ChatService) LoadMessages(roomID chat.RoomID) ([]chat.Message, error) {
	return s.messages.GetMessages(roomID)
}

func (s *ChatService) LoadRooms(doctorID string) ([]chat.Room, error) {
	return s.rooms.ListRoomsByDoctor(doctorID)
}

// EnsureRoom creates the room row if it does not exist yet, typically on
// the first message between a doctor and a patient.
func (s *ChatService) EnsureRoom(roomID chat.RoomID, doctorID, patientID string) error {
	if _, err := s.rooms.GetRoom(roomID); err == nil {
		return nil
	}
	return s.rooms.UpsertRoom(chat.Room{
		ID:        roomID,
		DoctorID:  doctorID,
		PatientID: patientID,
	})
}
