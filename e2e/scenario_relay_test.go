package e2e

import (
	"testing"
	"time"

	"clinic-relay/domain"
	"clinic-relay/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type testRelayForwardingSuite struct {
	BaseRelaySuite
}

func TestRelayForwardingSuite(t *testing.T) {
	suite.Run(t, &testRelayForwardingSuite{})
}

// A doctor (present in the relay's directory) and a patient connect; frames
// sent by one must arrive at the other with an identical payload shape.
func (s *testRelayForwardingSuite) TestMessageAndTypingForwarding() {
	patientID := "pat-" + uuid.NewString()[:8]
	roomID := s.Config.DoctorID + "_" + patientID

	doctor := s.Connect("DOCTOR", domain.Participant{ID: s.Config.DoctorID, Role: domain.RoleDoctor})
	patient := s.Connect("PATIENT", domain.Participant{ID: patientID, Role: domain.RolePatient})

	// Handshakes race with the first send; give the relay a beat to register
	time.Sleep(200 * time.Millisecond)

	s.Run("Step 1: Patient message reaches the doctor", func() {
		sent := event.ChatMessage{
			RoomID:      roomID,
			Message:     "Bonjour docteur",
			SenderID:    patientID,
			RecipientID: s.Config.DoctorID,
			Timestamp:   time.Now().UTC(),
		}
		s.Require().NoError(patient.Emit(event.NameMessage, sent))

		env := s.Receive(doctor, event.NameMessage)
		received, err := event.DecodeChatMessage(env.Payload)
		s.Require().NoError(err)
		s.Require().Equal(sent.Message, received.Message)
		s.Require().Equal(sent.RoomID, received.RoomID)
		s.Require().Equal(sent.SenderID, received.SenderID)
	})

	s.Run("Step 2: Doctor typing indicator reaches the patient", func() {
		s.Require().NoError(doctor.Emit(event.NameTyping, event.ChatTyping{
			RoomID:      roomID,
			RecipientID: patientID,
			SenderID:    s.Config.DoctorID,
		}))

		env := s.Receive(patient, event.NameTyping)
		received, err := event.DecodeChatTyping(env.Payload)
		s.Require().NoError(err)
		s.Require().Equal(s.Config.DoctorID, received.SenderID)
	})

	s.Run("Step 3: Message to an offline recipient is silently dropped", func() {
		s.Require().NoError(doctor.Emit(event.NameMessage, event.ChatMessage{
			RoomID:      roomID,
			Message:     "are you there?",
			SenderID:    s.Config.DoctorID,
			RecipientID: "pat-offline-" + uuid.NewString()[:8],
			Timestamp:   time.Now().UTC(),
		}))

		// The relay must neither error back nor close our connection
		s.Require().NoError(doctor.Emit(event.NameTyping, event.ChatTyping{
			RoomID:      roomID,
			RecipientID: patientID,
			SenderID:    s.Config.DoctorID,
		}))
		s.Receive(patient, event.NameTyping)
	})
}
