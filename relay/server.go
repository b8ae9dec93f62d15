package relay

import (
	"context"
	"fmt"
	"log/slog"

	"clinic-relay/contract"
	"clinic-relay/domain"
	"clinic-relay/domain/event"
	"clinic-relay/errors"
	"clinic-relay/observability"
)

// Server drives each connection through its lifecycle
// (Connecting -> Validating -> Active -> Disconnected) and forwards chat
// events to the recipient's live connection.
//
// Delivery is at-most-once and best-effort: a recipient without a registry
// entry means the event is silently dropped. There is no queue and no retry;
// durability comes solely from the storage collaborator.
type Server struct {
	log       *slog.Logger
	registry  contract.IRegistry
	validator contract.IDoctorValidator
	monitor   *observability.RelayMonitor
}

func NewServer(log *slog.Logger, registry contract.IRegistry,
	validator contract.IDoctorValidator, monitor *observability.RelayMonitor) *Server {
	return &Server{
		log:       log,
		registry:  registry,
		validator: validator,
		monitor:   monitor,
	}
}

// Attach takes ownership of an accepted connection. The first frame must be
// the auth handshake; a doctor identity is validated against the directory
// collaborator and the connection is force-closed on rejection. Any other
// declared role proceeds without external validation, patients being
// pre-authenticated upstream. The method blocks until the frames channel closes or the
// context is canceled, then unregisters the participant.
func (s *Server) Attach(ctx context.Context, conn contract.Connection, frames <-chan event.Envelope) error {
	participant, err := s.handshake(ctx, conn, frames)
	if err != nil {
		s.monitor.IncrRejected()
		_ = conn.Close()
		return err
	}

	s.registry.Register(participant, conn)
	s.monitor.ConnOpened()
	s.log.Info(fmt.Sprintf("%s with ID %s connected", participant.Role, participant.ID))

	defer func() {
		s.registry.UnregisterConnection(conn)
		s.monitor.ConnClosed()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-frames:
			if !ok {
				// Transport closed: no further events are processed
				// for this connection.
				return nil
			}
			s.dispatch(env)
		}
	}
}

// handshake performs the Connecting -> Validating transition.
func (s *Server) handshake(ctx context.Context, _ contract.Connection, frames <-chan event.Envelope) (domain.Participant, error) {
	var env event.Envelope
	select {
	case <-ctx.Done():
		return domain.Participant{}, ctx.Err()
	case first, ok := <-frames:
		if !ok {
			return domain.Participant{}, errors.ErrHandshakeFirst
		}
		env = first
	}

	if env.Event != event.NameAuth {
		return domain.Participant{}, errors.ErrHandshakeFirst
	}

	auth, err := event.DecodeAuth(env.Payload)
	if err != nil {
		return domain.Participant{}, err
	}

	role := domain.Role(auth.Role)
	if role == domain.RoleDoctor {
		profile, err := s.validator.Validate(ctx, auth.ParticipantID)
		if err != nil {
			// A collaborator error counts as a rejection: the connection
			// must not reach Active on an unverified doctor identity.
			return domain.Participant{}, fmt.Errorf("%w: %v", errors.ErrDoctorRejected, err)
		}
		s.log.Debug(fmt.Sprintf("Doctor validated: %s", profile.Name))
	} else {
		// Patients are pre-authenticated upstream and join unvalidated.
		s.log.Debug(fmt.Sprintf("Unvalidated %s join: %s", role, auth.ParticipantID))
	}

	return domain.Participant{ID: auth.ParticipantID, Role: role}, nil
}

// dispatch routes a single frame. Errors here are local to the frame and
// must never stop the connection loop.
func (s *Server) dispatch(env event.Envelope) {
	switch env.Event {
	case event.NameMessage:
		payload, err := event.DecodeChatMessage(env.Payload)
		if err != nil {
			s.monitor.IncrMalformed()
			s.log.Warn("Dropping malformed chat:message frame", "error", err)
			return
		}
		s.forward(payload.RecipientID, env)
	case event.NameTyping:
		payload, err := event.DecodeChatTyping(env.Payload)
		if err != nil {
			s.monitor.IncrMalformed()
			s.log.Warn("Dropping malformed chat:typing frame", "error", err)
			return
		}
		s.forward(payload.RecipientID, env)
	default:
		s.log.Debug(fmt.Sprintf("Ignoring unknown event %q", env.Event))
	}
}

// forward delivers the identical envelope to the recipient's connection.
// A missing entry is not an error: the recipient is offline and durability
// is the storage collaborator's job.
func (s *Server) forward(recipientID string, env event.Envelope) {
	conn, ok := s.registry.Lookup(recipientID)
	if !ok {
		s.monitor.IncrDropped()
		s.log.Debug(fmt.Sprintf("Recipient %s offline, dropping %s", recipientID, env.Event))
		return
	}
	if err := conn.Send(env); err != nil {
		// The connection is already gone or saturated; same outcome as
		// offline. No retry.
		s.monitor.IncrDropped()
		s.log.Debug("Forward failed", "recipient", recipientID, "error", err)
		return
	}
	s.monitor.IncrForwarded()
}
