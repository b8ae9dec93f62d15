//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"clinic-relay/domain"
	"clinic-relay/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself. Supervision handles panics and restarts.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is a live participant connection handle. Send must not block:
// implementations buffer and report failure instead of stalling the relay.
type Connection interface {
	Send(env event.Envelope) error
	Close() error
}

// IRegistry maps participant identity to its live connection and role.
type IRegistry interface {
	Register(p domain.Participant, conn Connection)
	Lookup(participantID string) (Connection, bool)
	UnregisterConnection(conn Connection)
}

// IDoctorValidator is the identity-validation collaborator consumed before a
// doctor is allowed to join the relay.
type IDoctorValidator interface {
	Validate(ctx context.Context, doctorID string) (domain.DoctorProfile, error)
}
