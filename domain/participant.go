// Package domain contains core concepts of the relay system.
// No runtime, network, or UI logic should be added here.
package domain

type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Counterpart returns the other side of a doctor/patient pairing.
func (r Role) Counterpart() Role {
	if r == RoleDoctor {
		return RolePatient
	}
	return RoleDoctor
}

// Participant is a connected chat member. Its lifecycle is bounded exactly
// by the lifetime of its connection; it is never persisted.
type Participant struct {
	ID   string
	Role Role
}
