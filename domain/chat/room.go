// Package chat defines rooms, messages and the commands that mutate them.
// A room pairs exactly one doctor with one patient.
package chat

import (
	"time"

	"clinic-relay/domain"
)

type RoomID string

type Room struct {
	ID              RoomID
	DoctorID        string
	PatientID       string
	LastMessage     string
	LastMessageTime time.Time
	UnreadDoctor    int
	UnreadPatient   int
}

// Unread returns the unread counter for the given side.
func (r Room) Unread(side domain.Role) int {
	if side == domain.RoleDoctor {
		return r.UnreadDoctor
	}
	return r.UnreadPatient
}

// RoomUpdate is a partial room record. Nil fields are left untouched when
// the update is merged onto an existing room.
type RoomUpdate struct {
	ID              RoomID
	DoctorID        *string
	PatientID       *string
	LastMessage     *string
	LastMessageTime *time.Time
	UnreadDoctor    *int
	UnreadPatient   *int
}

// Merge shallow-merges the update onto the room: fields present in the
// update overwrite, others are untouched.
func (r *Room) Merge(u RoomUpdate) {
	if u.DoctorID != nil {
		r.DoctorID = *u.DoctorID
	}
	if u.PatientID != nil {
		r.PatientID = *u.PatientID
	}
	if u.LastMessage != nil {
		r.LastMessage = *u.LastMessage
	}
	if u.LastMessageTime != nil {
		r.LastMessageTime = *u.LastMessageTime
	}
	if u.UnreadDoctor != nil {
		r.UnreadDoctor = *u.UnreadDoctor
	}
	if u.UnreadPatient != nil {
		r.UnreadPatient = *u.UnreadPatient
	}
}
