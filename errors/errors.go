package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrMalformedPayload = fmt.Errorf("malformed event payload")
	ErrHandshakeFirst   = fmt.Errorf("first frame must be the auth handshake")
	ErrDoctorRejected   = fmt.Errorf("doctor validation rejected")
	ErrSendBufferFull   = fmt.Errorf("connection send buffer full")
	ErrConnectionClosed = fmt.Errorf("connection closed")

	ErrRoomNotFound    = fmt.Errorf("room not found")
	ErrProfileNotFound = fmt.Errorf("profile not found")

	ErrAccountAlreadyExists = fmt.Errorf("account already exists")
	ErrInvalidCredentials   = fmt.Errorf("invalid credentials")
	ErrInvalidPassword      = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration      = fmt.Errorf("token generation failed")
)
