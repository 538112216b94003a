package queue

import "errors"

// Queue transition failures. All are recoverable and user-facing; handlers
// map them onto specific HTTP responses rather than a generic 500.
var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrAppointmentNotCheckedIn = errors.New("appointment is not checked in")
	ErrAlreadyQueued           = errors.New("appointment already has an active queue entry")
	ErrServicePointNotFound    = errors.New("service point not found")
	ErrServicePointInactive    = errors.New("service point is inactive")
	ErrServicePointIneligible  = errors.New("service point cannot serve this appointment's service")
	ErrEntryNotFound           = errors.New("queue entry not found")
	ErrInvalidTransition       = errors.New("invalid queue state transition")
	ErrNoopTransfer            = errors.New("transfer destination equals current service point")
)
