package store

import "errors"

// Domain errors surfaced by store operations. Callers match with errors.Is.
var (
	ErrLabNotFound         = errors.New("lab not found")
	ErrComputerNotFound    = errors.New("computer not found")
	ErrSeriesNotFound      = errors.New("series not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrHoldNotFound        = errors.New("maintenance hold not found")
	ErrStudentNotFound     = errors.New("student not found")

	// ErrSessionOpen rejects starting maintenance while a session is open;
	// the two claims are mutually exclusive on one computer.
	ErrSessionOpen = errors.New("computer has an open usage session")
	// ErrHoldOpen rejects opening a second maintenance hold.
	ErrHoldOpen = errors.New("computer already has an open maintenance hold")
	// ErrComputerUnavailable rejects a checkout on a computer that is in
	// use or under maintenance.
	ErrComputerUnavailable = errors.New("computer is not available for checkout")

	// ErrStateConflict means a sweeper state write lost a transactional
	// race with an explicit session/maintenance action. The sweep for the
	// lab is retried once.
	ErrStateConflict = errors.New("concurrent state conflict")
)
