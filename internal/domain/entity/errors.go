package entity

import "errors"

var (
	// ErrInvalidInput marks malformed inputs that must never be silently corrected.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateSchedule is returned when a (flight, kind) notification already exists.
	ErrDuplicateSchedule = errors.New("notification already scheduled")
	// ErrDeliveryFailure wraps provider rejections and send timeouts.
	ErrDeliveryFailure = errors.New("delivery failed")
	// ErrSelectionFailure means due notifications could not be read from storage.
	ErrSelectionFailure = errors.New("notification selection failed")

	ErrNotFound          = errors.New("not found")
	ErrDuplicateFlight   = errors.New("flight already tracked")
	ErrDuplicateUser     = errors.New("user already registered")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRunInProgress     = errors.New("dispatch run already in progress")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidMessage    = errors.New("invalid message context")
)
