package model

import "errors"

var (
	// ErrSlotTaken is the expected outcome of losing a booking race: the
	// storage-level uniqueness constraint rejected the claim. Callers report
	// it as "slot no longer available", never as a fault.
	ErrSlotTaken = errors.New("slot already taken")

	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidTransition   = errors.New("invalid transition")

	// ErrUnavailable marks transient storage failures. The whole operation is
	// safe to retry from scratch; nothing partial was applied.
	ErrUnavailable = errors.New("storage unavailable")
)
