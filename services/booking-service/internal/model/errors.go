package model

import "errors"

var (
	// ErrNotFound: the referenced provider/slot/entry does not exist (or, for
	// cancel, does not belong to the caller).
	ErrNotFound = errors.New("not found")
	// ErrDuplicate: an insert collided with an existing unique combination.
	ErrDuplicate = errors.New("duplicate")
	// ErrAlreadyBooked: a booking race was lost; the slot is taken.
	ErrAlreadyBooked = errors.New("already booked")
	// ErrInvalidInput: unparsable date-time or malformed duration.
	ErrInvalidInput = errors.New("invalid input")
)
