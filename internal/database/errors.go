package database

import "errors"

var (
	// ErrConcurrentModification means a versioned update hit zero rows:
	// another actor claimed or advanced the booking first.
	ErrConcurrentModification = errors.New("booking was modified concurrently")

	// ErrNotFound is returned for lookups that match nothing.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidState means a serialized transaction found the booking in a
	// state that no longer permits the operation.
	ErrInvalidState = errors.New("booking state does not permit this operation")

	// ErrQuantityExceeded means a sub-allocation would overshoot the
	// remaining requested quantity. Nothing is committed.
	ErrQuantityExceeded = errors.New("allocation exceeds remaining quantity")
)
