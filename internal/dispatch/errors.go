package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"fieldhire/internal/database"
	"fieldhire/internal/models"
)

var (
	// ErrInvalidTransition means the booking's current state does not permit
	// the requested action. Recoverable: re-read and retry.
	ErrInvalidTransition = errors.New("booking state does not permit this action")

	// ErrResourceUnavailable means the targeted resource is not approved or
	// not available at accept time. The booking is left untouched.
	ErrResourceUnavailable = errors.New("resource is not available")

	// ErrQuantityExceeded mirrors the database sentinel for callers that
	// never import the storage layer.
	ErrQuantityExceeded = database.ErrQuantityExceeded

	// ErrConcurrentModification is surfaced when another actor won the
	// check-and-set race. Callers report "no longer available".
	ErrConcurrentModification = database.ErrConcurrentModification

	// ErrNotFound mirrors the database sentinel.
	ErrNotFound = database.ErrNotFound
)

// ConflictError is a warning, not a hard failure: the supplier already holds
// overlapping commitments and must confirm explicitly before the accept
// commits. No side effects occur when it is returned.
type ConflictError struct {
	Conflicts []*models.Booking
}

func (e *ConflictError) Error() string {
	ids := make([]string, len(e.Conflicts))
	for i, b := range e.Conflicts {
		ids[i] = b.ID
	}
	return fmt.Sprintf("schedule conflict with bookings %s; explicit confirmation required",
		strings.Join(ids, ", "))
}
