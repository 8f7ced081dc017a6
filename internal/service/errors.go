package service

import (
	"fmt"

	"github.com/fieldcrew/shiftpoint/internal/schedule"
)

// The failure taxonomy handlers translate into HTTP responses.  Each type
// carries the data a caller needs to recover: validation and conflict
// failures are fixed by resubmitting a different interval, geofence
// failures by moving closer, state failures not at all.

// ValidationError reports a malformed or out-of-window interval.
type ValidationError struct {
	Message    string
	Violations []schedule.WindowViolation
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError reports double-claims or exhausted capacity.  It carries
// every colliding record so the caller can present all of them at once.
type ConflictError struct {
	Message   string
	Conflicts []schedule.Conflict
}

func (e *ConflictError) Error() string { return e.Message }

// GeofenceError reports a clock-in/out attempt from too far away.  The
// measured distance and the allowed radius are both included so the
// client can offer a retry.
type GeofenceError struct {
	DistanceMeters    float64
	MaxDistanceMeters float64
}

func (e *GeofenceError) Error() string {
	return fmt.Sprintf("outside geofence: %.0fm away, %.0fm allowed", e.DistanceMeters, e.MaxDistanceMeters)
}

// StateError reports a precondition failure that retrying cannot fix:
// no active session to close, a record owned by someone else, a booking
// past its cancellation cutoff.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string { return e.Reason }

// NotFoundError reports a missing site, slot, booking or session.
type NotFoundError struct {
	Kind string
	ID   uint64
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %d not found", e.Kind, e.ID) }
