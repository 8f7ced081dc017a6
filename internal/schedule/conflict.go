package schedule

import (
	"time"

	"github.com/fieldcrew/shiftpoint/internal/interval"
)

// Claim is an existing record that can collide with a proposed interval:
// a PLANNED/CONFIRMED booking or an ACTIVE attendance session.  An
// open-ended active session has a nil EndAt and is treated as extending
// forever for overlap purposes.
type Claim struct {
	Kind     OccupantKind
	RefID    uint64
	WorkerID uint64
	StartAt  time.Time
	EndAt    *time.Time
}

// Conflict describes one colliding record.  Rejections carry the full
// list so the caller can present every collision at once.
type Conflict struct {
	Kind    OccupantKind `json:"kind"`
	RefID   uint64       `json:"ref_id"`
	StartAt time.Time    `json:"start_at"`
	EndAt   *time.Time   `json:"end_at,omitempty"`
}

// DoubleClaims returns every existing claim that overlaps the proposed
// [start, end) interval.  Overlap uses the half-open test
// existingStart < newEnd && newStart < existingEnd.
func DoubleClaims(existing []Claim, start, end time.Time) []Conflict {
	var conflicts []Conflict
	for _, c := range existing {
		if !c.StartAt.Before(end) {
			continue
		}
		// Nil end means the claim extends to +inf and always passes the
		// second half of the overlap test.
		if c.EndAt != nil && !start.Before(*c.EndAt) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Kind:    c.Kind,
			RefID:   c.RefID,
			StartAt: c.StartAt,
			EndAt:   c.EndAt,
		})
	}
	return conflicts
}

// WindowViolation codes returned by CheckWindow.
type WindowViolation string

const (
	ViolationBeforeOpening WindowViolation = "BEFORE_OPENING"
	ViolationAfterClosing  WindowViolation = "AFTER_CLOSING"
	ViolationTooShort      WindowViolation = "BELOW_MINIMUM_DURATION"
)

// CheckWindow validates a proposed slot-local interval against a working
// window and a minimum duration (all in minutes).  It returns every
// violation rather than the first one.
func CheckWindow(window, proposed interval.Interval, minDurationMin int) []WindowViolation {
	var violations []WindowViolation
	if proposed.Start < window.Start {
		violations = append(violations, ViolationBeforeOpening)
	}
	if proposed.End > window.End {
		violations = append(violations, ViolationAfterClosing)
	}
	if proposed.Duration() < minDurationMin {
		violations = append(violations, ViolationTooShort)
	}
	return violations
}
