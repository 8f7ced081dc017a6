package service

import (
	"context"
	"time"

	"github.com/fieldcrew/shiftpoint/internal/model"
	"github.com/fieldcrew/shiftpoint/internal/schedule"
)

// Store interfaces the services depend on.  The MySQL repositories
// implement them for production; tests supply in-memory versions.

// SiteStore reads sites and the org-unit chain used for settings
// inheritance.
type SiteStore interface {
	SiteByID(ctx context.Context, id uint64) (*model.Site, error)
	// OrgUnitChain returns every org unit reachable by walking parents
	// from the given unit, keyed by ID.
	OrgUnitChain(ctx context.Context, unitID uint64) (map[uint64]*model.OrgUnit, error)
}

// SlotStore reads capacity slots and the records occupying them.
type SlotStore interface {
	SlotByID(ctx context.Context, id uint64) (*model.CapacitySlot, error)
	SlotsByDate(ctx context.Context, siteID uint64, date time.Time) ([]*model.CapacitySlot, error)
	// SlotOccupants returns every claiming booking and active session
	// overlapping the slot on its date, as slot-local spans.  Records
	// bound to a different slot are excluded.
	SlotOccupants(ctx context.Context, site *model.Site, slot *model.CapacitySlot) ([]schedule.Occupant, error)
}

// DecideFunc inspects state read under the reservation lock and returns
// nil to proceed with the insert or an error to abort it.
type DecideFunc func(occupants []schedule.Occupant, claims []schedule.Claim) error

// BookingStore persists bookings.  ReserveInSlot must serialize against
// concurrent reservations for the same slot (row lock, advisory lock or
// equivalent), re-read occupancy inside the critical section, invoke
// decide, and only insert when decide returns nil.  Two concurrent
// reservations of the same free interval must therefore never both win.
type BookingStore interface {
	BookingByID(ctx context.Context, id uint64) (*model.Booking, error)
	ReserveInSlot(ctx context.Context, booking *model.Booking, site *model.Site, slot *model.CapacitySlot, decide DecideFunc) error
	// SetBookingStatus moves the booking to status `to` only while its
	// current status is one of `from`, reporting whether a row changed.
	SetBookingStatus(ctx context.Context, id uint64, from []string, to string, reason *string) (bool, error)
	// MarkBookingNotified records that the booking's latest state
	// change reached the notification queue.
	MarkBookingNotified(ctx context.Context, id uint64) error
	BookingsByWorker(ctx context.Context, workerID uint64) ([]*model.Booking, error)
	// FutureClaimedBookings returns the worker's PLANNED/CONFIRMED
	// bookings starting after the given instant.
	FutureClaimedBookings(ctx context.Context, workerID uint64, after time.Time) ([]*model.Booking, error)
	// WorkerClaims returns the worker's claiming bookings and active
	// sessions overlapping [from, to) for the double-claim check.
	WorkerClaims(ctx context.Context, workerID uint64, from, to time.Time) ([]schedule.Claim, error)
}

// AttendanceStore persists attendance sessions.
type AttendanceStore interface {
	SessionByID(ctx context.Context, id uint64) (*model.AttendanceSession, error)
	// ActiveSessionForWorker returns nil, nil when the worker has no
	// active session.
	ActiveSessionForWorker(ctx context.Context, workerID uint64) (*model.AttendanceSession, error)
	ActiveSessions(ctx context.Context) ([]*model.AttendanceSession, error)
	SessionsByWorker(ctx context.Context, workerID uint64) ([]*model.AttendanceSession, error)
	CreateSession(ctx context.Context, s *model.AttendanceSession) error
	// CompleteSession writes end, coordinates and totals, guarded on the
	// row still being ACTIVE; it reports whether a row changed, which is
	// what makes a racing double-close a no-op.
	CompleteSession(ctx context.Context, s *model.AttendanceSession) (bool, error)
}

// AuthorizationStore reads the grants feeding rate resolution and the
// access cascade.
type AuthorizationStore interface {
	// ActiveAuthorizationsForWorker returns grants valid at the given
	// instant, newest first.
	ActiveAuthorizationsForWorker(ctx context.Context, workerID uint64, at time.Time) ([]*model.Authorization, error)
}

// Publisher emits domain events for the notification boundary.  Failures
// are the publisher's problem; services treat publishing as best-effort.
type Publisher interface {
	Publish(ctx context.Context, queueName string, payload any) error
}
