package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking statuses.  A booking is a claim on a future interval; it either
// gets cancelled or completes when its attendance session closes.
const (
	BookingPlanned   = "PLANNED"
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
	BookingCompleted = "COMPLETED"
)

// Booking is a worker's claim on a sub-interval of a capacity slot, or on
// an unconstrained window inside the site's working hours.  Start and end
// are absolute instants; comparisons against slot and site windows happen
// in the site's timezone.
//
// Fields:
//  ID               – primary key identifier.
//  WorkerID         – worker holding the claim.
//  SiteID           – site the claim targets.
//  SlotID           – optional capacity slot the claim is bound to.
//  StartAt          – planned start instant (UTC).
//  EndAt            – planned end instant (UTC), after StartAt by at
//                     least the configured minimum duration.
//  Rate             – hourly rate resolved at booking time.
//  Status           – PLANNED, CONFIRMED, CANCELLED or COMPLETED.
//  NotificationSent – downstream notification already published.
//  CancelReason     – structured reason recorded on cancellation.
type Booking struct {
	ID               uint64          // bookings.id
	WorkerID         uint64          // bookings.worker_id
	SiteID           uint64          // bookings.site_id
	SlotID           *uint64         // bookings.slot_id (nullable)
	StartAt          time.Time       // bookings.start_at
	EndAt            time.Time       // bookings.end_at
	Rate             decimal.Decimal // bookings.rate
	Status           string          // bookings.status
	NotificationSent bool            // bookings.notification_sent
	CancelReason     *string         // bookings.cancel_reason (nullable)
	CreatedAt        time.Time       // bookings.created_at
	UpdatedAt        time.Time       // bookings.updated_at
}

// Claims reports whether the booking still occupies its interval, i.e. it
// has not been cancelled or completed.
func (b *Booking) Claims() bool {
	return b.Status == BookingPlanned || b.Status == BookingConfirmed
}
