package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CapacitySlot is a bookable time window on a specific date at one site
// with an occupancy ceiling.  Once bookings reference a slot it is
// deactivated rather than deleted.
//
// Fields:
//  ID            – primary key identifier.
//  SiteID        – site the slot belongs to.
//  Date          – calendar date of the window (date component only).
//  StartMinutes  – local start, minutes from midnight.
//  EndMinutes    – local end, minutes from midnight (must exceed start).
//  Capacity      – maximum concurrent occupants (default 1).
//  OverrideRate  – optional hourly rate overriding the site base rate.
//  Supplementary – window lies outside the site's normal working hours.
//  IsActive      – soft-deactivation flag.
type CapacitySlot struct {
	ID            uint64           // capacity_slots.id
	SiteID        uint64           // capacity_slots.site_id
	Date          time.Time        // capacity_slots.slot_date
	StartMinutes  int              // capacity_slots.start_minutes
	EndMinutes    int              // capacity_slots.end_minutes
	Capacity      int              // capacity_slots.capacity
	OverrideRate  *decimal.Decimal // capacity_slots.override_rate (nullable)
	Supplementary bool             // capacity_slots.supplementary
	IsActive      bool             // capacity_slots.is_active
	CreatedAt     time.Time        // capacity_slots.created_at
	UpdatedAt     time.Time        // capacity_slots.updated_at
}

// StartAt returns the slot's absolute start instant in the given location.
func (s *CapacitySlot) StartAt(loc *time.Location) time.Time {
	return AtDate(s.Date, s.StartMinutes, loc)
}

// EndAt returns the slot's absolute end instant in the given location.
func (s *CapacitySlot) EndAt(loc *time.Location) time.Time {
	return AtDate(s.Date, s.EndMinutes, loc)
}
