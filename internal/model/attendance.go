package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Attendance session statuses.  ACTIVE is the only non-terminal state; a
// worker can hold at most one ACTIVE session at a time.
const (
	SessionActive    = "ACTIVE"
	SessionCompleted = "COMPLETED"
	SessionCancelled = "CANCELLED"
)

// AttendanceSession is the record of actually-worked time, opened and
// closed with location proof.  Totals are written exactly once, on the
// transition into COMPLETED; sessions are never deleted.
//
// Fields:
//  ID             – primary key identifier.
//  WorkerID       – worker who clocked in.
//  SiteID         – site the session was opened at.
//  SlotID         – optional capacity slot linkage.
//  BookingID      – optional booking linkage (planned attendance).
//  StartAt        – actual clock-in instant (UTC).
//  EndAt          – actual clock-out instant, nil while ACTIVE.
//  PlannedStartAt – slot start plus lateness grace, copied at open time
//                   for lateness detection only, never pay.
//  Status         – ACTIVE, COMPLETED or CANCELLED.
//  StartLat/Lon   – coordinates submitted at clock-in.
//  EndLat/Lon     – coordinates submitted at clock-out.
//  Rate           – hourly rate resolved at open time.
//  TotalHours     – rounded worked hours, set on completion.
//  TotalPayment   – rounded pay, set on completion.
//  WasPlanned     – session was opened against a booking.
type AttendanceSession struct {
	ID             uint64           // attendance_sessions.id
	WorkerID       uint64           // attendance_sessions.worker_id
	SiteID         uint64           // attendance_sessions.site_id
	SlotID         *uint64          // attendance_sessions.slot_id (nullable)
	BookingID      *uint64          // attendance_sessions.booking_id (nullable)
	StartAt        time.Time        // attendance_sessions.start_at
	EndAt          *time.Time       // attendance_sessions.end_at (nullable)
	PlannedStartAt *time.Time       // attendance_sessions.planned_start_at (nullable)
	Status         string           // attendance_sessions.status
	StartLat       float64          // attendance_sessions.start_lat
	StartLon       float64          // attendance_sessions.start_lon
	EndLat         *float64         // attendance_sessions.end_lat (nullable)
	EndLon         *float64         // attendance_sessions.end_lon (nullable)
	Rate           decimal.Decimal  // attendance_sessions.rate
	TotalHours     *decimal.Decimal // attendance_sessions.total_hours (nullable)
	TotalPayment   *decimal.Decimal // attendance_sessions.total_payment (nullable)
	WasPlanned     bool             // attendance_sessions.was_planned
	CreatedAt      time.Time        // attendance_sessions.created_at
	UpdatedAt      time.Time        // attendance_sessions.updated_at
}

// Late reports whether the session started after its recorded planned
// start.  Unplanned sessions are never late.
func (s *AttendanceSession) Late() bool {
	return s.PlannedStartAt != nil && s.StartAt.After(*s.PlannedStartAt)
}
