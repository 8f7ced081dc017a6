// Package queue defines message payloads exchanged over the message
// broker plus the publisher and consumer that move them.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldcrew/shiftpoint/internal/model"
)

// Queue names.  One durable queue per event kind.
const (
	QueueBookingConfirmed = "booking.confirmed"
	QueueBookingCancelled = "booking.cancelled"
	QueueAttendanceClosed = "attendance.closed"
)

// BookingConfirmedEvent is published when a booking wins its interval.
// It carries enough information for downstream consumers to notify or
// run analytics without querying the primary database.
type BookingConfirmedEvent struct {
	EventID   string  `json:"event_id"`
	BookingID uint64  `json:"booking_id"`
	WorkerID  uint64  `json:"worker_id"`
	SiteID    uint64  `json:"site_id"`
	SlotID    *uint64 `json:"slot_id,omitempty"`
	StartAt   string  `json:"start_at"`
	EndAt     string  `json:"end_at"`
	Rate      string  `json:"rate"`
	RateTier  string  `json:"rate_tier"`
	CreatedAt string  `json:"created_at"`
}

// NewBookingConfirmedEvent builds the event for a freshly created booking.
func NewBookingConfirmedEvent(b *model.Booking, rateTier string) BookingConfirmedEvent {
	return BookingConfirmedEvent{
		EventID:   uuid.NewString(),
		BookingID: b.ID,
		WorkerID:  b.WorkerID,
		SiteID:    b.SiteID,
		SlotID:    b.SlotID,
		StartAt:   b.StartAt.UTC().Format(time.RFC3339),
		EndAt:     b.EndAt.UTC().Format(time.RFC3339),
		Rate:      b.Rate.String(),
		RateTier:  rateTier,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// BookingCancelledEvent is published for worker-initiated cancellations
// and for the access-loss cascade alike; Reason distinguishes them.
type BookingCancelledEvent struct {
	EventID     string `json:"event_id"`
	BookingID   uint64 `json:"booking_id"`
	WorkerID    uint64 `json:"worker_id"`
	SiteID      uint64 `json:"site_id"`
	Reason      string `json:"reason"`
	CancelledAt string `json:"cancelled_at"`
}

// NewBookingCancelledEvent builds the cancellation event.
func NewBookingCancelledEvent(b *model.Booking, reason string) BookingCancelledEvent {
	return BookingCancelledEvent{
		EventID:     uuid.NewString(),
		BookingID:   b.ID,
		WorkerID:    b.WorkerID,
		SiteID:      b.SiteID,
		Reason:      reason,
		CancelledAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// AttendanceClosedEvent is published when a session transitions into
// COMPLETED, whether by the worker or by the idle-session sweep.
type AttendanceClosedEvent struct {
	EventID      string `json:"event_id"`
	SessionID    uint64 `json:"session_id"`
	WorkerID     uint64 `json:"worker_id"`
	SiteID       uint64 `json:"site_id"`
	StartAt      string `json:"start_at"`
	EndAt        string `json:"end_at"`
	TotalHours   string `json:"total_hours"`
	TotalPayment string `json:"total_payment"`
	Late         bool   `json:"late"`
	ForcedClose  bool   `json:"forced_close"`
}

// NewAttendanceClosedEvent builds the close event for a completed session.
func NewAttendanceClosedEvent(s *model.AttendanceSession, forced bool) AttendanceClosedEvent {
	ev := AttendanceClosedEvent{
		EventID:     uuid.NewString(),
		SessionID:   s.ID,
		WorkerID:    s.WorkerID,
		SiteID:      s.SiteID,
		StartAt:     s.StartAt.UTC().Format(time.RFC3339),
		Late:        s.Late(),
		ForcedClose: forced,
	}
	if s.EndAt != nil {
		ev.EndAt = s.EndAt.UTC().Format(time.RFC3339)
	}
	if s.TotalHours != nil {
		ev.TotalHours = s.TotalHours.String()
	}
	if s.TotalPayment != nil {
		ev.TotalPayment = s.TotalPayment.String()
	}
	return ev
}
