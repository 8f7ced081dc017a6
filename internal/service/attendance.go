package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fieldcrew/shiftpoint/internal/geo"
	"github.com/fieldcrew/shiftpoint/internal/model"
	"github.com/fieldcrew/shiftpoint/internal/queue"
	"github.com/fieldcrew/shiftpoint/internal/rate"
	"github.com/fieldcrew/shiftpoint/internal/schedule"
)

// AttendanceService drives the session state machine: open under
// geofence and single-active-session constraints, close with totals.
// CloseSessionAt is the single source of truth for totals; the sweeper
// calls it with a computed deadline instead of now.
type AttendanceService struct {
	Sites     SiteStore
	Slots     SlotStore
	Bookings  BookingStore
	Sessions  AttendanceStore
	Auths     AuthorizationStore
	Publisher Publisher
	Log       *zap.Logger
	Now       func() time.Time
}

func (s *AttendanceService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// CloseResult reports the totals computed when a session completes.
type CloseResult struct {
	Session      *model.AttendanceSession
	TotalHours   decimal.Decimal
	TotalPayment decimal.Decimal
	Late         bool
}

// Totals computes the rounded worked hours and payment for a closed
// interval.  Hours are (end-start) in hours rounded to 2 decimal places;
// payment is hours times rate, rounded the same way.
func Totals(start, end time.Time, hourlyRate decimal.Decimal) (hours, payment decimal.Decimal) {
	seconds := decimal.NewFromFloat(end.Sub(start).Seconds())
	hours = seconds.Div(decimal.NewFromInt(3600)).Round(2)
	payment = hours.Mul(hourlyRate).Round(2)
	return hours, payment
}

// OpenSession clocks the worker in at the site.  Preconditions: site
// exists and is active, the worker holds no other active session, the
// submitted coordinates sit inside the site geofence, and a linked
// booking (when given) belongs to the worker and is not cancelled.  All
// preconditions fail closed; a rejection leaves no trace.
func (s *AttendanceService) OpenSession(ctx context.Context, workerID, siteID uint64, coords geo.Point, bookingID *uint64) (*model.AttendanceSession, error) {
	site, err := s.Sites.SiteByID(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if site == nil || !site.IsActive {
		return nil, &NotFoundError{Kind: "site", ID: siteID}
	}

	active, err := s.Sessions.ActiveSessionForWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, &ConflictError{
			Message: "worker already has an active session",
			Conflicts: []schedule.Conflict{{
				Kind:    schedule.OccupantAttendance,
				RefID:   active.ID,
				StartAt: active.StartAt,
			}},
		}
	}

	if ok, dist := geo.WithinRadius(site.Location(), coords, site.GeofenceRadiusM); !ok {
		return nil, &GeofenceError{DistanceMeters: dist, MaxDistanceMeters: site.GeofenceRadiusM}
	}

	now := s.now()
	session := &model.AttendanceSession{
		WorkerID: workerID,
		SiteID:   siteID,
		StartAt:  now,
		Status:   model.SessionActive,
		StartLat: coords.Latitude,
		StartLon: coords.Longitude,
	}

	var slot *model.CapacitySlot
	if bookingID != nil {
		booking, err := s.Bookings.BookingByID(ctx, *bookingID)
		if err != nil {
			return nil, err
		}
		if booking == nil {
			return nil, &NotFoundError{Kind: "booking", ID: *bookingID}
		}
		if booking.WorkerID != workerID {
			return nil, &StateError{Reason: "booking belongs to another worker"}
		}
		if booking.Status == model.BookingCancelled {
			return nil, &StateError{Reason: "booking has been cancelled"}
		}
		session.BookingID = &booking.ID
		session.SlotID = booking.SlotID
		session.WasPlanned = true
		if booking.SlotID != nil {
			slot, err = s.Slots.SlotByID(ctx, *booking.SlotID)
			if err != nil {
				return nil, err
			}
		}
		if slot != nil {
			grace, err := s.latenessGrace(ctx, site)
			if err != nil {
				return nil, err
			}
			planned := slot.StartAt(site.TimeLocation()).Add(time.Duration(grace) * time.Minute)
			session.PlannedStartAt = &planned
		}
	}

	auths, err := s.Auths.ActiveAuthorizationsForWorker(ctx, workerID, now)
	if err != nil {
		return nil, err
	}
	res := rate.Resolve(site, slot, coveringAuthorizations(auths, site.ID))
	session.Rate = res.Rate

	if err := s.Sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// CloseSession clocks the worker out of their own active session after a
// geofence check against the same site.
func (s *AttendanceService) CloseSession(ctx context.Context, workerID, sessionID uint64, coords geo.Point) (*CloseResult, error) {
	session, err := s.Sessions.SessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &NotFoundError{Kind: "session", ID: sessionID}
	}
	if session.WorkerID != workerID {
		return nil, &StateError{Reason: "session belongs to another worker"}
	}
	if session.Status != model.SessionActive {
		return nil, &StateError{Reason: "no active session to close"}
	}
	site, err := s.Sites.SiteByID(ctx, session.SiteID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, &NotFoundError{Kind: "site", ID: session.SiteID}
	}
	if ok, dist := geo.WithinRadius(site.Location(), coords, site.GeofenceRadiusM); !ok {
		return nil, &GeofenceError{DistanceMeters: dist, MaxDistanceMeters: site.GeofenceRadiusM}
	}
	return s.CloseSessionAt(ctx, session, s.now(), &coords, false)
}

// CloseSessionAt performs the active -> completed transition, writing
// end, totals and status in one conditional update.  The sweeper calls
// it with the computed deadline as end and forced=true.  A session whose
// status already left ACTIVE produces a StateError and no state change,
// which is what makes racing closers safe.
func (s *AttendanceService) CloseSessionAt(ctx context.Context, session *model.AttendanceSession, end time.Time, coords *geo.Point, forced bool) (*CloseResult, error) {
	if session.Status != model.SessionActive {
		return nil, &StateError{Reason: "no active session to close"}
	}
	if end.Before(session.StartAt) {
		// A delayed open past its own deadline must not produce a
		// negative duration.
		end = session.StartAt
	}
	hours, payment := Totals(session.StartAt, end, session.Rate)

	session.EndAt = &end
	session.Status = model.SessionCompleted
	session.TotalHours = &hours
	session.TotalPayment = &payment
	if coords != nil {
		session.EndLat = &coords.Latitude
		session.EndLon = &coords.Longitude
	}

	changed, err := s.Sessions.CompleteSession(ctx, session)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, &StateError{Reason: "session already closed"}
	}

	if session.BookingID != nil {
		// Completing the linked booking is bookkeeping; a failure here
		// must not undo the close.
		if _, err := s.Bookings.SetBookingStatus(ctx, *session.BookingID,
			[]string{model.BookingPlanned, model.BookingConfirmed}, model.BookingCompleted, nil); err != nil && s.Log != nil {
			s.Log.Warn("linked booking completion failed",
				zap.Uint64("booking_id", *session.BookingID), zap.Error(err))
		}
	}

	s.publish(ctx, queue.QueueAttendanceClosed, queue.NewAttendanceClosedEvent(session, forced))
	return &CloseResult{
		Session:      session,
		TotalHours:   hours,
		TotalPayment: payment,
		Late:         session.Late(),
	}, nil
}

// ListSessions returns the worker's own sessions, newest first.
func (s *AttendanceService) ListSessions(ctx context.Context, workerID uint64) ([]*model.AttendanceSession, error) {
	return s.Sessions.SessionsByWorker(ctx, workerID)
}

func (s *AttendanceService) latenessGrace(ctx context.Context, site *model.Site) (int, error) {
	var units map[uint64]*model.OrgUnit
	if site.LatenessGraceMin == nil && site.OrgUnitID != nil {
		var err error
		units, err = s.Sites.OrgUnitChain(ctx, *site.OrgUnitID)
		if err != nil {
			return 0, err
		}
	}
	return model.ResolveLatenessGrace(site, units), nil
}

func (s *AttendanceService) publish(ctx context.Context, queueName string, payload any) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.Publish(ctx, queueName, payload); err != nil && s.Log != nil {
		s.Log.Warn("event publish failed", zap.String("queue", queueName), zap.Error(err))
	}
}
