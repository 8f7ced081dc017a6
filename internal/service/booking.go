package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fieldcrew/shiftpoint/internal/interval"
	"github.com/fieldcrew/shiftpoint/internal/model"
	"github.com/fieldcrew/shiftpoint/internal/queue"
	"github.com/fieldcrew/shiftpoint/internal/rate"
	"github.com/fieldcrew/shiftpoint/internal/schedule"
)

// Cancellation reasons recorded on bookings.
const (
	CancelReasonWorker   = "WORKER_REQUEST"
	CancelReasonOwner    = "OWNER_REQUEST"
	CancelReasonAccess   = "ACCESS_REVOKED"
	CancelReasonContract = "CONTRACT_CUTOFF"
)

// BookingService implements availability queries, booking creation and
// cancellation.  Creation runs its conflict and capacity checks inside
// the store's reservation lock so that two concurrent requests for the
// same interval cannot both win.
type BookingService struct {
	Sites     SiteStore
	Slots     SlotStore
	Bookings  BookingStore
	Auths     AuthorizationStore
	Publisher Publisher
	Log       *zap.Logger

	MinDuration  time.Duration // minimum booking length, default 1h
	CancelCutoff time.Duration // cancellation disallowed this close to start, default 1h
	Now          func() time.Time
}

func (s *BookingService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *BookingService) minMinutes() int {
	if s.MinDuration <= 0 {
		return 60
	}
	return int(s.MinDuration / time.Minute)
}

func (s *BookingService) cutoff() time.Duration {
	if s.CancelCutoff <= 0 {
		return time.Hour
	}
	return s.CancelCutoff
}

// FreeRange is one free sub-interval of a slot position, rendered as
// local clock time.
type FreeRange struct {
	Position int    `json:"position"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

// SlotAvailability is the per-slot result of GetAvailability.
type SlotAvailability struct {
	SlotID          uint64      `json:"slot_id"`
	Start           string      `json:"start"`
	End             string      `json:"end"`
	Capacity        int         `json:"capacity"`
	Occupied        int         `json:"occupied"`
	Supplementary   bool        `json:"supplementary"`
	HasFreeCapacity bool        `json:"has_free_capacity"`
	Free            []FreeRange `json:"free"`
}

// GetAvailability computes the free/occupied picture for every active
// slot at the site on the given date.
func (s *BookingService) GetAvailability(ctx context.Context, siteID uint64, date time.Time) ([]SlotAvailability, error) {
	site, err := s.activeSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	slots, err := s.Slots.SlotsByDate(ctx, siteID, date)
	if err != nil {
		return nil, err
	}
	out := make([]SlotAvailability, 0, len(slots))
	for _, slot := range slots {
		if !slot.IsActive {
			continue
		}
		occupants, err := s.Slots.SlotOccupants(ctx, site, slot)
		if err != nil {
			return nil, err
		}
		plan := schedule.BuildPlan(slot, occupants)
		av := SlotAvailability{
			SlotID:          slot.ID,
			Start:           model.FormatClock(slot.StartMinutes),
			End:             model.FormatClock(slot.EndMinutes),
			Capacity:        plan.Capacity,
			Occupied:        plan.Occupied,
			Supplementary:   slot.Supplementary,
			HasFreeCapacity: plan.HasFreeCapacity(),
			Free:            make([]FreeRange, 0, len(plan.Free)),
		}
		for _, f := range plan.Free {
			av.Free = append(av.Free, FreeRange{
				Position: f.Position,
				Start:    model.FormatClock(f.Span.Start),
				End:      model.FormatClock(f.Span.End),
			})
		}
		out = append(out, av)
	}
	return out, nil
}

// CreateBooking claims [start, end) inside the given slot for the worker.
// It validates the window, resolves the rate, and then re-checks
// double-claims and capacity under the store's reservation lock before
// inserting.  On success the booking is returned with its resolved rate;
// on collision a ConflictError lists every colliding record.
func (s *BookingService) CreateBooking(ctx context.Context, workerID, slotID uint64, start, end time.Time) (*model.Booking, error) {
	if !end.After(start) {
		return nil, &ValidationError{Message: "end must be after start"}
	}
	slot, err := s.Slots.SlotByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot == nil || !slot.IsActive {
		return nil, &NotFoundError{Kind: "slot", ID: slotID}
	}
	site, err := s.activeSite(ctx, slot.SiteID)
	if err != nil {
		return nil, err
	}
	loc := site.TimeLocation()
	startDate, startMin := model.MinutesOfDay(start, loc)
	endDate, endMin := model.MinutesOfDay(end, loc)
	if !startDate.Equal(slot.Date) || !endDate.Equal(slot.Date) {
		return nil, &ValidationError{Message: "booking must fall on the slot's date"}
	}
	requested := interval.Interval{Start: startMin, End: endMin}

	// Supplementary slots sit outside normal working hours, so they are
	// validated against their own window instead of the site's.
	window := interval.Interval{Start: site.OpenMinutes, End: site.CloseMinutes}
	if slot.Supplementary {
		window = interval.Interval{Start: slot.StartMinutes, End: slot.EndMinutes}
	}
	if violations := schedule.CheckWindow(window, requested, s.minMinutes()); len(violations) > 0 {
		return nil, &ValidationError{Message: "interval outside working hours or too short", Violations: violations}
	}

	auths, err := s.Auths.ActiveAuthorizationsForWorker(ctx, workerID, start)
	if err != nil {
		return nil, err
	}
	siteAuths := coveringAuthorizations(auths, site.ID)
	res := rate.Resolve(site, slot, siteAuths)

	booking := &model.Booking{
		WorkerID: workerID,
		SiteID:   site.ID,
		SlotID:   &slot.ID,
		StartAt:  start.UTC(),
		EndAt:    end.UTC(),
		Rate:     res.Rate,
		Status:   model.BookingConfirmed,
	}

	err = s.Bookings.ReserveInSlot(ctx, booking, site, slot, func(occupants []schedule.Occupant, claims []schedule.Claim) error {
		if conflicts := schedule.DoubleClaims(claims, start, end); len(conflicts) > 0 {
			return &ConflictError{Message: "worker already claims overlapping time", Conflicts: conflicts}
		}
		plan := schedule.BuildPlan(slot, occupants)
		if !plan.Fits(requested) {
			return &ConflictError{
				Message:   "no position can take the requested interval",
				Conflicts: occupantConflicts(slot, loc, occupants, requested),
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.publish(ctx, queue.QueueBookingConfirmed, queue.NewBookingConfirmedEvent(booking, string(res.Tier))) {
		s.markNotified(ctx, booking)
	}
	return booking, nil
}

// CancelBooking cancels a worker's own booking unless the cutoff before
// its planned start has already passed.
func (s *BookingService) CancelBooking(ctx context.Context, workerID, bookingID uint64) error {
	booking, err := s.Bookings.BookingByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking == nil {
		return &NotFoundError{Kind: "booking", ID: bookingID}
	}
	if booking.WorkerID != workerID {
		return &StateError{Reason: "booking belongs to another worker"}
	}
	if !booking.Claims() {
		return &StateError{Reason: "booking is not cancellable in its current status"}
	}
	if s.now().After(booking.StartAt.Add(-s.cutoff())) {
		return &StateError{Reason: "cancellation cutoff has passed"}
	}
	reason := CancelReasonWorker
	changed, err := s.Bookings.SetBookingStatus(ctx, bookingID,
		[]string{model.BookingPlanned, model.BookingConfirmed}, model.BookingCancelled, &reason)
	if err != nil {
		return err
	}
	if !changed {
		return &StateError{Reason: "booking is not cancellable in its current status"}
	}
	if s.publish(ctx, queue.QueueBookingCancelled, queue.NewBookingCancelledEvent(booking, reason)) {
		s.markNotified(ctx, booking)
	}
	return nil
}

// ListBookings returns the worker's own bookings, newest first.
func (s *BookingService) ListBookings(ctx context.Context, workerID uint64) ([]*model.Booking, error) {
	return s.Bookings.BookingsByWorker(ctx, workerID)
}

func (s *BookingService) activeSite(ctx context.Context, siteID uint64) (*model.Site, error) {
	site, err := s.Sites.SiteByID(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if site == nil || !site.IsActive {
		return nil, &NotFoundError{Kind: "site", ID: siteID}
	}
	return site, nil
}

// publish reports whether the event reached the queue, so callers can
// flip the booking's notification flag.
func (s *BookingService) publish(ctx context.Context, queueName string, payload any) bool {
	if s.Publisher == nil {
		return false
	}
	if err := s.Publisher.Publish(ctx, queueName, payload); err != nil {
		if s.Log != nil {
			s.Log.Warn("event publish failed", zap.String("queue", queueName), zap.Error(err))
		}
		return false
	}
	return true
}

func (s *BookingService) markNotified(ctx context.Context, booking *model.Booking) {
	if err := s.Bookings.MarkBookingNotified(ctx, booking.ID); err != nil {
		if s.Log != nil {
			s.Log.Warn("marking booking notified failed", zap.Uint64("booking_id", booking.ID), zap.Error(err))
		}
		return
	}
	booking.NotificationSent = true
}

func coveringAuthorizations(auths []*model.Authorization, siteID uint64) []*model.Authorization {
	out := make([]*model.Authorization, 0, len(auths))
	for _, a := range auths {
		if a.Covers(siteID) {
			out = append(out, a)
		}
	}
	return out
}

// occupantConflicts converts the occupants overlapping the rejected
// request back into absolute-time conflicts for the response.
func occupantConflicts(slot *model.CapacitySlot, loc *time.Location, occupants []schedule.Occupant, requested interval.Interval) []schedule.Conflict {
	var conflicts []schedule.Conflict
	for _, o := range occupants {
		if !o.Span.Overlaps(requested) {
			continue
		}
		end := model.AtDate(slot.Date, o.Span.End, loc)
		conflicts = append(conflicts, schedule.Conflict{
			Kind:    o.Kind,
			RefID:   o.RefID,
			StartAt: model.AtDate(slot.Date, o.Span.Start, loc),
			EndAt:   &end,
		})
	}
	return conflicts
}
