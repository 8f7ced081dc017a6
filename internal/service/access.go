package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fieldcrew/shiftpoint/internal/model"
	"github.com/fieldcrew/shiftpoint/internal/queue"
)

// AccessService reacts to authorization termination by cancelling the
// worker's future bookings on sites they no longer reach.
type AccessService struct {
	Bookings  BookingStore
	Auths     AuthorizationStore
	Publisher Publisher
	Log       *zap.Logger
	Now       func() time.Time
}

func (s *AccessService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// OnAuthorizationTerminated cancels every future PLANNED/CONFIRMED
// booking of the worker on a site lost with the terminated grant.  Sites
// still reachable through other active authorizations are kept.  When a
// cutoff date is supplied, every future booking after it is cancelled
// regardless of site.  Per-booking failures are logged and skipped so
// the termination itself never aborts; the count of cancelled bookings
// is returned.
func (s *AccessService) OnAuthorizationTerminated(ctx context.Context, terminated *model.Authorization, cutoff *time.Time) (int, error) {
	now := s.now()
	remaining, err := s.Auths.ActiveAuthorizationsForWorker(ctx, terminated.WorkerID, now)
	if err != nil {
		return 0, err
	}
	retained := make(map[uint64]struct{})
	for _, a := range remaining {
		if a.ID == terminated.ID {
			continue
		}
		for _, siteID := range a.SiteIDs {
			retained[siteID] = struct{}{}
		}
	}
	lost := make(map[uint64]struct{})
	for _, siteID := range terminated.SiteIDs {
		if _, ok := retained[siteID]; !ok {
			lost[siteID] = struct{}{}
		}
	}

	bookings, err := s.Bookings.FutureClaimedBookings(ctx, terminated.WorkerID, now)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, b := range bookings {
		_, siteLost := lost[b.SiteID]
		pastCutoff := cutoff != nil && b.StartAt.After(*cutoff)
		if !siteLost && !pastCutoff {
			continue
		}
		reason := CancelReasonAccess
		if !siteLost {
			reason = CancelReasonContract
		}
		changed, err := s.Bookings.SetBookingStatus(ctx, b.ID,
			[]string{model.BookingPlanned, model.BookingConfirmed}, model.BookingCancelled, &reason)
		if err != nil {
			// Cascade failures are contained per booking.
			if s.Log != nil {
				s.Log.Error("cascade cancellation failed",
					zap.Uint64("booking_id", b.ID),
					zap.Uint64("worker_id", terminated.WorkerID),
					zap.Error(err))
			}
			continue
		}
		if !changed {
			continue
		}
		cancelled++
		if s.Publisher != nil {
			if err := s.Publisher.Publish(ctx, queue.QueueBookingCancelled, queue.NewBookingCancelledEvent(b, reason)); err != nil {
				if s.Log != nil {
					s.Log.Warn("event publish failed", zap.Uint64("booking_id", b.ID), zap.Error(err))
				}
			} else if err := s.Bookings.MarkBookingNotified(ctx, b.ID); err != nil && s.Log != nil {
				s.Log.Warn("marking booking notified failed", zap.Uint64("booking_id", b.ID), zap.Error(err))
			}
		}
	}
	return cancelled, nil
}
