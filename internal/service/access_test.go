package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldcrew/shiftpoint/internal/model"
	"github.com/fieldcrew/shiftpoint/internal/service"
	"github.com/fieldcrew/shiftpoint/internal/store/memory"
)

func newAccessFixture(t *testing.T) (*service.AccessService, *memory.Store, *capturingPublisher) {
	t.Helper()
	st := memory.New()
	pub := &capturingPublisher{}
	svc := &service.AccessService{
		Bookings:  st,
		Auths:     st,
		Publisher: pub,
		Log:       zap.NewNop(),
		Now:       func() time.Time { return dayAt(6, 0) },
	}
	return svc, st, pub
}

func grant(id uint64, sites []uint64, status string) *model.Authorization {
	return &model.Authorization{
		ID:         id,
		WorkerID:   testWorker,
		SiteIDs:    sites,
		ValidFrom:  testDate.AddDate(0, -1, 0),
		ValidUntil: testDate.AddDate(0, 1, 0),
		Status:     status,
	}
}

func futureBooking(siteID uint64, startHour int) *model.Booking {
	return &model.Booking{
		WorkerID: testWorker,
		SiteID:   siteID,
		StartAt:  dayAt(startHour, 0),
		EndAt:    dayAt(startHour+2, 0),
		Status:   model.BookingConfirmed,
	}
}

func TestOnAuthorizationTerminated(t *testing.T) {
	svc, st, pub := newAccessFixture(t)
	ctx := context.Background()

	// Terminated grant covered sites 1 and 2; a second active grant
	// still covers site 2, so only site 1 is lost.
	terminated := grant(1, []uint64{1, 2}, model.AuthorizationTerminated)
	st.PutAuthorization(terminated)
	st.PutAuthorization(grant(2, []uint64{2}, model.AuthorizationActive))

	lost := futureBooking(1, 10)
	kept := futureBooking(2, 12)
	st.PutBooking(lost)
	st.PutBooking(kept)

	cancelled, err := svc.OnAuthorizationTerminated(ctx, terminated, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)

	stored, _ := st.BookingByID(ctx, lost.ID)
	assert.Equal(t, model.BookingCancelled, stored.Status)
	require.NotNil(t, stored.CancelReason)
	assert.Equal(t, service.CancelReasonAccess, *stored.CancelReason)

	stored, _ = st.BookingByID(ctx, kept.ID)
	assert.Equal(t, model.BookingConfirmed, stored.Status)

	assert.Equal(t, 1, pub.count("booking.cancelled"))
}

func TestOnAuthorizationTerminatedCutoff(t *testing.T) {
	svc, st, _ := newAccessFixture(t)
	ctx := context.Background()

	terminated := grant(1, []uint64{1}, model.AuthorizationTerminated)
	st.PutAuthorization(terminated)
	st.PutAuthorization(grant(2, []uint64{2}, model.AuthorizationActive))

	// Site 2 is retained, but the booking starts after the cutoff date,
	// so it falls to the contract cutoff rule.
	early := futureBooking(2, 8)
	late := futureBooking(2, 14)
	st.PutBooking(early)
	st.PutBooking(late)

	cutoff := dayAt(12, 0)
	cancelled, err := svc.OnAuthorizationTerminated(ctx, terminated, &cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)

	stored, _ := st.BookingByID(ctx, late.ID)
	assert.Equal(t, model.BookingCancelled, stored.Status)
	require.NotNil(t, stored.CancelReason)
	assert.Equal(t, service.CancelReasonContract, *stored.CancelReason)

	stored, _ = st.BookingByID(ctx, early.ID)
	assert.Equal(t, model.BookingConfirmed, stored.Status)
}

func TestOnAuthorizationTerminatedSkipsSettledBookings(t *testing.T) {
	svc, st, _ := newAccessFixture(t)
	ctx := context.Background()

	terminated := grant(1, []uint64{1}, model.AuthorizationTerminated)
	st.PutAuthorization(terminated)

	done := futureBooking(1, 10)
	done.Status = model.BookingCompleted
	st.PutBooking(done)

	cancelled, err := svc.OnAuthorizationTerminated(ctx, terminated, nil)
	require.NoError(t, err)
	assert.Zero(t, cancelled)

	stored, _ := st.BookingByID(ctx, done.ID)
	assert.Equal(t, model.BookingCompleted, stored.Status)
}
