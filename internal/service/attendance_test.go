package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldcrew/shiftpoint/internal/geo"
	"github.com/fieldcrew/shiftpoint/internal/model"
	"github.com/fieldcrew/shiftpoint/internal/service"
	"github.com/fieldcrew/shiftpoint/internal/store/memory"
)

// Coordinates inside and outside the test site's 100m geofence.  The
// far point sits ~150m north of the site.
var (
	onSite  = geo.Point{Latitude: 55.7558, Longitude: 37.6173}
	offSite = geo.Point{Latitude: 55.75715, Longitude: 37.6173}
)

func newAttendanceFixture(t *testing.T) (*service.AttendanceService, *memory.Store, *capturingPublisher) {
	t.Helper()
	st := memory.New()
	st.PutSite(testSite())
	st.PutSlot(testSlot())
	pub := &capturingPublisher{}
	svc := &service.AttendanceService{
		Sites:     st,
		Slots:     st,
		Bookings:  st,
		Sessions:  st,
		Auths:     st,
		Publisher: pub,
		Log:       zap.NewNop(),
		Now:       func() time.Time { return dayAt(9, 0) },
	}
	return svc, st, pub
}

func TestOpenSession(t *testing.T) {
	svc, _, _ := newAttendanceFixture(t)

	sess, err := svc.OpenSession(context.Background(), testWorker, testSiteID, onSite, nil)
	require.NoError(t, err)
	assert.Equal(t, model.SessionActive, sess.Status)
	assert.Equal(t, dayAt(9, 0), sess.StartAt)
	assert.False(t, sess.WasPlanned)
	assert.Nil(t, sess.PlannedStartAt)
	assert.True(t, decimal.NewFromInt(300).Equal(sess.Rate))
}

func TestOpenSessionGeofence(t *testing.T) {
	svc, _, _ := newAttendanceFixture(t)

	_, err := svc.OpenSession(context.Background(), testWorker, testSiteID, offSite, nil)
	var gerr *service.GeofenceError
	require.ErrorAs(t, err, &gerr)
	assert.InDelta(t, 150, gerr.DistanceMeters, 3)
	assert.Equal(t, 100.0, gerr.MaxDistanceMeters)
}

func TestOpenSessionSingleActive(t *testing.T) {
	svc, _, _ := newAttendanceFixture(t)
	ctx := context.Background()

	first, err := svc.OpenSession(ctx, testWorker, testSiteID, onSite, nil)
	require.NoError(t, err)

	_, err = svc.OpenSession(ctx, testWorker, testSiteID, onSite, nil)
	var conflict *service.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, first.ID, conflict.Conflicts[0].RefID)
}

func TestOpenSessionContractRateWins(t *testing.T) {
	svc, st, _ := newAttendanceFixture(t)

	override := decimal.NewFromInt(350)
	slot := testSlot()
	slot.OverrideRate = &override
	st.PutSlot(slot)
	st.PutAuthorization(&model.Authorization{
		ID:           1,
		WorkerID:     testWorker,
		Rate:         decimal.NewFromInt(800),
		RateOverride: true,
		SiteIDs:      []uint64{testSiteID},
		ValidFrom:    testDate.AddDate(0, -1, 0),
		ValidUntil:   testDate.AddDate(0, 1, 0),
		Status:       model.AuthorizationActive,
		CreatedAt:    testDate,
	})

	booking := &model.Booking{
		WorkerID: testWorker,
		SiteID:   testSiteID,
		SlotID:   &slot.ID,
		StartAt:  dayAt(9, 0),
		EndAt:    dayAt(12, 0),
		Status:   model.BookingConfirmed,
	}
	st.PutBooking(booking)

	sess, err := svc.OpenSession(context.Background(), testWorker, testSiteID, onSite, &booking.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(800).Equal(sess.Rate), "got rate %s", sess.Rate)
}

func TestOpenSessionPlannedStart(t *testing.T) {
	svc, st, _ := newAttendanceFixture(t)

	grace := 30
	site := testSite()
	site.LatenessGraceMin = &grace
	st.PutSite(site)

	slotID := testSlotID
	booking := &model.Booking{
		WorkerID: testWorker,
		SiteID:   testSiteID,
		SlotID:   &slotID,
		StartAt:  dayAt(9, 0),
		EndAt:    dayAt(12, 0),
		Status:   model.BookingConfirmed,
	}
	st.PutBooking(booking)

	svc.Now = func() time.Time { return dayAt(10, 0) }
	sess, err := svc.OpenSession(context.Background(), testWorker, testSiteID, onSite, &booking.ID)
	require.NoError(t, err)
	require.NotNil(t, sess.PlannedStartAt)
	assert.Equal(t, dayAt(9, 30), *sess.PlannedStartAt)
	assert.True(t, sess.WasPlanned)
	assert.True(t, sess.Late())
}

func TestOpenSessionCancelledBooking(t *testing.T) {
	svc, st, _ := newAttendanceFixture(t)

	booking := &model.Booking{
		WorkerID: testWorker,
		SiteID:   testSiteID,
		StartAt:  dayAt(9, 0),
		EndAt:    dayAt(12, 0),
		Status:   model.BookingCancelled,
	}
	st.PutBooking(booking)

	_, err := svc.OpenSession(context.Background(), testWorker, testSiteID, onSite, &booking.ID)
	var serr *service.StateError
	assert.ErrorAs(t, err, &serr)
}

func TestCloseSessionTotals(t *testing.T) {
	svc, _, pub := newAttendanceFixture(t)
	ctx := context.Background()

	sess, err := svc.OpenSession(ctx, testWorker, testSiteID, onSite, nil)
	require.NoError(t, err)

	svc.Now = func() time.Time { return dayAt(12, 0) }
	res, err := svc.CloseSession(ctx, testWorker, sess.ID, onSite)
	require.NoError(t, err)

	assert.True(t, decimal.NewFromFloat(3.00).Equal(res.TotalHours), "hours %s", res.TotalHours)
	assert.True(t, decimal.NewFromInt(900).Equal(res.TotalPayment), "payment %s", res.TotalPayment)
	assert.Equal(t, model.SessionCompleted, res.Session.Status)
	assert.Equal(t, 1, pub.count("attendance.closed"))
}

func TestCloseSessionRounding(t *testing.T) {
	svc, _, _ := newAttendanceFixture(t)
	ctx := context.Background()

	sess, err := svc.OpenSession(ctx, testWorker, testSiteID, onSite, nil)
	require.NoError(t, err)

	// 3h20m = 3.33 hours after rounding; payment 3.33 * 300 = 999.
	svc.Now = func() time.Time { return dayAt(12, 20) }
	res, err := svc.CloseSession(ctx, testWorker, sess.ID, onSite)
	require.NoError(t, err)

	assert.Equal(t, "3.33", res.TotalHours.StringFixed(2))
	assert.Equal(t, "999.00", res.TotalPayment.StringFixed(2))
	// The invariant: payment == round(hours * rate, 2).
	assert.True(t, res.TotalHours.Mul(sess.Rate).Round(2).Equal(res.TotalPayment))
}

func TestCloseSessionPreconditions(t *testing.T) {
	svc, _, _ := newAttendanceFixture(t)
	ctx := context.Background()

	sess, err := svc.OpenSession(ctx, testWorker, testSiteID, onSite, nil)
	require.NoError(t, err)

	t.Run("wrong worker", func(t *testing.T) {
		_, err := svc.CloseSession(ctx, testWorker2, sess.ID, onSite)
		var serr *service.StateError
		assert.ErrorAs(t, err, &serr)
	})

	t.Run("geofence enforced on close", func(t *testing.T) {
		_, err := svc.CloseSession(ctx, testWorker, sess.ID, offSite)
		var gerr *service.GeofenceError
		assert.ErrorAs(t, err, &gerr)
	})

	t.Run("double close is a state failure", func(t *testing.T) {
		svc.Now = func() time.Time { return dayAt(12, 0) }
		_, err := svc.CloseSession(ctx, testWorker, sess.ID, onSite)
		require.NoError(t, err)
		_, err = svc.CloseSession(ctx, testWorker, sess.ID, onSite)
		var serr *service.StateError
		assert.ErrorAs(t, err, &serr)
	})
}

func TestCloseSessionCompletesLinkedBooking(t *testing.T) {
	svc, st, _ := newAttendanceFixture(t)
	ctx := context.Background()

	slotID := testSlotID
	booking := &model.Booking{
		WorkerID: testWorker,
		SiteID:   testSiteID,
		SlotID:   &slotID,
		StartAt:  dayAt(9, 0),
		EndAt:    dayAt(12, 0),
		Status:   model.BookingConfirmed,
	}
	st.PutBooking(booking)

	sess, err := svc.OpenSession(ctx, testWorker, testSiteID, onSite, &booking.ID)
	require.NoError(t, err)

	svc.Now = func() time.Time { return dayAt(12, 0) }
	_, err = svc.CloseSession(ctx, testWorker, sess.ID, onSite)
	require.NoError(t, err)

	stored, err := st.BookingByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCompleted, stored.Status)
}

func TestTotals(t *testing.T) {
	rate := decimal.NewFromInt(250)

	hours, payment := service.Totals(dayAt(9, 0), dayAt(17, 30), rate)
	assert.Equal(t, "8.50", hours.StringFixed(2))
	assert.Equal(t, "2125.00", payment.StringFixed(2))

	// Zero-length interval: zero pay, no error.
	hours, payment = service.Totals(dayAt(9, 0), dayAt(9, 0), rate)
	assert.True(t, hours.IsZero())
	assert.True(t, payment.IsZero())
}
