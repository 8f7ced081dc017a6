package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldcrew/shiftpoint/internal/model"
	"github.com/fieldcrew/shiftpoint/internal/service"
	"github.com/fieldcrew/shiftpoint/internal/store/memory"
)

// capturingPublisher records published events instead of talking to a
// broker.  Setting fail makes every publish return that error.
type capturingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	fail   error
}

type publishedEvent struct {
	Queue   string
	Payload any
}

func (p *capturingPublisher) Publish(_ context.Context, queueName string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.events = append(p.events, publishedEvent{Queue: queueName, Payload: payload})
	return nil
}

func (p *capturingPublisher) count(queueName string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Queue == queueName {
			n++
		}
	}
	return n
}

const (
	testWorker  = uint64(5)
	testWorker2 = uint64(6)
	testSiteID  = uint64(1)
	testSlotID  = uint64(1)
)

var testDate = time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)

func testSite() *model.Site {
	return &model.Site{
		ID:                testSiteID,
		OwnerID:           100,
		Name:              "North Depot",
		Latitude:          55.7558,
		Longitude:         37.6173,
		OpenMinutes:       9 * 60,
		CloseMinutes:      18 * 60,
		BaseRate:          decimal.NewFromInt(300),
		GeofenceRadiusM:   100,
		AutoCloseGraceMin: 60,
		Timezone:          "UTC",
		IsActive:          true,
	}
}

func testSlot() *model.CapacitySlot {
	return &model.CapacitySlot{
		ID:           testSlotID,
		SiteID:       testSiteID,
		Date:         testDate,
		StartMinutes: 9 * 60,
		EndMinutes:   18 * 60,
		Capacity:     1,
		IsActive:     true,
	}
}

func dayAt(h, m int) time.Time {
	return time.Date(2026, time.March, 14, h, m, 0, 0, time.UTC)
}

func newBookingFixture(t *testing.T) (*service.BookingService, *memory.Store, *capturingPublisher) {
	t.Helper()
	st := memory.New()
	st.PutSite(testSite())
	st.PutSlot(testSlot())
	pub := &capturingPublisher{}
	svc := &service.BookingService{
		Sites:     st,
		Slots:     st,
		Bookings:  st,
		Auths:     st,
		Publisher: pub,
		Log:       zap.NewNop(),
		Now:       func() time.Time { return dayAt(6, 0) },
	}
	return svc, st, pub
}

func TestBookingNotificationFlag(t *testing.T) {
	svc, st, _ := newBookingFixture(t)
	ctx := context.Background()

	b, err := svc.CreateBooking(ctx, testWorker, testSlotID, dayAt(9, 0), dayAt(12, 0))
	require.NoError(t, err)
	assert.True(t, b.NotificationSent)

	stored, err := st.BookingByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, stored.NotificationSent)

	require.NoError(t, svc.CancelBooking(ctx, testWorker, b.ID))
	stored, err = st.BookingByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, stored.Status)
	assert.True(t, stored.NotificationSent)
}

func TestBookingNotificationFlagStaysClearOnPublishFailure(t *testing.T) {
	svc, st, pub := newBookingFixture(t)
	pub.fail = errors.New("broker unavailable")

	b, err := svc.CreateBooking(context.Background(), testWorker, testSlotID, dayAt(9, 0), dayAt(12, 0))
	require.NoError(t, err)
	assert.False(t, b.NotificationSent)

	stored, err := st.BookingByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.False(t, stored.NotificationSent)
}

func TestCreateBookingResolvesSiteRate(t *testing.T) {
	svc, _, pub := newBookingFixture(t)

	b, err := svc.CreateBooking(context.Background(), testWorker, testSlotID, dayAt(9, 0), dayAt(12, 0))
	require.NoError(t, err)
	assert.NotZero(t, b.ID)
	assert.Equal(t, model.BookingConfirmed, b.Status)
	assert.True(t, decimal.NewFromInt(300).Equal(b.Rate))
	assert.Equal(t, 1, pub.count("booking.confirmed"))
}

func TestCreateBookingRoundTrip(t *testing.T) {
	svc, _, _ := newBookingFixture(t)
	ctx := context.Background()

	_, err := svc.CreateBooking(ctx, testWorker, testSlotID, dayAt(9, 0), dayAt(12, 0))
	require.NoError(t, err)

	// 10:00-11:00 collides with the existing 09:00-12:00 booking.
	_, err = svc.CreateBooking(ctx, testWorker2, testSlotID, dayAt(10, 0), dayAt(11, 0))
	var conflict *service.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, dayAt(9, 0), conflict.Conflicts[0].StartAt)

	// 12:00-15:00 fits the remaining free interval.
	b, err := svc.CreateBooking(ctx, testWorker2, testSlotID, dayAt(12, 0), dayAt(15, 0))
	require.NoError(t, err)
	assert.Equal(t, dayAt(12, 0), b.StartAt)
}

func TestCreateBookingValidation(t *testing.T) {
	svc, _, _ := newBookingFixture(t)
	ctx := context.Background()

	cases := []struct {
		name       string
		start, end time.Time
	}{
		{"end before start", dayAt(12, 0), dayAt(10, 0)},
		{"before opening", dayAt(8, 0), dayAt(10, 0)},
		{"after closing", dayAt(16, 0), dayAt(19, 0)},
		{"below minimum duration", dayAt(10, 0), dayAt(10, 30)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateBooking(ctx, testWorker, testSlotID, tc.start, tc.end)
			var verr *service.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestCreateBookingRejectsWorkerDoubleClaim(t *testing.T) {
	svc, st, _ := newBookingFixture(t)
	ctx := context.Background()

	// Same worker, different slot at the same site: the overlap is still
	// a double-claim.
	other := testSlot()
	other.ID = 2
	other.Capacity = 3
	st.PutSlot(other)

	_, err := svc.CreateBooking(ctx, testWorker, testSlotID, dayAt(9, 0), dayAt(12, 0))
	require.NoError(t, err)

	_, err = svc.CreateBooking(ctx, testWorker, 2, dayAt(11, 0), dayAt(13, 0))
	var conflict *service.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Conflicts, 1)
}

func TestCreateBookingSupplementarySlotUsesOwnWindow(t *testing.T) {
	svc, st, _ := newBookingFixture(t)

	night := &model.CapacitySlot{
		ID:            3,
		SiteID:        testSiteID,
		Date:          testDate,
		StartMinutes:  19 * 60,
		EndMinutes:    23 * 60,
		Capacity:      1,
		Supplementary: true,
		IsActive:      true,
	}
	st.PutSlot(night)

	b, err := svc.CreateBooking(context.Background(), testWorker, 3, dayAt(19, 0), dayAt(22, 0))
	require.NoError(t, err)
	assert.Equal(t, dayAt(19, 0), b.StartAt)
}

func TestCreateBookingInactiveSlot(t *testing.T) {
	svc, st, _ := newBookingFixture(t)
	slot := testSlot()
	slot.IsActive = false
	st.PutSlot(slot)

	_, err := svc.CreateBooking(context.Background(), testWorker, testSlotID, dayAt(9, 0), dayAt(12, 0))
	var nf *service.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

// Two concurrent requests for the same free interval: exactly one wins.
func TestCreateBookingConcurrentSameInterval(t *testing.T) {
	svc, _, _ := newBookingFixture(t)
	ctx := context.Background()

	type outcome struct {
		booking *model.Booking
		err     error
	}
	results := make(chan outcome, 2)
	var start sync.WaitGroup
	start.Add(1)
	for _, worker := range []uint64{testWorker, testWorker2} {
		go func(worker uint64) {
			start.Wait()
			b, err := svc.CreateBooking(ctx, worker, testSlotID, dayAt(12, 0), dayAt(15, 0))
			results <- outcome{booking: b, err: err}
		}(worker)
	}
	start.Done()

	var wins, losses int
	for i := 0; i < 2; i++ {
		res := <-results
		if res.err == nil {
			wins++
			assert.NotZero(t, res.booking.ID)
			continue
		}
		losses++
		var conflict *service.ConflictError
		assert.ErrorAs(t, res.err, &conflict)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
}

func TestCancelBooking(t *testing.T) {
	svc, _, pub := newBookingFixture(t)
	ctx := context.Background()

	b, err := svc.CreateBooking(ctx, testWorker, testSlotID, dayAt(12, 0), dayAt(15, 0))
	require.NoError(t, err)

	t.Run("another worker cannot cancel", func(t *testing.T) {
		err := svc.CancelBooking(ctx, testWorker2, b.ID)
		var serr *service.StateError
		assert.ErrorAs(t, err, &serr)
	})

	t.Run("cancel before cutoff succeeds", func(t *testing.T) {
		require.NoError(t, svc.CancelBooking(ctx, testWorker, b.ID))
		assert.Equal(t, 1, pub.count("booking.cancelled"))
	})

	t.Run("already cancelled is a state failure", func(t *testing.T) {
		err := svc.CancelBooking(ctx, testWorker, b.ID)
		var serr *service.StateError
		assert.ErrorAs(t, err, &serr)
	})
}

func TestCancelBookingCutoff(t *testing.T) {
	svc, _, _ := newBookingFixture(t)
	ctx := context.Background()

	b, err := svc.CreateBooking(ctx, testWorker, testSlotID, dayAt(12, 0), dayAt(15, 0))
	require.NoError(t, err)

	// 30 minutes before start is inside the 1h cutoff.
	svc.Now = func() time.Time { return dayAt(11, 30) }
	err = svc.CancelBooking(ctx, testWorker, b.ID)
	var serr *service.StateError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Reason, "cutoff")
}

func TestGetAvailability(t *testing.T) {
	svc, _, _ := newBookingFixture(t)
	ctx := context.Background()

	_, err := svc.CreateBooking(ctx, testWorker, testSlotID, dayAt(9, 0), dayAt(12, 0))
	require.NoError(t, err)

	avail, err := svc.GetAvailability(ctx, testSiteID, testDate)
	require.NoError(t, err)
	require.Len(t, avail, 1)

	slot := avail[0]
	assert.Equal(t, testSlotID, slot.SlotID)
	assert.Equal(t, 1, slot.Capacity)
	assert.Equal(t, 1, slot.Occupied)
	assert.True(t, slot.HasFreeCapacity)
	require.Len(t, slot.Free, 1)
	assert.Equal(t, "12:00", slot.Free[0].Start)
	assert.Equal(t, "18:00", slot.Free[0].End)
}
