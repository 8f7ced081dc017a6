package sweeper_test

import (
	"context"
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
	"github.com/fieldcrew/shiftpoint/internal/sweeper"
)

type capturingPublisher struct {
	mu     sync.Mutex
	queues []string
}

func (p *capturingPublisher) Publish(_ context.Context, queueName string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queues = append(p.queues, queueName)
	return nil
}

func (p *capturingPublisher) closedEvents() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, q := range p.queues {
		if q == "attendance.closed" {
			n++
		}
	}
	return n
}

var testDate = time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)

func dayAt(h, m int) time.Time {
	return time.Date(2026, time.March, 14, h, m, 0, 0, time.UTC)
}

func fixture(t *testing.T, now time.Time) (*sweeper.Sweeper, *memory.Store, *capturingPublisher) {
	t.Helper()
	st := memory.New()
	st.PutSite(&model.Site{
		ID:                1,
		Name:              "North Depot",
		OpenMinutes:       9 * 60,
		CloseMinutes:      18 * 60,
		BaseRate:          decimal.NewFromInt(300),
		GeofenceRadiusM:   100,
		AutoCloseGraceMin: 60,
		Timezone:          "UTC",
		IsActive:          true,
	})
	st.PutSlot(&model.CapacitySlot{
		ID:           1,
		SiteID:       1,
		Date:         testDate,
		StartMinutes: 9 * 60,
		EndMinutes:   18 * 60,
		Capacity:     1,
		IsActive:     true,
	})
	pub := &capturingPublisher{}
	att := &service.AttendanceService{
		Sites:     st,
		Slots:     st,
		Bookings:  st,
		Sessions:  st,
		Auths:     st,
		Publisher: pub,
		Log:       zap.NewNop(),
	}
	sw := &sweeper.Sweeper{
		Attendance: att,
		Sessions:   st,
		Sites:      st,
		Slots:      st,
		Log:        zap.NewNop(),
		Now:        func() time.Time { return now },
	}
	return sw, st, pub
}

func activeSession(slotID *uint64, start time.Time) *model.AttendanceSession {
	return &model.AttendanceSession{
		WorkerID: 5,
		SiteID:   1,
		SlotID:   slotID,
		StartAt:  start,
		Status:   model.SessionActive,
		Rate:     decimal.NewFromInt(300),
	}
}

// Slot ends 18:00 with 60 minutes grace; a sweep at 19:30 closes the
// session with end 19:00, not 19:30.
func TestSweepClosesAtDeadline(t *testing.T) {
	sw, st, pub := fixture(t, dayAt(19, 30))
	slotID := uint64(1)
	sess := activeSession(&slotID, dayAt(9, 0))
	st.PutSession(sess)

	closed, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	stored, _ := st.SessionByID(context.Background(), sess.ID)
	assert.Equal(t, model.SessionCompleted, stored.Status)
	require.NotNil(t, stored.EndAt)
	assert.Equal(t, dayAt(19, 0), *stored.EndAt)
	// 9:00-19:00 at 300/h.
	assert.Equal(t, "10.00", stored.TotalHours.StringFixed(2))
	assert.Equal(t, "3000.00", stored.TotalPayment.StringFixed(2))
	assert.Equal(t, 1, pub.closedEvents())
}

func TestSweepUsesSiteCloseForUnboundSessions(t *testing.T) {
	sw, st, _ := fixture(t, dayAt(19, 30))
	sess := activeSession(nil, dayAt(10, 0))
	st.PutSession(sess)

	closed, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	stored, _ := st.SessionByID(context.Background(), sess.ID)
	// Site closes 18:00, grace 60 -> deadline 19:00.
	assert.Equal(t, dayAt(19, 0), *stored.EndAt)
}

func TestSweepLeavesSessionsBeforeDeadline(t *testing.T) {
	sw, st, _ := fixture(t, dayAt(18, 30))
	slotID := uint64(1)
	sess := activeSession(&slotID, dayAt(9, 0))
	st.PutSession(sess)

	closed, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, closed)

	stored, _ := st.SessionByID(context.Background(), sess.ID)
	assert.Equal(t, model.SessionActive, stored.Status)
}

// Running the sweep twice must not change state again or pay twice.
func TestSweepIdempotent(t *testing.T) {
	sw, st, pub := fixture(t, dayAt(19, 30))
	slotID := uint64(1)
	sess := activeSession(&slotID, dayAt(9, 0))
	st.PutSession(sess)

	closed, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	closed, err = sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, closed)
	assert.Equal(t, 1, pub.closedEvents())
}

// A clock-in after the deadline must not produce a negative duration:
// the close clamps end to the session start.
func TestSweepClampsEndToStart(t *testing.T) {
	sw, st, _ := fixture(t, dayAt(20, 0))
	slotID := uint64(1)
	sess := activeSession(&slotID, dayAt(19, 15))
	st.PutSession(sess)

	closed, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	stored, _ := st.SessionByID(context.Background(), sess.ID)
	assert.Equal(t, dayAt(19, 15), *stored.EndAt)
	assert.True(t, stored.TotalHours.IsZero())
	assert.True(t, stored.TotalPayment.IsZero())
}

type fakeLocker struct {
	held bool
}

func (l *fakeLocker) Acquire(_ context.Context, _ string, _ time.Duration) (bool, error) {
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeLocker) Release(_ context.Context, _ string) { l.held = false }

func TestSweepSkipsWhenLockHeld(t *testing.T) {
	sw, st, _ := fixture(t, dayAt(19, 30))
	slotID := uint64(1)
	st.PutSession(activeSession(&slotID, dayAt(9, 0)))

	lock := &fakeLocker{held: true}
	sw.Locker = lock

	closed, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, closed)

	lock.held = false
	closed, err = sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, closed)
	assert.False(t, lock.held, "lock released after sweep")
}
