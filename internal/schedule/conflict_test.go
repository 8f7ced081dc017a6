package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldcrew/shiftpoint/internal/schedule"
)

func at(h int) time.Time {
	return time.Date(2026, time.March, 14, h, 0, 0, 0, time.UTC)
}

func TestDoubleClaims(t *testing.T) {
	end13 := at(13)
	existing := []schedule.Claim{
		{Kind: schedule.OccupantBooking, RefID: 1, WorkerID: 5, StartAt: at(9), EndAt: ptr(at(11))},
		{Kind: schedule.OccupantBooking, RefID: 2, WorkerID: 5, StartAt: at(12), EndAt: &end13},
	}

	t.Run("no overlap", func(t *testing.T) {
		assert.Empty(t, schedule.DoubleClaims(existing, at(14), at(16)))
	})

	t.Run("partial overlap reports the collision", func(t *testing.T) {
		got := schedule.DoubleClaims(existing, at(10), at(12))
		require.Len(t, got, 1)
		assert.Equal(t, uint64(1), got[0].RefID)
	})

	t.Run("touching boundaries do not overlap", func(t *testing.T) {
		assert.Empty(t, schedule.DoubleClaims(existing, at(11), at(12)))
	})

	t.Run("all collisions are returned at once", func(t *testing.T) {
		got := schedule.DoubleClaims(existing, at(10), at(13))
		require.Len(t, got, 2)
	})

	t.Run("open-ended active session extends forever", func(t *testing.T) {
		open := []schedule.Claim{
			{Kind: schedule.OccupantAttendance, RefID: 9, WorkerID: 5, StartAt: at(8)},
		}
		got := schedule.DoubleClaims(open, at(20), at(22))
		require.Len(t, got, 1)
		assert.Equal(t, schedule.OccupantAttendance, got[0].Kind)
		assert.Nil(t, got[0].EndAt)

		// But a proposal ending before the open session starts is fine.
		assert.Empty(t, schedule.DoubleClaims(open, at(6), at(8)))
	})
}

func TestCheckWindow(t *testing.T) {
	window := iv(9*60, 18*60)

	t.Run("inside window", func(t *testing.T) {
		assert.Empty(t, schedule.CheckWindow(window, iv(10*60, 12*60), 60))
	})

	t.Run("starts before opening", func(t *testing.T) {
		got := schedule.CheckWindow(window, iv(8*60, 12*60), 60)
		assert.Equal(t, []schedule.WindowViolation{schedule.ViolationBeforeOpening}, got)
	})

	t.Run("ends after closing", func(t *testing.T) {
		got := schedule.CheckWindow(window, iv(16*60, 19*60), 60)
		assert.Equal(t, []schedule.WindowViolation{schedule.ViolationAfterClosing}, got)
	})

	t.Run("below minimum duration", func(t *testing.T) {
		got := schedule.CheckWindow(window, iv(10*60, 10*60+30), 60)
		assert.Equal(t, []schedule.WindowViolation{schedule.ViolationTooShort}, got)
	})

	t.Run("multiple violations reported together", func(t *testing.T) {
		got := schedule.CheckWindow(window, iv(8*60+45, 9*60), 60)
		assert.Contains(t, got, schedule.ViolationBeforeOpening)
		assert.Contains(t, got, schedule.ViolationTooShort)
	})
}

func ptr[T any](v T) *T { return &v }
