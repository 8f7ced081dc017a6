package schedule_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldcrew/shiftpoint/internal/interval"
	"github.com/fieldcrew/shiftpoint/internal/model"
	"github.com/fieldcrew/shiftpoint/internal/schedule"
)

func iv(start, end int) interval.Interval {
	return interval.Interval{Start: start, End: end}
}

func slot(capacity int) *model.CapacitySlot {
	return &model.CapacitySlot{
		ID:           1,
		SiteID:       1,
		StartMinutes: 9 * 60,
		EndMinutes:   18 * 60,
		Capacity:     capacity,
		IsActive:     true,
	}
}

func booking(id uint64, span interval.Interval) schedule.Occupant {
	return schedule.Occupant{Kind: schedule.OccupantBooking, RefID: id, Span: span}
}

func TestBuildPlanEmptySlot(t *testing.T) {
	plan := schedule.BuildPlan(slot(2), nil)

	require.Len(t, plan.Positions, 2)
	assert.True(t, plan.HasFreeCapacity())
	assert.Zero(t, plan.Occupied)
	for _, pos := range plan.Positions {
		assert.Empty(t, pos.Busy)
		assert.Equal(t, []interval.Interval{iv(9*60, 18*60)}, pos.Free)
	}
	require.NotNil(t, plan.FirstFree())
	assert.Equal(t, iv(9*60, 18*60), plan.FirstFree().Span)
}

// The round-trip scenario: capacity 1, one booking 09:00-12:00 on a
// 09:00-18:00 slot.  Free must be exactly 12:00-18:00; 10:00-11:00 must
// not fit, 12:00-15:00 must fit.
func TestBuildPlanSingleCapacityRoundTrip(t *testing.T) {
	plan := schedule.BuildPlan(slot(1), []schedule.Occupant{booking(10, iv(9*60, 12*60))})

	require.Len(t, plan.Free, 1)
	assert.Equal(t, iv(12*60, 18*60), plan.Free[0].Span)
	assert.False(t, plan.Fits(iv(10*60, 11*60)))
	assert.True(t, plan.Fits(iv(12*60, 15*60)))
}

func TestBuildPlanFirstFitPacking(t *testing.T) {
	// Two overlapping bookings need two positions; a third that starts
	// after the first ends goes back onto position 0.
	occ := []schedule.Occupant{
		booking(1, iv(9*60, 12*60)),
		booking(2, iv(10*60, 13*60)),
		booking(3, iv(12*60, 14*60)),
	}
	plan := schedule.BuildPlan(slot(2), occ)

	assert.Equal(t, []interval.Interval{iv(9*60, 14*60)}, plan.Positions[0].Busy)
	assert.Equal(t, []interval.Interval{iv(10*60, 13*60)}, plan.Positions[1].Busy)
	assert.Equal(t, []interval.Interval{iv(14*60, 18*60)}, plan.Positions[0].Free)
	assert.Equal(t, []interval.Interval{iv(9*60, 10*60), iv(13*60, 18*60)}, plan.Positions[1].Free)
}

func TestBuildPlanOverCapacityStaysVisible(t *testing.T) {
	// Three simultaneous occupants on a capacity-2 slot: the overflow is
	// packed onto the soonest-ending position rather than dropped, so the
	// plan still accounts for it.
	occ := []schedule.Occupant{
		booking(1, iv(9*60, 12*60)),
		booking(2, iv(9*60, 13*60)),
		booking(3, iv(10*60, 11*60)),
	}
	plan := schedule.BuildPlan(slot(2), occ)

	total := 0
	for _, pos := range plan.Positions {
		for _, b := range pos.Busy {
			total += b.Duration()
		}
	}
	// Overflow overlaps position 0's booking, so merged busy time covers
	// 9:00-12:00 and 9:00-13:00.
	assert.Equal(t, (12-9)*60+(13-9)*60, total)
	assert.False(t, plan.Fits(iv(9*60, 10*60)))
}

func TestBuildPlanClipsOccupantsToWindow(t *testing.T) {
	occ := []schedule.Occupant{booking(1, iv(8*60, 10*60)), booking(2, iv(17*60, 20*60))}
	plan := schedule.BuildPlan(slot(1), occ)

	assert.Equal(t, []interval.Interval{iv(9*60, 10*60), iv(17*60, 18*60)}, plan.Positions[0].Busy)
	require.Len(t, plan.Free, 1)
	assert.Equal(t, iv(10*60, 17*60), plan.Free[0].Span)
}

// Busy plus free durations per position always reconstruct the slot span
// as long as occupants on one position do not overlap.
func TestBuildPlanBusyFreeComplement(t *testing.T) {
	occ := []schedule.Occupant{
		booking(1, iv(9*60, 11*60)),
		booking(2, iv(9*60+30, 12*60)),
		booking(3, iv(13*60, 15*60)),
	}
	plan := schedule.BuildPlan(slot(3), occ)

	for _, pos := range plan.Positions {
		total := 0
		for _, b := range pos.Busy {
			total += b.Duration()
		}
		for _, f := range pos.Free {
			total += f.Duration()
		}
		assert.Equal(t, 9*60, total, "position %d", pos.Index)
	}
}

func TestBuildPlanDefaultsZeroCapacityToOne(t *testing.T) {
	plan := schedule.BuildPlan(slot(0), nil)
	require.Len(t, plan.Positions, 1)
}
