// Package schedule contains the occupancy planner and the conflict
// detector.  Both are pure: they operate on data the caller already
// loaded and never touch the store.
package schedule

import (
	"sort"
	"time"

	"github.com/fieldcrew/shiftpoint/internal/interval"
	"github.com/fieldcrew/shiftpoint/internal/model"
)

// OccupantKind tags what kind of record occupies slot time.
type OccupantKind string

const (
	OccupantBooking    OccupantKind = "BOOKING"
	OccupantAttendance OccupantKind = "ATTENDANCE"
)

// Occupant is one existing claim on slot time, expressed in slot-local
// minutes.  The caller pre-filters occupants to the slot's site and date
// and excludes records bound to a different slot.
type Occupant struct {
	Kind     OccupantKind
	RefID    uint64
	WorkerID uint64
	Span     interval.Interval
}

// Position is one of a slot's concurrent occupancy tracks together with
// its assigned busy intervals and the complementary free intervals inside
// the slot window.
type Position struct {
	Index int
	Busy  []interval.Interval
	Free  []interval.Interval
}

// PositionedInterval is a free interval tagged with the position it
// belongs to.
type PositionedInterval struct {
	Position int
	Span     interval.Interval
}

// Plan is the occupancy picture of one capacity slot: per-position busy
// and free intervals plus a flattened, globally sorted free list.
type Plan struct {
	SlotID    uint64
	Capacity  int
	Positions []Position
	Free      []PositionedInterval
	Occupied  int
}

// FirstFree returns the earliest free interval across all positions, or
// nil when the slot is fully occupied.
func (p *Plan) FirstFree() *PositionedInterval {
	if len(p.Free) == 0 {
		return nil
	}
	return &p.Free[0]
}

// HasFreeCapacity reports whether any position still has free time.
func (p *Plan) HasFreeCapacity() bool { return len(p.Free) > 0 }

// Fits reports whether the requested interval lies fully inside a single
// position's free range.  No partial-fit splitting is performed.
func (p *Plan) Fits(requested interval.Interval) bool {
	if requested.Empty() {
		return false
	}
	for _, f := range p.Free {
		if f.Span.Contains(requested) {
			return true
		}
	}
	return false
}

// BuildPlan packs the slot's existing occupants onto capacity positions
// and computes each position's free complement against the slot window.
//
// Occupants are sorted by start and placed first-fit onto the position
// whose latest assignment ends at or before the new start.  When no
// position is free at that instant the occupant is placed on the position
// ending soonest; an already-persisted over-capacity situation is kept
// visible (the position shows overlapping busy time) instead of being
// hidden, so it can be resolved manually.  New requests are vetted with
// Fits and therefore never create over-capacity themselves.
func BuildPlan(slot *model.CapacitySlot, occupants []Occupant) *Plan {
	capacity := slot.Capacity
	if capacity < 1 {
		capacity = 1
	}

	spans := make([]interval.Interval, 0, len(occupants))
	for _, o := range occupants {
		clipped := o.Span
		if clipped.Start < slot.StartMinutes {
			clipped.Start = slot.StartMinutes
		}
		if clipped.End > slot.EndMinutes {
			clipped.End = slot.EndMinutes
		}
		if !clipped.Empty() {
			spans = append(spans, clipped)
		}
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})

	assigned := make([][]interval.Interval, capacity)
	lastEnd := make([]int, capacity) // end of the latest assignment per position
	for i := range lastEnd {
		lastEnd[i] = slot.StartMinutes
	}

	for _, span := range spans {
		target := -1
		for i := 0; i < capacity; i++ {
			if lastEnd[i] <= span.Start {
				target = i
				break
			}
		}
		if target < 0 {
			// Over capacity: place on the soonest-ending position.
			target = 0
			for i := 1; i < capacity; i++ {
				if lastEnd[i] < lastEnd[target] {
					target = i
				}
			}
		}
		assigned[target] = append(assigned[target], span)
		if span.End > lastEnd[target] {
			lastEnd[target] = span.End
		}
	}

	plan := &Plan{SlotID: slot.ID, Capacity: capacity}
	for i := 0; i < capacity; i++ {
		busy := interval.Merge(assigned[i])
		free := interval.Gaps(slot.StartMinutes, slot.EndMinutes, busy)
		plan.Positions = append(plan.Positions, Position{Index: i, Busy: busy, Free: free})
		if len(assigned[i]) > 0 {
			plan.Occupied++
		}
		for _, f := range free {
			plan.Free = append(plan.Free, PositionedInterval{Position: i, Span: f})
		}
	}
	sort.Slice(plan.Free, func(i, j int) bool {
		if plan.Free[i].Span.Start != plan.Free[j].Span.Start {
			return plan.Free[i].Span.Start < plan.Free[j].Span.Start
		}
		return plan.Free[i].Position < plan.Free[j].Position
	})
	return plan
}

// LocalSpan projects an absolute interval onto the slot's local day,
// clipping to the slot window.  Open-ended records (nil end) extend to
// the slot end.  ok is false when nothing of the record touches the
// slot's date.
func LocalSpan(slot *model.CapacitySlot, loc *time.Location, start time.Time, end *time.Time) (interval.Interval, bool) {
	dayStart := model.AtDate(slot.Date, 0, loc)
	dayEnd := model.AtDate(slot.Date, 24*60, loc)

	effEnd := dayEnd
	if end != nil {
		effEnd = *end
	}
	if !start.Before(dayEnd) || !effEnd.After(dayStart) {
		return interval.Interval{}, false
	}

	startMin := 0
	if start.After(dayStart) {
		_, startMin = model.MinutesOfDay(start, loc)
	}
	endMin := 24 * 60
	if effEnd.Before(dayEnd) {
		_, endMin = model.MinutesOfDay(effEnd, loc)
	}
	span := interval.Interval{Start: startMin, End: endMin}
	if span.Start < slot.StartMinutes {
		span.Start = slot.StartMinutes
	}
	if span.End > slot.EndMinutes {
		span.End = slot.EndMinutes
	}
	if span.Empty() {
		return interval.Interval{}, false
	}
	return span, true
}
