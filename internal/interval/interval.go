// Package interval provides pure utilities for merging busy time and
// computing free gaps inside a bounded window.  Times are represented as
// minute offsets from local midnight so that slot-local arithmetic never
// touches timezones; conversion to and from absolute instants is the
// caller's responsibility.
package interval

import "sort"

// Interval is a half-open [Start, End) range of minute offsets.  An
// interval with End <= Start is considered empty.
type Interval struct {
	Start int // minutes from local midnight, inclusive
	End   int // minutes from local midnight, exclusive
}

// Empty reports whether the interval covers no time.
func (iv Interval) Empty() bool { return iv.End <= iv.Start }

// Duration returns the interval length in minutes, never negative.
func (iv Interval) Duration() int {
	if iv.Empty() {
		return 0
	}
	return iv.End - iv.Start
}

// Overlaps reports whether two half-open intervals share any time.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

// Contains reports whether other lies fully inside iv.
func (iv Interval) Contains(other Interval) bool {
	return iv.Start <= other.Start && other.End <= iv.End
}

// Merge sorts the given intervals by start and coalesces overlapping or
// adjacent pairs into a minimal disjoint set.  Empty intervals are
// dropped.  The input slice is not modified.
func Merge(intervals []Interval) []Interval {
	work := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if !iv.Empty() {
			work = append(work, iv)
		}
	}
	if len(work) == 0 {
		return nil
	}
	sort.Slice(work, func(i, j int) bool { return work[i].Start < work[j].Start })
	merged := []Interval{work[0]}
	for _, iv := range work[1:] {
		last := &merged[len(merged)-1]
		if iv.Start <= last.End {
			// Overlapping or adjacent: extend the current run.
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Gaps returns the disjoint free sub-intervals of [windowStart, windowEnd)
// that are not covered by any busy interval.  The busy set may be unsorted
// and overlapping; it is merged first.  An empty busy set yields the whole
// window, a busy set covering the window yields no gaps, and a zero-length
// window yields no gaps.
func Gaps(windowStart, windowEnd int, busy []Interval) []Interval {
	if windowEnd <= windowStart {
		return nil
	}
	var free []Interval
	cursor := windowStart
	for _, iv := range Merge(busy) {
		if iv.End <= windowStart || iv.Start >= windowEnd {
			continue
		}
		if iv.Start > cursor {
			free = append(free, Interval{Start: cursor, End: iv.Start})
		}
		if iv.End > cursor {
			cursor = iv.End
		}
	}
	if cursor < windowEnd {
		free = append(free, Interval{Start: cursor, End: windowEnd})
	}
	return free
}
