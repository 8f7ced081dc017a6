package interval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldcrew/shiftpoint/internal/interval"
)

func iv(start, end int) interval.Interval {
	return interval.Interval{Start: start, End: end}
}

func TestMerge(t *testing.T) {
	cases := []struct {
		name string
		in   []interval.Interval
		want []interval.Interval
	}{
		{"empty input", nil, nil},
		{"single", []interval.Interval{iv(60, 120)}, []interval.Interval{iv(60, 120)}},
		{
			"overlapping pair",
			[]interval.Interval{iv(60, 180), iv(120, 240)},
			[]interval.Interval{iv(60, 240)},
		},
		{
			"adjacent pair coalesces",
			[]interval.Interval{iv(60, 120), iv(120, 180)},
			[]interval.Interval{iv(60, 180)},
		},
		{
			"disjoint stay separate",
			[]interval.Interval{iv(300, 360), iv(60, 120)},
			[]interval.Interval{iv(60, 120), iv(300, 360)},
		},
		{
			"contained interval absorbed",
			[]interval.Interval{iv(60, 300), iv(120, 180)},
			[]interval.Interval{iv(60, 300)},
		},
		{
			"empty intervals dropped",
			[]interval.Interval{iv(120, 120), iv(180, 60), iv(60, 120)},
			[]interval.Interval{iv(60, 120)},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, interval.Merge(tc.in))
		})
	}
}

func TestGaps(t *testing.T) {
	// Window 09:00-18:00 expressed as minute offsets.
	const open, close = 9 * 60, 18 * 60

	t.Run("empty busy set yields whole window", func(t *testing.T) {
		got := interval.Gaps(open, close, nil)
		require.Len(t, got, 1)
		assert.Equal(t, iv(open, close), got[0])
	})

	t.Run("busy covering window yields no gaps", func(t *testing.T) {
		assert.Empty(t, interval.Gaps(open, close, []interval.Interval{iv(8*60, 19*60)}))
	})

	t.Run("single booking leaves tail free", func(t *testing.T) {
		got := interval.Gaps(open, close, []interval.Interval{iv(9*60, 12*60)})
		assert.Equal(t, []interval.Interval{iv(12*60, 18*60)}, got)
	})

	t.Run("middle booking splits window", func(t *testing.T) {
		got := interval.Gaps(open, close, []interval.Interval{iv(11*60, 13*60)})
		assert.Equal(t, []interval.Interval{iv(open, 11*60), iv(13*60, close)}, got)
	})

	t.Run("unsorted overlapping busy set is merged first", func(t *testing.T) {
		busy := []interval.Interval{iv(14*60, 16*60), iv(9*60, 11*60), iv(10*60, 12*60)}
		got := interval.Gaps(open, close, busy)
		assert.Equal(t, []interval.Interval{iv(12*60, 14*60), iv(16*60, close)}, got)
	})

	t.Run("busy outside window is ignored", func(t *testing.T) {
		busy := []interval.Interval{iv(6*60, 8*60), iv(19*60, 20*60)}
		got := interval.Gaps(open, close, busy)
		assert.Equal(t, []interval.Interval{iv(open, close)}, got)
	})

	t.Run("busy straddling window edge is clipped", func(t *testing.T) {
		busy := []interval.Interval{iv(8*60, 10*60)}
		got := interval.Gaps(open, close, busy)
		assert.Equal(t, []interval.Interval{iv(10*60, close)}, got)
	})

	t.Run("zero-length window yields no gaps", func(t *testing.T) {
		assert.Empty(t, interval.Gaps(close, open, nil))
		assert.Empty(t, interval.Gaps(open, open, nil))
	})
}

// Busy plus free durations must always reconstruct the full window.
func TestGapsComplement(t *testing.T) {
	const open, close = 9 * 60, 18 * 60
	busy := []interval.Interval{iv(9*60+30, 10*60), iv(12*60, 13*60), iv(16*60, 17*60+15)}

	total := 0
	for _, b := range interval.Merge(busy) {
		total += b.Duration()
	}
	for _, g := range interval.Gaps(open, close, busy) {
		total += g.Duration()
	}
	assert.Equal(t, close-open, total)
}
