package model

import (
	"fmt"
	"time"
)

// Slot and site times are kept as minute offsets from local midnight for
// interval arithmetic; only the boundary with the store and with clients
// converts to clock strings or absolute instants.

// ParseClock converts an "HH:MM" clock string into minutes from midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock value %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes from midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// AtDate anchors a minute offset on the given calendar date in loc and
// returns the absolute instant in UTC.  date carries only its calendar
// component; its own location is ignored.
func AtDate(date time.Time, minutes int, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, minutes, 0, 0, loc).UTC()
}

// MinutesOfDay projects an absolute instant onto the local day in loc,
// returning the calendar date and the minute offset from local midnight.
func MinutesOfDay(t time.Time, loc *time.Location) (time.Time, int) {
	local := t.In(loc)
	y, m, d := local.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return date, local.Hour()*60 + local.Minute()
}
