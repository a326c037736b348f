package progression

import (
	"time"
	_ "time/tzdata" // user timezones must resolve in minimal containers
)

// ResolveLocation loads an IANA timezone, falling back to UTC when the name
// is empty or unknown.
func ResolveLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ValidTimezone reports whether tz is empty or a loadable IANA name.
func ValidTimezone(tz string) bool {
	if tz == "" {
		return true
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// LocalDate returns the calendar date of now in timezone tz as midnight UTC,
// the form dates are stored in.
func LocalDate(now time.Time, tz string) time.Time {
	y, m, d := now.In(ResolveLocation(tz)).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Day returns the calendar date of t as midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
