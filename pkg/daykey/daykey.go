// Package daykey derives the calendar-day identifiers used to partition
// intake history. A day key is always computed from a timestamp converted
// into the user's stored time zone, so the client write path and the
// dispatch job agree on which day an event belongs to.
package daykey

import "time"

// WindowDays is the length of the rolling history window: today plus the
// six preceding calendar days.
const WindowDays = 7

const layout = "2006-01-02"

// Key returns the calendar-day identifier (YYYY-MM-DD) for t in loc.
// Two timestamps on the same calendar day map to the same key, and later
// days always sort later lexicographically. A nil loc means UTC.
func Key(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(layout)
}

// Window returns the WindowDays day keys ending at now's day in loc,
// oldest first.
func Window(now time.Time, loc *time.Location) []string {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	keys := make([]string, 0, WindowDays)
	for i := WindowDays - 1; i >= 0; i-- {
		keys = append(keys, local.AddDate(0, 0, -i).Format(layout))
	}
	return keys
}

// WindowStart returns local midnight of the oldest day in the window, as a
// point in time. Remote reads use it as the lower bound for history queries.
func WindowStart(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return midnight.AddDate(0, 0, -(WindowDays - 1))
}
