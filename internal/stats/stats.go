// Package stats derives goal and streak state from intake history.
// Everything here is pure and deterministic; callers supply the events,
// the reference time and the zone.
package stats

import (
	"math"
	"time"

	"aquora-hydration-api/internal/model"
	"aquora-hydration-api/pkg/daykey"
)

// DailyTotal sums the amounts of all events tagged with day.
func DailyTotal(events []model.IntakeEvent, day string) int {
	total := 0
	for _, e := range events {
		if e.Day == day {
			total += e.AmountMl
		}
	}
	return total
}

// PercentToGoal returns progress toward goal as an integer in [0, 100].
// A goal of 0 (unset) always yields 0 rather than dividing by zero.
func PercentToGoal(total, goal int) int {
	if goal <= 0 {
		return 0
	}
	pct := int(math.Round(float64(total) / float64(goal) * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// BuildWindow aggregates events into the rolling history window ending at
// now's day in loc, oldest first. Days without events carry a zero total.
// Events tagged with days outside the window are ignored.
func BuildWindow(events []model.IntakeEvent, now time.Time, loc *time.Location) []model.HistoryDay {
	keys := daykey.Window(now, loc)
	totals := make(map[string]int, len(keys))
	for _, e := range events {
		totals[e.Day] += e.AmountMl
	}
	window := make([]model.HistoryDay, len(keys))
	for i, k := range keys {
		window[i] = model.HistoryDay{Day: k, TotalMl: totals[k]}
	}
	return window
}

// Streak counts consecutive days, most recent first, whose total met the
// goal. The walk stops at the first day below goal, so a missed "today"
// yields 0. An empty window or an unset goal yields 0, and the count can
// never exceed the window length.
func Streak(window []model.HistoryDay, goal int) int {
	if goal <= 0 || len(window) == 0 {
		return 0
	}
	streak := 0
	for i := len(window) - 1; i >= 0; i-- {
		if window[i].TotalMl < goal {
			break
		}
		streak++
	}
	return streak
}
