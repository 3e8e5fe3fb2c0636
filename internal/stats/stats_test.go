package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aquora-hydration-api/internal/model"
	"aquora-hydration-api/pkg/daykey"
)

func TestDailyTotal(t *testing.T) {
	events := []model.IntakeEvent{
		{Day: "2026-02-07", AmountMl: 250},
		{Day: "2026-02-07", AmountMl: 500},
		{Day: "2026-02-06", AmountMl: 300},
	}

	assert.Equal(t, 750, DailyTotal(events, "2026-02-07"))
	assert.Equal(t, 300, DailyTotal(events, "2026-02-06"))
	assert.Equal(t, 0, DailyTotal(events, "2026-02-05"))
	assert.Equal(t, 0, DailyTotal(nil, "2026-02-07"))
}

func TestPercentToGoal(t *testing.T) {
	assert.Equal(t, 0, PercentToGoal(500, 0), "unset goal yields 0")
	assert.Equal(t, 0, PercentToGoal(500, -100))
	assert.Equal(t, 0, PercentToGoal(0, 2000))
	assert.Equal(t, 25, PercentToGoal(500, 2000))
	assert.Equal(t, 33, PercentToGoal(1, 3), "rounds to nearest")
	assert.Equal(t, 100, PercentToGoal(2000, 2000))
	assert.Equal(t, 100, PercentToGoal(5000, 2000), "clamped at 100")
}

func TestPercentToGoal_Bounds(t *testing.T) {
	for _, total := range []int{-100, 0, 1, 999, 2000, 99999} {
		for _, goal := range []int{-1, 0, 1, 2000} {
			pct := PercentToGoal(total, goal)
			assert.GreaterOrEqual(t, pct, 0)
			assert.LessOrEqual(t, pct, 100)
		}
	}
}

func TestBuildWindow(t *testing.T) {
	now := time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)
	events := []model.IntakeEvent{
		{Day: "2026-02-07", AmountMl: 500},
		{Day: "2026-02-07", AmountMl: 250},
		{Day: "2026-02-05", AmountMl: 2000},
		{Day: "2026-01-01", AmountMl: 9000}, // outside the window
	}

	window := BuildWindow(events, now, time.UTC)
	require.Len(t, window, daykey.WindowDays)

	assert.Equal(t, "2026-02-01", window[0].Day)
	assert.Equal(t, 0, window[0].TotalMl)
	assert.Equal(t, "2026-02-05", window[4].Day)
	assert.Equal(t, 2000, window[4].TotalMl)
	assert.Equal(t, "2026-02-07", window[6].Day)
	assert.Equal(t, 750, window[6].TotalMl)
}

func TestStreak(t *testing.T) {
	window := func(totals ...int) []model.HistoryDay {
		days := make([]model.HistoryDay, len(totals))
		for i, total := range totals {
			days[i] = model.HistoryDay{TotalMl: total}
		}
		return days
	}

	goal := 2000

	assert.Equal(t, 0, Streak(nil, goal))
	assert.Equal(t, 0, Streak(window(2000, 2000), 0), "unset goal yields 0")
	assert.Equal(t, 0, Streak(window(2000, 2000, 500), goal), "missed today ends the streak")
	assert.Equal(t, 1, Streak(window(500, 500, 2000), goal))
	assert.Equal(t, 3, Streak(window(0, 500, 2000, 2500, 3000), goal))
	assert.Equal(t, 7, Streak(window(2000, 2000, 2000, 2000, 2000, 2000, 2000), goal))

	// A gap mid-window only counts the run ending today.
	assert.Equal(t, 2, Streak(window(2000, 2000, 0, 2000, 2000), goal))
}
