package daykey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_SameDaySameKey(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	morning := time.Date(2026, 3, 14, 0, 0, 1, 0, loc)
	night := time.Date(2026, 3, 14, 23, 59, 59, 0, loc)

	assert.Equal(t, Key(morning, loc), Key(night, loc))
	assert.Equal(t, "2026-03-14", Key(morning, loc))
}

func TestKey_ZoneShiftsDay(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// 23:30 UTC is already the next calendar day in Berlin (UTC+1).
	ts := time.Date(2026, 1, 10, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-01-10", Key(ts, time.UTC))
	assert.Equal(t, "2026-01-11", Key(ts, berlin))
}

func TestKey_NilLocationIsUTC(t *testing.T) {
	ts := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, Key(ts, time.UTC), Key(ts, nil))
}

func TestKey_LexicographicOrder(t *testing.T) {
	a := Key(time.Date(2025, 12, 31, 10, 0, 0, 0, time.UTC), time.UTC)
	b := Key(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), time.UTC)
	assert.Less(t, a, b)
}

func TestWindow_OldestFirst(t *testing.T) {
	now := time.Date(2026, 2, 7, 15, 0, 0, 0, time.UTC)

	keys := Window(now, time.UTC)
	require.Len(t, keys, WindowDays)

	assert.Equal(t, "2026-02-01", keys[0])
	assert.Equal(t, "2026-02-07", keys[len(keys)-1])
	for i := 1; i < len(keys); i++ {
		assert.Less(t, keys[i-1], keys[i])
	}
}

func TestWindow_CrossesMonthBoundary(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	keys := Window(now, time.UTC)
	assert.Equal(t, []string{
		"2026-02-24", "2026-02-25", "2026-02-26", "2026-02-27",
		"2026-02-28", "2026-03-01", "2026-03-02",
	}, keys)
}

func TestWindowStart_LocalMidnight(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	now := time.Date(2026, 6, 10, 18, 45, 0, 0, loc)
	start := WindowStart(now, loc)

	assert.Equal(t, time.Date(2026, 6, 4, 0, 0, 0, 0, loc), start)
	assert.Equal(t, Window(now, loc)[0], Key(start, loc))
}
