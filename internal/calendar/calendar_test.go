package calendar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haldorsen/fstratbt/internal/calendar"
	"github.com/haldorsen/fstratbt/pkg/model"
)

// buildDailyMatrix returns a single-period daily matrix starting at 18:00
// on the given date, with every real minute filled (no padding).
func buildDailyMatrix(start time.Time) *model.BarMatrix {
	capacity := model.MinutesPerDay
	bars := make([]model.Bar, capacity)
	for i := 0; i < capacity; i++ {
		bars[i] = model.Bar{DateTime: start.Add(time.Duration(i) * time.Minute), Symbol: "CL"}
	}
	return &model.BarMatrix{
		Market:   "CL",
		Reset:    model.ResetDaily,
		Capacity: capacity,
		Periods: []model.Period{
			{Start: start, Bars: bars, Length: capacity},
		},
	}
}

// TestTimedExitsEndOfDayWindow checks spec.md §4.2(a): every minute at
// elapsed hour 17 or 18 since period start is marked a forced exit,
// regardless of its absolute clock time.
func TestTimedExitsEndOfDayWindow(t *testing.T) {
	require := require.New(t)

	start := time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC) // a Monday
	matrix := buildDailyMatrix(start)

	b := calendar.NewBuilder()
	masks := b.Build(matrix, nil, nil, nil)

	exits := masks.TimedExits[0]
	for idx := 17 * 60; idx < 19*60; idx++ {
		require.Truef(exits[idx], "expected TimedExits[0][%d] (elapsed hour %d) to be true", idx, idx/60)
	}

	// A minute well outside the window should not be force-exited by this
	// clause (it may still be true via session-end or holiday clauses, but
	// none of those apply to this fixture).
	require.False(exits[0])
	require.False(exits[10*60])
}

// TestTimedExitsRecurDailyWithinWeeklyPeriod checks that the elapsed-hour
// window recurs every 1380 minutes within a weekly period, since it is
// computed relative to period start, not the period's single calendar day.
func TestTimedExitsRecurDailyWithinWeeklyPeriod(t *testing.T) {
	require := require.New(t)

	start := time.Date(2024, 3, 3, 17, 0, 0, 0, time.UTC) // a Sunday
	capacity := model.MinutesPerWeek
	bars := make([]model.Bar, capacity)
	for i := 0; i < capacity; i++ {
		bars[i] = model.Bar{DateTime: start.Add(time.Duration(i) * time.Minute), Symbol: "CL"}
	}
	matrix := &model.BarMatrix{
		Market:   "CL",
		Reset:    model.ResetWeekly,
		Capacity: capacity,
		Periods: []model.Period{
			{Start: start, Bars: bars, Length: capacity},
		},
	}

	b := calendar.NewBuilder()
	masks := b.Build(matrix, nil, nil, nil)
	exits := masks.TimedExits[0]

	for day := 0; day < 5; day++ {
		base := day * model.MinutesPerDay
		require.Truef(exits[base+17*60], "day %d elapsed hour 17 should force exit", day)
		require.Truef(exits[base+18*60+59], "day %d elapsed hour 18 should force exit", day)
	}
}
