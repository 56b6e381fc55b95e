// Package calendar builds the per-period allowed-entry and forced-exit
// masks spec.md §4.2 requires (C2). Masks depend only on the bar matrix's
// structural period layout and the external calendar collaborators
// (holidays, risk events, circuit breakers); they are computed once per
// (market, range, reset) and reused across every strategy evaluated
// against that matrix, following the minute-of-day window idiom of the
// retrieval pack's market-hours scheduler.
package calendar

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/haldorsen/fstratbt/internal/logging"
	"github.com/haldorsen/fstratbt/pkg/model"
)

// tradingWindow is an (open, close) pair expressed in minutes since
// midnight of the local trading clock, where minute 0 of a period
// corresponds to 18:00. Windows may wrap past midnight.
type tradingWindow struct {
	openMin  int
	closeMin int // exclusive
}

func (w tradingWindow) contains(minuteOfDay int) bool {
	if w.openMin <= w.closeMin {
		return minuteOfDay >= w.openMin && minuteOfDay < w.closeMin
	}
	return minuteOfDay >= w.openMin || minuteOfDay < w.closeMin
}

// sessionEndMinute gives the forced-exit minute-of-day for each session
// (spec.md §4.2(b)): Asia ends 01:55, London ends 08:55, US ends 15:55.
var sessionEndMinute = map[model.Session]int{
	model.SessionAsia:   1*60 + 55,
	model.SessionLondon: 8*60 + 55,
	model.SessionUS:     15*60 + 55,
}

// sessionWindow gives each session's allowed-entry window: the nominal
// session hours, closed in their final five minutes
// (DAILY_EXIT_MINUTES_END_SESSION), with Asia additionally opening five
// minutes late.
var sessionWindow = map[model.Session]tradingWindow{
	model.SessionAsia:   {openMin: 18*60 + 5, closeMin: 1*60 + 55},
	model.SessionLondon: {openMin: 2 * 60, closeMin: 8*60 + 55},
	model.SessionUS:     {openMin: 9 * 60, closeMin: 15*60 + 55},
	model.SessionAll:    {openMin: 18 * 60, closeMin: 15*60 + 55},
}

// dayElapsedHour returns the elapsed-hour count since the most recent
// daily boundary within the period (0 for the period's first hour, 22 for
// its last): idx modulo a day's capacity, divided by 60. spec.md §4.2(a)'s
// "hours 17 and 18 relative to period start" is this elapsed count, not an
// absolute clock hour — a period's 18:00 anchor plus the unmodeled
// 17:00-18:00 maintenance break (1440 clock minutes vs. 1380 trading
// minutes per day) makes the two different quantities.
func dayElapsedHour(idx int) int {
	return (idx % model.MinutesPerDay) / 60
}

// Masks holds the three period-indexed boolean mask families of spec.md
// §4.2, built once per (market, range, reset) bar matrix.
type Masks struct {
	// TimedExits[p][minute] is true where every open position must exit.
	TimedExits [][]bool
	// AllowedEntrySessions[p][session][minute] is true where entries for
	// that session are permitted.
	AllowedEntrySessions [][4][]bool
	// AllowedEntryDays[p][weekday][minute] is true where the minute's
	// DayOfWeek equals weekday (0=Monday .. 4=Friday).
	AllowedEntryDays [][5][]bool
}

// Builder computes Masks for a bar matrix against the external calendar
// collaborators.
type Builder struct {
	log zerolog.Logger
}

// NewBuilder returns a calendar mask builder.
func NewBuilder() *Builder {
	return &Builder{log: logging.GetLogger("calendar")}
}

// minuteOfDay maps a period-local minute index to the local trading clock
// position, where index 0 is 18:00. Both daily and weekly periods share
// this anchor: a week's 6900-minute capacity is five contiguous daily
// sub-blocks sharing the same 18:00 phase (the eve-of-week open is treated
// as phase-aligned with the daily 18:00 anchor).
func minuteOfDay(idx int) int {
	dayOffset := idx % model.MinutesPerDay
	return (18*60 + dayOffset) % (24 * 60)
}

// Build computes masks for every period in the matrix.
func (b *Builder) Build(matrix *model.BarMatrix, holidays []model.Holiday, riskEvents []model.RiskEvent, breakers []model.CircuitBreaker) *Masks {
	log := logging.WithMarket(b.log, matrix.Market)
	capacity := matrix.Capacity
	periods := matrix.PeriodCount()

	masks := &Masks{
		TimedExits:           make([][]bool, periods),
		AllowedEntrySessions: make([][4][]bool, periods),
		AllowedEntryDays:     make([][5][]bool, periods),
	}

	for p := 0; p < periods; p++ {
		period := matrix.Periods[p]

		timedExits := make([]bool, capacity)
		var sessions [4][]bool
		for s := range sessions {
			sessions[s] = make([]bool, capacity)
		}
		var days [5][]bool
		for d := range days {
			days[d] = make([]bool, capacity)
		}

		for i := 0; i < capacity; i++ {
			mod := minuteOfDay(i)

			if hour := dayElapsedHour(i); hour == 17 || hour == 18 {
				timedExits[i] = true
			}
			for _, end := range sessionEndMinute {
				if mod == end {
					timedExits[i] = true
				}
			}

			if i >= period.Length {
				// Padding region: never an allowed entry minute, but it may
				// still be marked as a forced exit so an open position
				// flowing into padding is closed rather than stranded.
				timedExits[i] = true
				continue
			}

			bar := period.Bars[i]

			for s, win := range map[model.Session]tradingWindow{
				model.SessionAll:    sessionWindow[model.SessionAll],
				model.SessionAsia:   sessionWindow[model.SessionAsia],
				model.SessionLondon: sessionWindow[model.SessionLondon],
				model.SessionUS:     sessionWindow[model.SessionUS],
			} {
				if win.contains(mod) {
					sessions[s][i] = true
				}
			}

			dow := model.DayOfWeek(bar.DateTime)
			switch dow {
			case time.Monday:
				days[0][i] = true
			case time.Tuesday:
				days[1][i] = true
			case time.Wednesday:
				days[2][i] = true
			case time.Thursday:
				days[3][i] = true
			case time.Friday:
				days[4][i] = true
			}

			if inAnyHoliday(bar.DateTime, holidays) {
				timedExits[i] = true
			}
			if inAnyRiskEvent(bar.DateTime, riskEvents) {
				timedExits[i] = true
			}
			if inAnyBreaker(bar.DateTime, breakers) {
				timedExits[i] = true
			}
		}

		masks.TimedExits[p] = timedExits
		masks.AllowedEntrySessions[p] = sessions
		masks.AllowedEntryDays[p] = days
	}

	log.Debug().Int("periods", periods).Msg("calendar masks built")
	return masks
}

func inAnyHoliday(t time.Time, holidays []model.Holiday) bool {
	for _, h := range holidays {
		if !t.Before(h.Start) && t.Before(h.End) {
			return true
		}
	}
	return false
}

func inAnyRiskEvent(t time.Time, events []model.RiskEvent) bool {
	for _, e := range events {
		start, end := e.Window()
		if !t.Before(start) && t.Before(end) {
			return true
		}
	}
	return false
}

func inAnyBreaker(t time.Time, breakers []model.CircuitBreaker) bool {
	for _, cb := range breakers {
		if !t.Before(cb.Start) && t.Before(cb.End) {
			return true
		}
	}
	return false
}
