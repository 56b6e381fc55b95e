package model

import "time"

// Holiday is a named interval during which bars are excluded from the bar
// store and forced-exit masks apply (spec.md §6 get_holidays).
type Holiday struct {
	Name  string
	Start time.Time
	End   time.Time
}

// RiskEvent is a scheduled event (e.g. a news release) whose window,
// extended by StopBefore/ResumeAfter, forces position exit (spec.md §6
// get_risk_events).
type RiskEvent struct {
	Code        string
	Start       time.Time
	End         time.Time
	StopBefore  time.Duration
	ResumeAfter time.Duration
}

// Window returns the risk event's effective forced-exit interval.
func (r RiskEvent) Window() (time.Time, time.Time) {
	return r.Start.Add(-r.StopBefore), r.End.Add(r.ResumeAfter)
}

// CircuitBreaker is a historical market-wide trading halt interval
// (spec.md §6 get_historical_circuit_breakers).
type CircuitBreaker struct {
	Market string
	Start  time.Time
	End    time.Time
}

// AcceptableGap describes a recurring, expected data gap (spec.md §6
// get_acceptable_gaps), loaded through store.AcceptableGapRowSource. The
// Bar Store and calendar builder do not consult acceptable gaps.
type AcceptableGap struct {
	Start            time.Time
	End              time.Time
	ReoccurDay       string
	ReoccurStartTime string
	ReoccurEndTime   string
	Description      string
}
