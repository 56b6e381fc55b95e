package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Session is the permitted intraday trading session for entries.
type Session int

const (
	SessionAll Session = iota
	SessionAsia
	SessionLondon
	SessionUS
)

func (s Session) String() string {
	switch s {
	case SessionAll:
		return "All"
	case SessionAsia:
		return "Asia"
	case SessionLondon:
		return "London"
	case SessionUS:
		return "US"
	default:
		return "Unknown"
	}
}

// StoplossMin/StoplossMax and ProfitTargetMin/ProfitTargetMax give the
// declared domain for the corresponding Strategy fields.
var (
	StoplossMin     = 3e-4
	StoplossMax     = 0.05
	ProfitTargetMin = 3e-4
	ProfitTargetMax = 0.05
)

// ValidMaxTradeLength reports whether a max trade length value is one of
// the declared domain members {5, 10, ..., 300} minutes.
func ValidMaxTradeLength(n int) bool {
	return n >= 5 && n <= 300 && n%5 == 0
}

// IndicatorSpec names one ordered indicator entry of a strategy: an
// indicator kind and its scalar parameters.
type IndicatorSpec struct {
	Name   string
	Params map[string]float64
}

// Fingerprint is the stable cache key "<name>,<sorted-params-json>" from
// spec.md §3.
func (s IndicatorSpec) Fingerprint() string {
	keys := make([]string, 0, len(s.Params))
	for k := range s.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(map[string]float64, len(s.Params))
	for _, k := range keys {
		ordered[k] = s.Params[k]
	}
	// json.Marshal on a map already emits keys in sorted order, but the
	// intermediate ordered map keeps the intent explicit for readers.
	buf, _ := json.Marshal(ordered)
	return fmt.Sprintf("%s,%s", s.Name, buf)
}

// Strategy is an immutable, validated trading-strategy record (spec.md §3).
type Strategy struct {
	Stoploss       float64
	ProfitTarget   float64
	Session        Session
	MaxTradeLength int  // minutes; 0 means unset
	HasMaxLength   bool

	Monday    bool
	Tuesday   bool
	Wednesday bool
	Thursday  bool
	Friday    bool

	TakeEverySignal bool
	OneTradePerWeek bool
	IndicatorReset  ResetType

	Indicators []IndicatorSpec
}

// PermittedDays returns true for every weekday the strategy permits.
func (s Strategy) PermittedDays() [5]bool {
	return [5]bool{s.Monday, s.Tuesday, s.Wednesday, s.Thursday, s.Friday}
}

// AllDaysPermitted reports whether every weekday Monday through Friday is
// permitted (the common case, letting the Entry Builder skip an
// intersection step).
func (s Strategy) AllDaysPermitted() bool {
	for _, d := range s.PermittedDays() {
		if !d {
			return false
		}
	}
	return true
}

// Validate checks Strategy against the declared domains of spec.md §3 and
// §9's open question (a): one_trade_per_week combined with a daily reset
// is ambiguous in the source and is rejected rather than guessed at.
func (s Strategy) Validate() error {
	if s.Stoploss < StoplossMin || s.Stoploss > StoplossMax {
		return fmt.Errorf("%w: stoploss %g outside [%g, %g]", ErrInvalidStrategy, s.Stoploss, StoplossMin, StoplossMax)
	}
	if s.ProfitTarget < ProfitTargetMin || s.ProfitTarget > ProfitTargetMax {
		return fmt.Errorf("%w: profit_target %g outside [%g, %g]", ErrInvalidStrategy, s.ProfitTarget, ProfitTargetMin, ProfitTargetMax)
	}
	if s.HasMaxLength && !ValidMaxTradeLength(s.MaxTradeLength) {
		return fmt.Errorf("%w: max_trade_length %d not a multiple of 5 in [5, 300]", ErrInvalidStrategy, s.MaxTradeLength)
	}
	if len(s.Indicators) == 0 {
		return fmt.Errorf("%w: indicator list is empty", ErrInvalidStrategy)
	}
	if !s.AllDaysPermitted() {
		anyDay := false
		for _, d := range s.PermittedDays() {
			anyDay = anyDay || d
		}
		if !anyDay {
			return fmt.Errorf("%w: no weekday permitted", ErrInvalidStrategy)
		}
	}
	if s.OneTradePerWeek && s.IndicatorReset == ResetDaily {
		return fmt.Errorf("%w: one_trade_per_week combined with daily indicator_reset is ambiguous and unsupported", ErrInvalidStrategy)
	}
	return nil
}
