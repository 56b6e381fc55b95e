// Package indicator implements the pure, vectorized indicator functions of
// spec.md §4.3 (C3): each indicator is a pure function from one period's
// OHLCV slice and a parameter bag to a pair of boolean long/short signal
// vectors of length equal to the period's capacity. The math is grounded
// on the incremental SMA/EMA/RSI/MACD/ADX computations of the retrieval
// pack's bar-by-bar strategy context, rewritten here as closed-form,
// whole-period vector functions instead of incremental per-bar state.
package indicator

import (
	"fmt"

	"github.com/haldorsen/fstratbt/pkg/model"
)

// Kind is the closed enumeration of indicator identities spec.md §9
// ("Dynamic strategy record → tagged record") calls for.
type Kind string

const (
	KindSMAWith      Kind = "SMA_With"
	KindSMAAgainst   Kind = "SMA_Against"
	KindEMAWith      Kind = "EMA_With"
	KindEMAAgainst   Kind = "EMA_Against"
	KindRSIWith      Kind = "RSI_With"
	KindRSIAgainst   Kind = "RSI_Against"
	KindMACDWith     Kind = "MACD_With"
	KindMACDAgainst  Kind = "MACD_Against"
	KindADXWith      Kind = "ADX_With"
	KindADXAgainst   Kind = "ADX_Against"
)

// DomainKind names the shape of a parameter's declared domain.
type DomainKind int

const (
	DomainIntRange DomainKind = iota
	DomainFloatRange
	DomainEnum
)

// ParamDef is one parameter's declared domain, used to validate a
// strategy's indicator params before evaluation (spec.md §7
// InvalidStrategy).
type ParamDef struct {
	Name    string
	Domain  DomainKind
	Min     float64
	Max     float64
	Allowed []float64 // for DomainEnum
}

// Validate checks a single parameter value against its declared domain.
func (d ParamDef) Validate(v float64) error {
	switch d.Domain {
	case DomainIntRange:
		if v != float64(int(v)) {
			return fmt.Errorf("%w: param %q must be an integer, got %g", model.ErrInvalidStrategy, d.Name, v)
		}
		fallthrough
	case DomainFloatRange:
		if v < d.Min || v > d.Max {
			return fmt.Errorf("%w: param %q value %g outside [%g, %g]", model.ErrInvalidStrategy, d.Name, v, d.Min, d.Max)
		}
	case DomainEnum:
		for _, a := range d.Allowed {
			if a == v {
				return nil
			}
		}
		return fmt.Errorf("%w: param %q value %g not in enumerated set", model.ErrInvalidStrategy, d.Name, v)
	}
	return nil
}

// Indicator is the capability every indicator kind implements (spec.md §9
// "Indicator registry → trait/interface").
type Indicator interface {
	Kind() Kind
	ParamSchema() []ParamDef
	// MaxLookback returns the warmup prefix length for the given params.
	MaxLookback(params map[string]float64) int
	// Compute returns long and short signal vectors, each of length
	// len(bars). Values inside the warmup prefix are unspecified; callers
	// (the Entry Builder) must blank them.
	Compute(bars []model.Bar, length int, params map[string]float64) (long, short []bool, err error)
}

// ValidateParams checks every parameter a strategy supplies against an
// indicator's declared schema, and rejects unknown parameter names.
func ValidateParams(ind Indicator, params map[string]float64) error {
	schema := ind.ParamSchema()
	known := make(map[string]ParamDef, len(schema))
	for _, d := range schema {
		known[d.Name] = d
	}
	for name, v := range params {
		def, ok := known[name]
		if !ok {
			return fmt.Errorf("%w: indicator %s has no parameter %q", model.ErrInvalidStrategy, ind.Kind(), name)
		}
		if err := def.Validate(v); err != nil {
			return err
		}
	}
	for _, def := range schema {
		if _, ok := params[def.Name]; !ok {
			return fmt.Errorf("%w: indicator %s missing required parameter %q", model.ErrInvalidStrategy, ind.Kind(), def.Name)
		}
	}
	return nil
}

// computeChecked runs Compute and enforces the shape contract of
// spec.md §4.3 / §7 (IndicatorShapeMismatch).
func computeChecked(ind Indicator, bars []model.Bar, length int, params map[string]float64) (long, short []bool, err error) {
	long, short, err = ind.Compute(bars, length, params)
	if err != nil {
		return nil, nil, err
	}
	if len(long) != len(bars) || len(short) != len(bars) || len(long) != len(short) {
		return nil, nil, fmt.Errorf("%w: indicator %s returned long=%d short=%d want %d", model.ErrIndicatorShapeMismatch, ind.Kind(), len(long), len(short), len(bars))
	}
	return long, short, nil
}

// Compute looks up an indicator by kind, validates its params, and
// invokes it with shape enforcement.
func Compute(kind Kind, bars []model.Bar, length int, params map[string]float64) (long, short []bool, err error) {
	ind, ok := Registry[kind]
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown indicator %q", model.ErrInvalidStrategy, kind)
	}
	if err := ValidateParams(ind, params); err != nil {
		return nil, nil, err
	}
	return computeChecked(ind, bars, length, params)
}

// MaxLookback looks up an indicator by kind and returns its warmup length.
func MaxLookback(kind Kind, params map[string]float64) (int, error) {
	ind, ok := Registry[kind]
	if !ok {
		return 0, fmt.Errorf("%w: unknown indicator %q", model.ErrInvalidStrategy, kind)
	}
	return ind.MaxLookback(params), nil
}

func closes(bars []model.Bar, length int) []float64 {
	out := make([]float64, length)
	for i := 0; i < length; i++ {
		out[i] = bars[i].Close
	}
	return out
}

func blankTail(vec []bool, from int) {
	for i := from; i < len(vec); i++ {
		vec[i] = false
	}
}
