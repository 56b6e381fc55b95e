// Package simulator implements the Trade Simulator (C6) of spec.md §4.6:
// given one period's bars, its timed-exit mask, and the decisions vector
// the Entry Builder produced, walk entry minutes in order and simulate
// each to its exit using stop-loss, profit target, timed exit, max
// length, or next-signal, attributing per-minute returns as it goes. The
// fill/slippage model is grounded on the teacher's Broker.ExecuteOrder
// multiplicative-slippage idiom, adapted from randomized broker slippage
// to the spec's fixed slippage multiplier.
package simulator

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/haldorsen/fstratbt/internal/logging"
	"github.com/haldorsen/fstratbt/pkg/model"
)

// Simulator runs the spec.md §4.6 kernel for one period at a time. It
// holds no per-call state; SimulatePeriod is allocation-free beyond the trade
// records it returns (spec.md §5: "synchronous and allocation-free per
// trade" refers to the hot-loop arithmetic, not the output slice).
type Simulator struct {
	log      zerolog.Logger
	slippage float64
}

// New returns a Simulator using the given fixed slippage multiplier.
func New(slippage float64) *Simulator {
	return &Simulator{log: logging.GetLogger("simulator"), slippage: slippage}
}

const infinity = math.MaxInt32

// SimulatePeriod walks every entry minute of one period in order,
// skipping any entry minute still inside a prior trade's holding window,
// and writes per-minute return attribution into returns (indexed by
// periodOffset + minute, spanning the whole evaluation's flattened
// return series). It returns the realized trades for this period.
func (s *Simulator) SimulatePeriod(strat model.Strategy, periodIdx int, period model.Period, periodOffset int, timedExits []bool, decisions []model.Decision, returns []float64) []model.Trade {
	var trades []model.Trade
	lastExit := -1

	for m := 0; m < len(decisions); m++ {
		if !decisions[m].IsDirectional() {
			continue
		}
		if m < lastExit {
			continue
		}
		if m+1 >= period.Length {
			// No real next-bar open to fill at; spec.md §8 property 4 forbids
			// entering on a padding minute, and a fill one past the last real
			// bar would land in the padding region.
			continue
		}

		trade := s.simulateOne(strat, periodIdx, period, periodOffset, timedExits, decisions, m, returns)
		trades = append(trades, trade)
		lastExit = trade.ExitMinute

		if strat.OneTradePerWeek {
			break
		}
	}

	return trades
}

func (s *Simulator) simulateOne(strat model.Strategy, periodIdx int, period model.Period, periodOffset int, timedExits []bool, decisions []model.Decision, m int, returns []float64) model.Trade {
	direction := 1
	if decisions[m] == model.DecisionShort {
		direction = -1
	}

	entryIdx := m + 1
	entryRaw := period.Bars[entryIdx].Open
	entryPrice := fillPrice(entryRaw, direction, s.slippage, true)

	stopPrice, targetPrice := barrierPrices(entryRaw, direction, strat.Stoploss, strat.ProfitTarget)

	maxLen := model.MinutesPerDay
	if strat.HasMaxLength {
		maxLen = strat.MaxTradeLength
	}
	barsLeftMinusOne := period.Length - 1 - m
	window := maxLen
	if barsLeftMinusOne < window {
		window = barsLeftMinusOne
	}
	M := m + window
	if M >= period.Length {
		M = period.Length - 1
	}

	stopIdx, targetIdx := infinity, infinity
	for i := entryIdx; i <= M; i++ {
		bar := period.Bars[i]
		if direction == 1 {
			if stopIdx == infinity && bar.Low <= stopPrice {
				stopIdx = i
			}
			if targetIdx == infinity && bar.High >= targetPrice {
				targetIdx = i
			}
		} else {
			if stopIdx == infinity && bar.High >= stopPrice {
				stopIdx = i
			}
			if targetIdx == infinity && bar.Low <= targetPrice {
				targetIdx = i
			}
		}
		if stopIdx != infinity && targetIdx != infinity {
			break
		}
	}

	timedIdx := infinity
	for i := m; i <= M; i++ {
		if timedExits[i] {
			timedIdx = i
			break
		}
	}

	maxIdx := infinity
	if strat.HasMaxLength {
		maxIdx = M
	}

	nextSignalIdx := infinity
	if strat.TakeEverySignal {
		for i := entryIdx; i <= M; i++ {
			if decisions[i].IsDirectional() {
				nextSignalIdx = i
				break
			}
		}
	}

	exitIdx, reason := pickExit(stopIdx, targetIdx, timedIdx, maxIdx, nextSignalIdx, M)

	var exitRaw float64
	switch reason {
	case model.ExitStoploss:
		exitRaw = stopPrice
	case model.ExitProfitTarget:
		exitRaw = targetPrice
	default:
		exitRaw = period.Bars[exitIdx].Close
	}
	exitPrice := fillPrice(exitRaw, direction, s.slippage, false)

	ret := (exitPrice - entryPrice) * float64(direction) / entryPrice

	attributeReturns(returns, periodOffset, period, m, entryIdx, exitIdx, entryPrice, exitPrice, direction)

	return model.Trade{
		Direction:         direction,
		PeriodIdx:         periodIdx,
		EntryMinute:       entryIdx,
		ExitMinute:        exitIdx,
		EntryDateTime:     period.Bars[entryIdx].DateTime,
		EntryPrice:        entryPrice,
		ExitPrice:         exitPrice,
		EntryPriceRaw:     entryRaw,
		ExitPriceRaw:      exitRaw,
		StopLossPrice:     stopPrice,
		ProfitTargetPrice: targetPrice,
		ExitReason:        reason,
		Return:            ret,
	}
}

// fillPrice applies the spec.md §4.6 slippage model: every fill is on the
// adverse side, so a long buys at raw*(1+s) and sells at raw*(1-s), and a
// short sells at raw*(1-s) and buys back at raw*(1+s).
func fillPrice(raw float64, direction int, slippage float64, isEntry bool) float64 {
	long := direction == 1
	if isEntry {
		if long {
			return raw * (1 + slippage)
		}
		return raw * (1 - slippage)
	}
	if long {
		return raw * (1 - slippage)
	}
	return raw * (1 + slippage)
}

func barrierPrices(entryRaw float64, direction int, stoploss, profitTarget float64) (stopPrice, targetPrice float64) {
	if direction == 1 {
		return entryRaw * (1 - stoploss), entryRaw * (1 + profitTarget)
	}
	return entryRaw * (1 + stoploss), entryRaw * (1 - profitTarget)
}

// pickExit applies spec.md §4.6's tie-break priority: Stoploss >
// ProfitTarget > TimedExit > MaxLength > NextEntry. Candidates are
// compared in that order and only a strictly smaller index replaces the
// current best, so ties resolve to the higher-priority reason.
func pickExit(stopIdx, targetIdx, timedIdx, maxIdx, nextSignalIdx, fallback int) (int, model.ExitReason) {
	best := infinity
	reason := model.ExitNone
	for _, c := range [...]struct {
		idx    int
		reason model.ExitReason
	}{
		{stopIdx, model.ExitStoploss},
		{targetIdx, model.ExitProfitTarget},
		{timedIdx, model.ExitTimedExit},
		{maxIdx, model.ExitMaxLength},
		{nextSignalIdx, model.ExitNextEntry},
	} {
		if c.idx < best {
			best = c.idx
			reason = c.reason
		}
	}
	if best == infinity {
		// The calendar masks always place a forced exit within a day's span;
		// this only triggers if the caller's timed_exits mask is incomplete.
		return fallback, model.ExitTimedExit
	}
	return best, reason
}

// attributeReturns implements spec.md §4.6's per-minute return
// attribution: close-to-close returns for entryIdx..exitIdx, corrected at
// the entry minute for the slippage-adjusted fill and at the exit minute
// for the slippage-adjusted close.
func attributeReturns(returns []float64, periodOffset int, period model.Period, m, entryIdx, exitIdx int, entryPrice, exitPrice float64, direction int) {
	dir := float64(direction)
	for i := entryIdx; i <= exitIdx; i++ {
		returns[periodOffset+i] += (period.Bars[i].Close - period.Bars[i-1].Close) * dir / entryPrice
	}
	returns[periodOffset+entryIdx] += -(entryPrice - period.Bars[m].Close) * dir / entryPrice
	returns[periodOffset+exitIdx] += -(period.Bars[exitIdx].Close - exitPrice) * dir / entryPrice
}
