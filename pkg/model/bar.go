// Package model holds the data types shared across the backtest engine:
// bars, periods, strategies, trades, and the sentinel values the database
// boundary uses to mark padding.
package model

import "time"

// DefaultVolume marks a forward-filled gap bar.
const DefaultVolume = 1e-6

// DefaultDatetime marks a padding minute inside a period's sentinel tail.
var DefaultDatetime = time.Date(2006, time.December, 31, 12, 0, 0, 0, time.UTC)

// MinutesPerDay is the fixed capacity of a daily period.
const MinutesPerDay = 1380

// MinutesPerWeek is the fixed capacity of a weekly period.
const MinutesPerWeek = 6900

// Bar is a single minute of OHLCV data for one symbol.
type Bar struct {
	DateTime time.Time
	Symbol   string
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// IsPadding reports whether a bar occupies a period's sentinel tail.
func (b Bar) IsPadding() bool {
	return b.DateTime.Equal(DefaultDatetime)
}

// PaddingBar returns a zero-OHLC bar stamped with the padding sentinels.
func PaddingBar(symbol string) Bar {
	return Bar{
		DateTime: DefaultDatetime,
		Symbol:   symbol,
		Volume:   DefaultVolume,
	}
}
