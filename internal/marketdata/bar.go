package marketdata

import "time"

// Timeframe identifies the bar interval of a series.
type Timeframe string

const (
	TimeframeDaily    Timeframe = "1d"
	TimeframeFourHour Timeframe = "4h"
)

// Bar represents one OHLCV observation for a fixed time interval.
// Series are ordered oldest first with strictly increasing timestamps.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Highs returns the high prices of a series.
func Highs(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows returns the low prices of a series.
func Lows(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

// Closes returns the close prices of a series.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
