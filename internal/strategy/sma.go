package strategy

import (
	"stock-analytics-service/internal/indicators"
	"stock-analytics-service/internal/marketdata"
)

// SMA20 reports where the latest close sits relative to its 20-day simple
// moving average.
type SMA20 struct{}

func (SMA20) Name() string { return "sma_20" }

func (SMA20) Run(symbol string, bars []marketdata.Bar) *Result {
	if len(bars) == 0 {
		return noData()
	}

	sma20 := indicators.CalculateSMA(marketdata.Closes(bars), 20)
	last := len(bars) - 1

	res := &Result{
		Symbol:    symbol,
		LastDate:  isoDate(bars[last].Date),
		LastClose: floatPtr(bars[last].Close),
		LastSMA20: floatPtr(sma20[last]),
	}
	if res.LastSMA20 != nil {
		switch {
		case bars[last].Close > *res.LastSMA20:
			res.Signal = "above_sma_20"
		case bars[last].Close < *res.LastSMA20:
			res.Signal = "below_sma_20"
		}
	}
	return res
}

// GoldenCross finds the most recent bar where the 50-day SMA crossed above
// the 200-day SMA.
type GoldenCross struct{}

func (GoldenCross) Name() string { return "golden_cross" }

func (GoldenCross) Run(symbol string, bars []marketdata.Bar) *Result {
	return smaCross(symbol, bars, true)
}

// DeathCross finds the most recent bar where the 50-day SMA crossed below
// the 200-day SMA.
type DeathCross struct{}

func (DeathCross) Name() string { return "death_cross" }

func (DeathCross) Run(symbol string, bars []marketdata.Bar) *Result {
	return smaCross(symbol, bars, false)
}

func smaCross(symbol string, bars []marketdata.Bar, above bool) *Result {
	if len(bars) == 0 {
		return noData()
	}

	closes := marketdata.Closes(bars)
	sma50 := indicators.CalculateSMA(closes, 50)
	sma200 := indicators.CalculateSMA(closes, 200)

	// Both averages exist from the 200th bar onward.
	first := 199
	if len(bars) <= first {
		return &Result{Message: "Not enough data for SMA50/SMA200"}
	}

	lastCross := -1
	for i := first + 1; i < len(bars); i++ {
		crossed := sma50[i] > sma200[i] && sma50[i-1] <= sma200[i-1]
		if !above {
			crossed = sma50[i] < sma200[i] && sma50[i-1] >= sma200[i-1]
		}
		if crossed {
			lastCross = i
		}
	}

	if lastCross < 0 {
		msg := "No golden cross detected"
		if !above {
			msg = "No death cross detected"
		}
		return &Result{Message: msg, HasSignal: boolPtr(false)}
	}

	return &Result{
		Symbol:     symbol,
		HasSignal:  boolPtr(true),
		SignalDate: isoDate(bars[lastCross].Date),
		SMA50:      floatPtr(sma50[lastCross]),
		SMA200:     floatPtr(sma200[lastCross]),
	}
}
