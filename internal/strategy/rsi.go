package strategy

import (
	"math"

	"stock-analytics-service/internal/indicators"
	"stock-analytics-service/internal/marketdata"
)

const (
	overboughtLevel = 70.0
	oversoldLevel   = 30.0
	// Only the latest readings beyond a threshold are reported.
	maxRSIEvents = 20
)

// RSIOverbought flags when the 14-day RSI sits above 70 on the latest bar
// and lists the recent overbought readings.
type RSIOverbought struct{}

func (RSIOverbought) Name() string { return "rsi_overbought" }

func (RSIOverbought) Run(symbol string, bars []marketdata.Bar) *Result {
	res, last, events := rsiThreshold(symbol, bars, func(v float64) bool { return v > overboughtLevel })
	if res != nil {
		return res
	}
	return &Result{
		Symbol:       symbol,
		LastDate:     isoDate(bars[len(bars)-1].Date),
		LastRSI:      last,
		IsOverbought: boolPtr(last != nil && *last > overboughtLevel),
		Overbought:   events,
	}
}

// RSIOversold flags when the 14-day RSI sits below 30 on the latest bar
// and lists the recent oversold readings.
type RSIOversold struct{}

func (RSIOversold) Name() string { return "rsi_oversold" }

func (RSIOversold) Run(symbol string, bars []marketdata.Bar) *Result {
	res, last, events := rsiThreshold(symbol, bars, func(v float64) bool { return v < oversoldLevel })
	if res != nil {
		return res
	}
	return &Result{
		Symbol:     symbol,
		LastDate:   isoDate(bars[len(bars)-1].Date),
		LastRSI:    last,
		IsOversold: boolPtr(last != nil && *last < oversoldLevel),
		Oversold:   events,
	}
}

// rsiThreshold returns either a terminal empty-input result, or the latest
// RSI reading plus the trailing matches of the threshold predicate.
func rsiThreshold(symbol string, bars []marketdata.Bar, match func(float64) bool) (*Result, *float64, []RSIEvent) {
	if len(bars) == 0 {
		return noData(), nil, nil
	}

	rsi := indicators.CalculateRSI(marketdata.Closes(bars), 14)

	var events []RSIEvent
	for i, v := range rsi {
		if !math.IsNaN(v) && match(v) {
			events = append(events, RSIEvent{Date: isoDate(bars[i].Date), RSI: v})
		}
	}
	if len(events) > maxRSIEvents {
		events = events[len(events)-maxRSIEvents:]
	}

	return nil, floatPtr(rsi[len(rsi)-1]), events
}
