package strategy

import (
	"math"
	"time"

	"stock-analytics-service/internal/marketdata"
)

// Strategy defines the interface for threshold strategies run on demand
// over one symbol's daily bars.
type Strategy interface {
	// Name returns the canonical strategy name.
	Name() string

	// Run evaluates the strategy over a bar series ordered oldest first.
	Run(symbol string, bars []marketdata.Bar) *Result
}

// Result is the wire payload of one strategy evaluation. Strategies fill
// only the fields they produce; pointer fields stay null when the value is
// inside an indicator warm-up.
type Result struct {
	Symbol     string `json:"symbol,omitempty"`
	Message    string `json:"message,omitempty"`
	HasSignal  *bool  `json:"has_signal,omitempty"`
	Signal     string `json:"signal,omitempty"`
	SignalDate string `json:"signal_date,omitempty"`
	LastDate   string `json:"last_date,omitempty"`

	LastClose *float64 `json:"last_close,omitempty"`
	LastSMA20 *float64 `json:"last_sma_20,omitempty"`
	SMA50     *float64 `json:"sma_50,omitempty"`
	SMA200    *float64 `json:"sma_200,omitempty"`

	LastRSI      *float64   `json:"last_rsi,omitempty"`
	IsOverbought *bool      `json:"is_overbought,omitempty"`
	IsOversold   *bool      `json:"is_oversold,omitempty"`
	Overbought   []RSIEvent `json:"recent_overbought_events,omitempty"`
	Oversold     []RSIEvent `json:"recent_oversold_events,omitempty"`
}

// RSIEvent is one dated RSI reading beyond a threshold.
type RSIEvent struct {
	Date string  `json:"date"`
	RSI  float64 `json:"rsi"`
}

// registry maps every accepted name, aliases included, to its strategy.
var registry = map[string]Strategy{
	"sma_20":         SMA20{},
	"20sma":          SMA20{},
	"golden_cross":   GoldenCross{},
	"death_cross":    DeathCross{},
	"rsi_overbought": RSIOverbought{},
	"rsi_oversold":   RSIOversold{},
}

// Lookup resolves a strategy by name or alias.
func Lookup(name string) (Strategy, bool) {
	s, ok := registry[name]
	return s, ok
}

// Names returns every accepted strategy name, aliases included.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}

func noData() *Result {
	return &Result{Message: "No data available"}
}

func isoDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func floatPtr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func boolPtr(v bool) *bool { return &v }
