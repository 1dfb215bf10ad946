package database

import (
	"math"
	"time"

	"stock-analytics-service/internal/indicators"
	"stock-analytics-service/internal/marketdata"
)

// TimeseriesRow is one persisted bar with its computed metric columns.
// Metric pointers are nil while the indicator is inside its warm-up, which
// maps to NULL in the table and null in JSON.
type TimeseriesRow struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`

	SMA20          *float64 `json:"sma_20"`
	SMA50          *float64 `json:"sma_50"`
	SMA200         *float64 `json:"sma_200"`
	EMA12          *float64 `json:"ema_12"`
	EMA20          *float64 `json:"ema_20"`
	EMA26          *float64 `json:"ema_26"`
	MACDLine       *float64 `json:"macd_line"`
	MACDSignalLine *float64 `json:"macd_signal_line"`
	MACDHistogram  *float64 `json:"macd_histogram"`
	RSI            *float64 `json:"rsi"`
	ATR            *float64 `json:"atr"`
	BBUpper        *float64 `json:"bb_upper"`
	BBLower        *float64 `json:"bb_lower"`
}

// StockRow is one company metadata row behind the stocks API. Pointer
// fields are nil when enrichment had no value for the column.
type StockRow struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Exchange      *string   `json:"exchange"`
	Sector        *string   `json:"sector"`
	Industry      *string   `json:"industry"`
	MarketCap     *float64  `json:"market_cap"`
	PERatio       *float64  `json:"pe_ratio"`
	DividendYield *float64  `json:"dividend_yield"`
	Description   *string   `json:"description"`
	Website       *string   `json:"website"`
	Logo          *string   `json:"logo"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Bar converts the row back to the in-memory series shape.
func (r TimeseriesRow) Bar() marketdata.Bar {
	return marketdata.Bar{
		Date:   r.Date,
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
	}
}

// nullable maps an indicator warm-up NaN to a NULL column value.
func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// metricColumns flattens one Metrics value in table column order:
// sma_20, sma_50, sma_200, ema_12, ema_20, ema_26, macd_line,
// macd_signal_line, macd_histogram, rsi, atr, bb_upper, bb_lower.
func metricColumns(m indicators.Metrics) []any {
	return []any{
		nullable(m.SMA20), nullable(m.SMA50), nullable(m.SMA200),
		nullable(m.EMA12), nullable(m.EMA20), nullable(m.EMA26),
		nullable(m.MACD), nullable(m.MACDSignal), nullable(m.MACDHist),
		nullable(m.RSI14), nullable(m.ATR14),
		nullable(m.BBUpper), nullable(m.BBLower),
	}
}
