package indicators

import (
	"math"

	"stock-analytics-service/internal/marketdata"
)

// All calculators return a slice aligned 1:1 with the input: positions
// inside an indicator's warm-up period hold NaN, and callers persist those
// as NULL columns. Alignment is what lets one row carry every metric for
// one bar.

// Metrics holds every computed indicator for one bar.
type Metrics struct {
	SMA20      float64
	SMA50      float64
	SMA200     float64
	EMA12      float64
	EMA20      float64
	EMA26      float64
	MACD       float64
	MACDSignal float64
	MACDHist   float64
	RSI14      float64
	ATR14      float64
	BBUpper    float64
	BBMiddle   float64
	BBLower    float64
}

// Compute runs the full indicator set over a bar series.
func Compute(bars []marketdata.Bar) []Metrics {
	closes := marketdata.Closes(bars)

	sma20 := CalculateSMA(closes, 20)
	sma50 := CalculateSMA(closes, 50)
	sma200 := CalculateSMA(closes, 200)
	ema12 := CalculateEMA(closes, 12)
	ema20 := CalculateEMA(closes, 20)
	ema26 := CalculateEMA(closes, 26)
	macd, signal, hist := CalculateMACD(closes, 12, 26, 9)
	rsi := CalculateRSI(closes, 14)
	atr := CalculateATR(bars, 14)
	upper, middle, lower := CalculateBollinger(closes, 20, 2)

	out := make([]Metrics, len(bars))
	for i := range out {
		out[i] = Metrics{
			SMA20:      sma20[i],
			SMA50:      sma50[i],
			SMA200:     sma200[i],
			EMA12:      ema12[i],
			EMA20:      ema20[i],
			EMA26:      ema26[i],
			MACD:       macd[i],
			MACDSignal: signal[i],
			MACDHist:   hist[i],
			RSI14:      rsi[i],
			ATR14:      atr[i],
			BBUpper:    upper[i],
			BBMiddle:   middle[i],
			BBLower:    lower[i],
		}
	}
	return out
}

// CalculateSMA calculates the Simple Moving Average over each trailing
// period of values.
func CalculateSMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period < 1 || len(values) < period {
		return out
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// CalculateEMA calculates the Exponential Moving Average, seeded with the
// SMA of the first period values.
func CalculateEMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period < 1 || len(values) < period {
		return out
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[period-1] = ema

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		out[i] = ema
	}
	return out
}

// CalculateMACD calculates the MACD line, its signal line and the
// histogram. The signal line is an EMA of the MACD line, seeded once
// enough MACD values exist.
func CalculateMACD(values []float64, fastPeriod, slowPeriod, signalPeriod int) (macd, signal, hist []float64) {
	n := len(values)
	macd, signal, hist = nanSlice(n), nanSlice(n), nanSlice(n)

	fast := CalculateEMA(values, fastPeriod)
	slow := CalculateEMA(values, slowPeriod)
	for i := 0; i < n; i++ {
		if !math.IsNaN(fast[i]) && !math.IsNaN(slow[i]) {
			macd[i] = fast[i] - slow[i]
		}
	}

	// First index with a defined MACD value.
	start := slowPeriod - 1
	if start >= n || start+signalPeriod > n {
		return macd, signal, hist
	}
	sub := CalculateEMA(macd[start:], signalPeriod)
	for i, v := range sub {
		signal[start+i] = v
	}
	for i := 0; i < n; i++ {
		if !math.IsNaN(macd[i]) && !math.IsNaN(signal[i]) {
			hist[i] = macd[i] - signal[i]
		}
	}
	return macd, signal, hist
}

// CalculateRSI calculates the Relative Strength Index with Wilder
// smoothing. A period with no losses reads 100.
func CalculateRSI(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period < 1 || len(values) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			// No movement at all leaves the index undefined.
			return math.NaN()
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// CalculateATR calculates the Average True Range with Wilder smoothing.
// True range uses the previous close, so the first smoothed value lands at
// index period.
func CalculateATR(bars []marketdata.Bar, period int) []float64 {
	out := nanSlice(len(bars))
	if period < 1 || len(bars) < period+1 {
		return out
	}

	var sum float64
	for i := 1; i <= period; i++ {
		sum += trueRange(bars[i], bars[i-1].Close)
	}
	atr := sum / float64(period)
	out[period] = atr

	for i := period + 1; i < len(bars); i++ {
		atr = (atr*float64(period-1) + trueRange(bars[i], bars[i-1].Close)) / float64(period)
		out[i] = atr
	}
	return out
}

func trueRange(b marketdata.Bar, prevClose float64) float64 {
	tr := b.High - b.Low
	if hc := math.Abs(b.High - prevClose); hc > tr {
		tr = hc
	}
	if lc := math.Abs(b.Low - prevClose); lc > tr {
		tr = lc
	}
	return tr
}

// CalculateBollinger calculates Bollinger Bands: an SMA middle band with
// upper and lower bands width standard deviations away.
func CalculateBollinger(values []float64, period int, width float64) (upper, middle, lower []float64) {
	n := len(values)
	upper, lower = nanSlice(n), nanSlice(n)
	middle = CalculateSMA(values, period)
	if period < 1 || n < period {
		return upper, middle, lower
	}

	for i := period - 1; i < n; i++ {
		windowStart := i - period + 1
		m := middle[i]
		var sum float64
		for j := windowStart; j <= i; j++ {
			d := values[j] - m
			sum += d * d
		}
		sd := math.Sqrt(sum / float64(period))
		upper[i] = m + width*sd
		lower[i] = m - width*sd
	}
	return upper, middle, lower
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
