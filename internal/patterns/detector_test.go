package patterns

import (
	"errors"
	"math"
	"testing"
	"time"

	"stock-analytics-service/internal/marketdata"
)

var testEpoch = time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)

// barsFromCloses builds a daily series where each bar's high and low sit
// one unit around the close.
func barsFromCloses(closes []float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, len(closes))
	for i, c := range closes {
		bars[i] = marketdata.Bar{
			Date:   testEpoch.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

// flatBars builds a series where every price field of every bar is price.
func flatBars(n int, price float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, n)
	for i := range bars {
		bars[i] = marketdata.Bar{
			Date:   testEpoch.AddDate(0, 0, i),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 1000,
		}
	}
	return bars
}

func rampCloses(n int, start, step float64) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start + float64(i)*step
	}
	return closes
}

// spikedCloses returns n flat closes at base with the given overrides.
func spikedCloses(n int, base float64, spikes map[int]float64) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = base
	}
	for i, v := range spikes {
		closes[i] = v
	}
	return closes
}

// windowOver wraps a full slice of bars as one classifier window with its
// detection-grade extrema mask.
func windowOver(bars []marketdata.Bar) window {
	mask := FindExtrema(bars, extremaSpacing)
	return window{bars: bars, peaks: mask.Peaks, troughs: mask.Troughs}
}

func TestDetectFlatSeries(t *testing.T) {
	matrix, err := Detect(flatBars(60, 100))
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	for pt, signal := range matrix.Signals {
		for i, hit := range signal {
			if hit {
				t.Errorf("flat series flagged %s at bar %d", pt, i)
			}
		}
	}
}

func TestDetectShortSeries(t *testing.T) {
	matrix, err := Detect(barsFromCloses(rampCloses(39, 100, 1)))
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if matrix.Length != 39 {
		t.Errorf("matrix length = %d, want 39", matrix.Length)
	}
	for pt, signal := range matrix.Signals {
		for i, hit := range signal {
			if hit {
				t.Errorf("short series flagged %s at bar %d", pt, i)
			}
		}
	}
}

func TestDetectLinearRamp(t *testing.T) {
	matrix, err := Detect(barsFromCloses(rampCloses(45, 100, 1)))
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}

	for i := 0; i < 45; i++ {
		got := matrix.Detected(AscendingChannel, i)
		want := i >= Lookback(AscendingChannel)
		if got != want {
			t.Errorf("ascending channel at bar %d = %v, want %v", i, got, want)
		}
	}

	// A monotone trend is not a consolidation.
	for _, pt := range []PatternType{
		BullishRectangle, BearishRectangle, DoubleTop, DoubleBottom,
		AscendingTriangle, DescendingTriangle, BullFlag, DescendingChannel,
	} {
		for i, hit := range matrix.Signals[pt] {
			if hit {
				t.Errorf("linear ramp flagged %s at bar %d", pt, i)
			}
		}
	}
}

func TestDetectHeadAndShoulders(t *testing.T) {
	closes := spikedCloses(70, 100, map[int]float64{10: 110, 30: 130, 50: 111})
	matrix, err := Detect(barsFromCloses(closes))
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}

	for i := 0; i < 70; i++ {
		got := matrix.Detected(HeadAndShoulders, i)
		want := i >= 60
		if got != want {
			t.Errorf("head and shoulders at bar %d = %v, want %v", i, got, want)
		}
	}

	// The three peaks are far too spread out for top clusters.
	for _, pt := range []PatternType{DoubleTop, TripleTop} {
		for i, hit := range matrix.Signals[pt] {
			if hit {
				t.Errorf("%s flagged at bar %d", pt, i)
			}
		}
	}
}

func TestDetectDoubleTop(t *testing.T) {
	closes := spikedCloses(55, 100, map[int]float64{20: 120, 40: 119})
	matrix, err := Detect(barsFromCloses(closes))
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}

	for i := 0; i < 55; i++ {
		got := matrix.Detected(DoubleTop, i)
		want := i >= 50
		if got != want {
			t.Errorf("double top at bar %d = %v, want %v", i, got, want)
		}
	}
	for i, hit := range matrix.Signals[HeadAndShoulders] {
		if hit {
			t.Errorf("head and shoulders flagged at bar %d with only two peaks", i)
		}
	}
}

func TestDetectRejectsUnordered(t *testing.T) {
	bars := barsFromCloses(rampCloses(45, 100, 1))
	bars[20].Date = bars[19].Date

	matrix, err := Detect(bars)
	if !errors.Is(err, ErrUnordered) {
		t.Fatalf("err = %v, want ErrUnordered", err)
	}
	if matrix != nil {
		t.Error("expected nil matrix for unordered input")
	}
}

func TestDetectRejectsMalformedBars(t *testing.T) {
	cases := map[string]func(b *marketdata.Bar){
		"nan close":      func(b *marketdata.Bar) { b.Close = math.NaN() },
		"negative price": func(b *marketdata.Bar) { b.Low = -5 },
		"zero open":      func(b *marketdata.Bar) { b.Open = 0 },
		"inf high":       func(b *marketdata.Bar) { b.High = math.Inf(1) },
		"high below low": func(b *marketdata.Bar) { b.High = b.Low - 1 },
		"nan volume":     func(b *marketdata.Bar) { b.Volume = math.NaN() },
		"zero date":      func(b *marketdata.Bar) { b.Date = time.Time{} },
	}

	for name, corrupt := range cases {
		bars := barsFromCloses(rampCloses(45, 100, 1))
		corrupt(&bars[17])
		if _, err := Detect(bars); !errors.Is(err, ErrMalformedBar) {
			t.Errorf("%s: err = %v, want ErrMalformedBar", name, err)
		}
	}
}

func TestBuildEvents(t *testing.T) {
	closes := spikedCloses(55, 100, map[int]float64{20: 120, 40: 119})
	bars := barsFromCloses(closes)
	matrix, err := Detect(bars)
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}

	events := BuildEvents(matrix, bars, "AAPL")
	seen := make(map[string]bool)
	var doubleTops []PatternEvent
	for _, ev := range events {
		if ev.Symbol != "AAPL" {
			t.Errorf("event symbol = %q, want AAPL", ev.Symbol)
		}
		if ev.Confidence != 1.0 {
			t.Errorf("event confidence = %v, want 1.0", ev.Confidence)
		}
		if ev.ID != EventID("AAPL", ev.Type, ev.EndTime) {
			t.Errorf("event id = %q, mismatches its fields", ev.ID)
		}
		if seen[ev.ID] {
			t.Errorf("duplicate event id %q", ev.ID)
		}
		seen[ev.ID] = true
		if ev.Type == DoubleTop {
			doubleTops = append(doubleTops, ev)
		}
	}

	// One event per flagged bar, bars 50 through 54.
	if len(doubleTops) != 5 {
		t.Fatalf("got %d double top events, want 5", len(doubleTops))
	}
	for i, ev := range doubleTops {
		endIdx := 50 + i
		if !ev.EndTime.Equal(bars[endIdx].Date) {
			t.Errorf("event %d: end time = %s, want %s", i, ev.EndTime, bars[endIdx].Date)
		}
		if !ev.StartTime.Equal(bars[endIdx-50].Date) {
			t.Errorf("event %d: start time = %s, want %s", i, ev.StartTime, bars[endIdx-50].Date)
		}
	}
}

func TestBuildEventsEmptyInput(t *testing.T) {
	if events := BuildEvents(nil, barsFromCloses(rampCloses(45, 100, 1)), "AAPL"); events != nil {
		t.Errorf("nil matrix produced %d events", len(events))
	}

	bars := barsFromCloses(rampCloses(30, 100, 1))
	if events := BuildEvents(NewDetectionMatrix(30), bars, "AAPL"); events != nil {
		t.Errorf("short series produced %d events", len(events))
	}
}

func TestTypesAndLookbacks(t *testing.T) {
	types := Types()
	if len(types) != 13 {
		t.Fatalf("got %d pattern types, want 13", len(types))
	}
	if types[0] != HeadAndShoulders {
		t.Errorf("first type = %s, want %s", types[0], HeadAndShoulders)
	}

	want := map[PatternType]int{
		HeadAndShoulders:   60,
		BullishRectangle:   40,
		BearishRectangle:   40,
		TripleTop:          60,
		TripleBottom:       60,
		DoubleTop:          50,
		DoubleBottom:       50,
		AscendingChannel:   40,
		DescendingChannel:  40,
		AscendingTriangle:  40,
		DescendingTriangle: 40,
		BullFlag:           30,
		BearFlag:           30,
	}
	for pt, lb := range want {
		if got := Lookback(pt); got != lb {
			t.Errorf("Lookback(%s) = %d, want %d", pt, got, lb)
		}
	}
	if got := Lookback(PatternType("cup_and_handle")); got != 0 {
		t.Errorf("Lookback of unknown type = %d, want 0", got)
	}
}

func TestEventID(t *testing.T) {
	end := time.Date(2024, time.March, 15, 23, 59, 59, 0, time.UTC)
	got := EventID("MSFT", BullFlag, end)
	want := "MSFT_bull_flag_2024-03-15T23:59:59Z"
	if got != want {
		t.Errorf("EventID = %q, want %q", got, want)
	}
}
