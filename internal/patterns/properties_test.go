package patterns

import (
	"math"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"stock-analytics-service/internal/marketdata"
)

// walkBars turns a slice of price steps into a random-walk daily series
// starting at 100, floored so prices stay positive.
func walkBars(steps []float64) []marketdata.Bar {
	closes := make([]float64, len(steps))
	price := 100.0
	for i, step := range steps {
		price += step
		if price < 5 {
			price = 5
		}
		closes[i] = price
	}
	return barsFromCloses(closes)
}

func genWalkBars() gopter.Gen {
	return gen.SliceOf(gen.Float64Range(-3, 3)).Map(walkBars)
}

func TestPropertyDetectionDeterminism(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("identical input yields identical signals", prop.ForAll(
		func(bars []marketdata.Bar) bool {
			first, err1 := Detect(bars)
			second, err2 := Detect(bars)
			if err1 != nil || err2 != nil {
				return false
			}
			return reflect.DeepEqual(first.Signals, second.Signals)
		},
		genWalkBars(),
	))

	properties.TestingRun(t)
}

func TestPropertyScaleInvariance(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Power-of-two factors keep the arithmetic exact, so the signals must
	// match bit for bit at any price level.
	properties.Property("signals are unchanged under price scaling", prop.ForAll(
		func(bars []marketdata.Bar, exp int) bool {
			k := math.Ldexp(1, exp)
			scaled := make([]marketdata.Bar, len(bars))
			for i, b := range bars {
				scaled[i] = b
				scaled[i].Open *= k
				scaled[i].High *= k
				scaled[i].Low *= k
				scaled[i].Close *= k
			}

			base, err1 := Detect(bars)
			got, err2 := Detect(scaled)
			if err1 != nil || err2 != nil {
				return false
			}
			return reflect.DeepEqual(base.Signals, got.Signals)
		},
		genWalkBars(),
		gen.IntRange(-6, 8),
	))

	properties.TestingRun(t)
}

func TestPropertyTruncationInvariance(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Window-local classifiers look only at their trailing bars, so cutting
	// the future off a series cannot change past signals.
	local := []PatternType{
		BullishRectangle, BearishRectangle,
		AscendingChannel, DescendingChannel,
		AscendingTriangle, DescendingTriangle,
		BullFlag, BearFlag,
	}

	properties.Property("dropping future bars keeps past signals", prop.ForAll(
		func(bars []marketdata.Bar, cut int) bool {
			if len(bars) <= minSeriesLen {
				return true
			}
			if cut < minSeriesLen {
				cut = minSeriesLen
			}
			if cut > len(bars) {
				cut = len(bars)
			}

			full, err1 := Detect(bars)
			short, err2 := Detect(bars[:cut])
			if err1 != nil || err2 != nil {
				return false
			}
			for _, pt := range local {
				if !reflect.DeepEqual(full.Signals[pt][:cut], short.Signals[pt]) {
					return false
				}
			}
			return true
		},
		genWalkBars(),
		gen.IntRange(minSeriesLen, 150),
	))

	properties.TestingRun(t)
}

func TestPropertyEventsMatchMatrix(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every event maps back to a flagged bar", prop.ForAll(
		func(bars []marketdata.Bar) bool {
			matrix, err := Detect(bars)
			if err != nil {
				return false
			}
			events := BuildEvents(matrix, bars, "TEST")

			flagged := 0
			for _, signal := range matrix.Signals {
				for _, hit := range signal {
					if hit {
						flagged++
					}
				}
			}
			if len(events) != flagged {
				return false
			}

			byTime := make(map[PatternType]map[int64]bool)
			for i, b := range bars {
				for pt, signal := range matrix.Signals {
					if signal[i] {
						if byTime[pt] == nil {
							byTime[pt] = make(map[int64]bool)
						}
						byTime[pt][b.Date.Unix()] = true
					}
				}
			}
			for _, ev := range events {
				if !byTime[ev.Type][ev.EndTime.Unix()] {
					return false
				}
				if ev.Confidence != 1.0 || ev.ID != EventID("TEST", ev.Type, ev.EndTime) {
					return false
				}
				if !ev.StartTime.Before(ev.EndTime) {
					return false
				}
			}
			return true
		},
		genWalkBars(),
	))

	properties.TestingRun(t)
}
