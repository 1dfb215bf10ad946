package patterns

import (
	"fmt"
	"math"

	"stock-analytics-service/internal/marketdata"
)

const (
	// extremaSpacing is the minimum bar distance between structural extrema
	// used for detection.
	extremaSpacing = 5
	// minSeriesLen is the floor below which a series produces no detections
	// and no events.
	minSeriesLen = 40
)

// window is the trailing slice of bars, with aligned extrema flags, that a
// classifier examines to decide on detection at the current bar. The
// current bar itself is excluded.
type window struct {
	bars    []marketdata.Bar
	peaks   []bool
	troughs []bool
}

func (w window) highs() []float64  { return marketdata.Highs(w.bars) }
func (w window) lows() []float64   { return marketdata.Lows(w.bars) }
func (w window) closes() []float64 { return marketdata.Closes(w.bars) }

// Descriptor binds one pattern type to its lookback, classifier and
// geometry builder. The registry below is the single source of truth for
// every supported pattern; detection, event building and geometry all
// iterate it.
type Descriptor struct {
	Type     PatternType
	Lookback int
	classify func(w window) bool
	geometry func(bars []marketdata.Bar) PatternGeometry
}

var descriptors = []Descriptor{
	{HeadAndShoulders, 60, classifyHeadAndShoulders, headAndShouldersGeometry},
	{BullishRectangle, 40, classifyBullishRectangle, rectangleGeometry},
	{BearishRectangle, 40, classifyBearishRectangle, rectangleGeometry},
	{TripleTop, 60, classifyTripleTop, extremaLineGeometry(3, true, "Triple Top")},
	{TripleBottom, 60, classifyTripleBottom, extremaLineGeometry(3, false, "Triple Bottom")},
	{DoubleTop, 50, classifyDoubleTop, extremaLineGeometry(2, true, "Double Top")},
	{DoubleBottom, 50, classifyDoubleBottom, extremaLineGeometry(2, false, "Double Bottom")},
	{AscendingChannel, 40, classifyAscendingChannel, channelGeometry},
	{DescendingChannel, 40, classifyDescendingChannel, channelGeometry},
	{AscendingTriangle, 40, classifyAscendingTriangle, triangleGeometry(true)},
	{DescendingTriangle, 40, classifyDescendingTriangle, triangleGeometry(false)},
	{BullFlag, 30, classifyBullFlag, flagGeometry(true)},
	{BearFlag, 30, classifyBearFlag, flagGeometry(false)},
}

// Types lists every supported pattern type in registry order.
func Types() []PatternType {
	out := make([]PatternType, len(descriptors))
	for i, d := range descriptors {
		out[i] = d.Type
	}
	return out
}

// Lookback returns the trailing window length of a pattern type, or 0 for
// an unknown type.
func Lookback(pt PatternType) int {
	if d, ok := descriptorFor(pt); ok {
		return d.Lookback
	}
	return 0
}

func descriptorFor(pt PatternType) (Descriptor, bool) {
	for _, d := range descriptors {
		if d.Type == pt {
			return d, true
		}
	}
	return Descriptor{}, false
}

// ValidateSeries checks the caller contract: finite positive prices,
// high >= low, non-negative volume, and strictly increasing timestamps.
func ValidateSeries(bars []marketdata.Bar) error {
	for i, b := range bars {
		if !validPrice(b.Open) || !validPrice(b.High) || !validPrice(b.Low) || !validPrice(b.Close) ||
			b.High < b.Low || b.Volume < 0 || math.IsNaN(b.Volume) || b.Date.IsZero() {
			return fmt.Errorf("bar %d: %w", i, ErrMalformedBar)
		}
		if i > 0 && !b.Date.After(bars[i-1].Date) {
			return fmt.Errorf("bar %d (%s): %w", i, b.Date.Format("2006-01-02"), ErrUnordered)
		}
	}
	return nil
}

func validPrice(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// Detect runs every registered classifier over the series and returns the
// per-bar detection matrix. The engine is pure: identical input always
// yields an identical matrix.
//
// Malformed input fails fast. A series shorter than minSeriesLen returns an
// all-zero matrix. Any unexpected failure inside the classifier stage is
// recovered and surfaced as a *ComputeError so a batch caller can fall back
// to zero detections for this series without losing the rest of its work.
func Detect(bars []marketdata.Bar) (matrix *DetectionMatrix, err error) {
	if err := ValidateSeries(bars); err != nil {
		return nil, err
	}

	matrix = NewDetectionMatrix(len(bars))
	if len(bars) < minSeriesLen {
		return matrix, nil
	}

	defer func() {
		if r := recover(); r != nil {
			matrix = nil
			err = &ComputeError{Stage: "classify", Cause: fmt.Errorf("%v", r)}
		}
	}()

	mask := FindExtrema(bars, extremaSpacing)
	for _, d := range descriptors {
		if len(bars) < d.Lookback {
			continue
		}
		signal := matrix.Signals[d.Type]
		for i := d.Lookback; i < len(bars); i++ {
			w := window{
				bars:    bars[i-d.Lookback : i],
				peaks:   mask.Peaks[i-d.Lookback : i],
				troughs: mask.Troughs[i-d.Lookback : i],
			}
			signal[i] = d.classify(w)
		}
	}

	return matrix, nil
}

// BuildEvents reduces a detection matrix into persistable events: one event
// per flagged bar, ending at that bar and starting the pattern's lookback
// earlier (clamped to the series start). Consecutive flagged bars yield one
// event each; the stable event ID makes re-runs idempotent at the store.
func BuildEvents(matrix *DetectionMatrix, bars []marketdata.Bar, symbol string) []PatternEvent {
	if matrix == nil || len(bars) < minSeriesLen {
		return nil
	}

	var events []PatternEvent
	for _, d := range descriptors {
		signal := matrix.Signals[d.Type]
		for i, hit := range signal {
			if !hit {
				continue
			}
			startIdx := i - d.Lookback
			if startIdx < 0 {
				startIdx = 0
			}
			end := bars[i].Date
			events = append(events, PatternEvent{
				ID:         EventID(symbol, d.Type, end),
				Symbol:     symbol,
				Type:       d.Type,
				StartTime:  bars[startIdx].Date,
				EndTime:    end,
				Confidence: eventConfidence,
			})
		}
	}
	return events
}
