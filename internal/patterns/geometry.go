package patterns

import (
	"fmt"
	"time"

	"stock-analytics-service/internal/marketdata"
)

// geometrySpacing is the extrema spacing used when re-deriving turning
// points inside one pattern's bar window. Tighter than detection so the
// drawn lines land on the visible swings.
const geometrySpacing = 3

// Point is one x/y coordinate of a geometry line.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Line is a labeled segment or polyline describing part of a pattern.
type Line struct {
	Label  string  `json:"label"`
	Points []Point `json:"points"`
}

// KeyPoint is a labeled single coordinate, e.g. the head of a
// head-and-shoulders formation.
type KeyPoint struct {
	Label string    `json:"label"`
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// PatternGeometry describes why a pattern was flagged: the trend lines,
// levels and necklines a chart overlay would draw. It is derived on demand
// for presentation only and never feeds back into detection.
type PatternGeometry struct {
	Lines     []Line     `json:"lines"`
	KeyPoints []KeyPoint `json:"key_points,omitempty"`
}

// ExtractGeometry derives the labeled geometry for one detected pattern
// from the bars spanning it. Identical inputs always reproduce identical
// geometry. An empty window yields empty geometry.
func ExtractGeometry(bars []marketdata.Bar, pt PatternType) (PatternGeometry, error) {
	d, ok := descriptorFor(pt)
	if !ok {
		return PatternGeometry{}, fmt.Errorf("%s: %w", pt, ErrUnknownPattern)
	}
	if len(bars) == 0 {
		return PatternGeometry{}, nil
	}
	return d.geometry(bars), nil
}

// EventWindow slices the bars a pattern event spans: the lookback bars
// ending at and including the bar at endIdx, clamped to the series start.
func EventWindow(bars []marketdata.Bar, pt PatternType, endIdx int) []marketdata.Bar {
	lookback := Lookback(pt)
	if lookback == 0 || endIdx < 0 || endIdx >= len(bars) {
		return nil
	}
	start := endIdx + 1 - lookback
	if start < 0 {
		start = 0
	}
	return bars[start : endIdx+1]
}

func headAndShouldersGeometry(bars []marketdata.Bar) PatternGeometry {
	var g PatternGeometry

	mask := FindExtrema(bars, geometrySpacing)
	peaks := flaggedIndices(mask.Peaks)
	troughs := flaggedIndices(mask.Troughs)
	if len(peaks) < 3 {
		return g
	}

	prices := make([]float64, len(peaks))
	for i, p := range peaks {
		prices[i] = bars[p].High
	}
	head := argMax(prices)
	if head == 0 || head == len(peaks)-1 {
		return g
	}

	ls, h, rs := peaks[head-1], peaks[head], peaks[head+1]
	g.Lines = append(g.Lines, Line{
		Label: "Head & Shoulders",
		Points: []Point{
			{bars[ls].Date, bars[ls].High},
			{bars[h].Date, bars[h].High},
			{bars[rs].Date, bars[rs].High},
		},
	})
	g.KeyPoints = append(g.KeyPoints,
		KeyPoint{"Left Shoulder", bars[ls].Date, bars[ls].High},
		KeyPoint{"Head", bars[h].Date, bars[h].High},
		KeyPoint{"Right Shoulder", bars[rs].Date, bars[rs].High},
	)

	// Neckline through the troughs bracketing the head.
	var neck []int
	for _, t := range troughs {
		if t > ls && t < rs {
			neck = append(neck, t)
		}
	}
	if len(neck) >= 2 {
		first, last := neck[0], neck[len(neck)-1]
		g.Lines = append(g.Lines, Line{
			Label: "Neckline",
			Points: []Point{
				{bars[first].Date, bars[first].Low},
				{bars[last].Date, bars[last].Low},
			},
		})
	}

	return g
}

// extremaLineGeometry draws a line through the latest count peaks (tops) or
// troughs (bottoms) of the window.
func extremaLineGeometry(count int, usePeaks bool, label string) func([]marketdata.Bar) PatternGeometry {
	return func(bars []marketdata.Bar) PatternGeometry {
		var g PatternGeometry

		mask := FindExtrema(bars, geometrySpacing)
		flags := mask.Troughs
		if usePeaks {
			flags = mask.Peaks
		}
		idx := flaggedIndices(flags)
		if len(idx) < 2 {
			return g
		}
		if len(idx) > count {
			idx = idx[len(idx)-count:]
		}

		points := make([]Point, len(idx))
		for i, p := range idx {
			if usePeaks {
				points[i] = Point{bars[p].Date, bars[p].High}
			} else {
				points[i] = Point{bars[p].Date, bars[p].Low}
			}
		}
		g.Lines = append(g.Lines, Line{Label: label, Points: points})
		return g
	}
}

func rectangleGeometry(bars []marketdata.Bar) PatternGeometry {
	var g PatternGeometry

	resistance := maxOf(marketdata.Highs(bars))
	support := minOf(marketdata.Lows(bars))
	start, end := bars[0].Date, bars[len(bars)-1].Date

	g.Lines = append(g.Lines,
		Line{Label: "Resistance", Points: []Point{{start, resistance}, {end, resistance}}},
		Line{Label: "Support", Points: []Point{{start, support}, {end, support}}},
	)
	return g
}

// triangleGeometry draws a flat level on the converging side and a fitted
// trend line on the other.
func triangleGeometry(ascending bool) func([]marketdata.Bar) PatternGeometry {
	return func(bars []marketdata.Bar) PatternGeometry {
		var g PatternGeometry

		start, end := bars[0].Date, bars[len(bars)-1].Date
		highs := marketdata.Highs(bars)
		lows := marketdata.Lows(bars)

		if ascending {
			// Flat resistance, rising support.
			resistance := mean(highs)
			g.Lines = append(g.Lines, Line{
				Label:  "Resistance",
				Points: []Point{{start, resistance}, {end, resistance}},
			})
			if slope, intercept, ok := fitLine(lows); ok {
				g.Lines = append(g.Lines, Line{
					Label: "Support",
					Points: []Point{
						{start, intercept},
						{end, slope*float64(len(bars)-1) + intercept},
					},
				})
			}
			return g
		}

		// Falling resistance, flat support.
		if slope, intercept, ok := fitLine(highs); ok {
			g.Lines = append(g.Lines, Line{
				Label: "Resistance",
				Points: []Point{
					{start, intercept},
					{end, slope*float64(len(bars)-1) + intercept},
				},
			})
		}
		support := mean(lows)
		g.Lines = append(g.Lines, Line{
			Label:  "Support",
			Points: []Point{{start, support}, {end, support}},
		})
		return g
	}
}

func channelGeometry(bars []marketdata.Bar) PatternGeometry {
	var g PatternGeometry

	start, end := bars[0].Date, bars[len(bars)-1].Date
	last := float64(len(bars) - 1)

	if slope, intercept, ok := fitLine(marketdata.Highs(bars)); ok {
		g.Lines = append(g.Lines, Line{
			Label:  "Upper Channel",
			Points: []Point{{start, intercept}, {end, slope*last + intercept}},
		})
	}
	if slope, intercept, ok := fitLine(marketdata.Lows(bars)); ok {
		g.Lines = append(g.Lines, Line{
			Label:  "Lower Channel",
			Points: []Point{{start, intercept}, {end, slope*last + intercept}},
		})
	}
	return g
}

// flagGeometry draws the pole as a close-to-close segment over the first
// half and fits the consolidation line over the second half, using lows for
// bull flags and highs for bear flags.
func flagGeometry(bull bool) func([]marketdata.Bar) PatternGeometry {
	return func(bars []marketdata.Bar) PatternGeometry {
		var g PatternGeometry

		mid := len(bars) / 2
		if mid < 1 {
			return g
		}
		pole := bars[:mid]
		flag := bars[mid:]

		g.Lines = append(g.Lines, Line{
			Label: "Pole",
			Points: []Point{
				{pole[0].Date, pole[0].Close},
				{pole[len(pole)-1].Date, pole[len(pole)-1].Close},
			},
		})

		if len(flag) > 1 {
			values := marketdata.Highs(flag)
			if bull {
				values = marketdata.Lows(flag)
			}
			if slope, intercept, ok := fitLine(values); ok {
				g.Lines = append(g.Lines, Line{
					Label: "Flag",
					Points: []Point{
						{flag[0].Date, intercept},
						{flag[len(flag)-1].Date, slope*float64(len(flag)-1) + intercept},
					},
				})
			}
		}
		return g
	}
}
