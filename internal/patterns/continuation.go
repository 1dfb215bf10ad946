package patterns

import "math"

// Continuation and consolidation patterns: rectangles, channels, triangles
// and flags. These run purely on the window's price action and need no
// precomputed extrema.
const (
	// Bars within 2% of the window extreme count as touching the level.
	touchTolerance = 0.02
	// Channel trend lines must agree within 30% of the high-line slope.
	channelSlopeRatio = 0.3
	// Triangle slopes are normalized by the window's mean close, so "flat"
	// means under 1% of price per bar at any price level.
	triangleFlatSlope = 0.01
	// A flag's pole half must move at least 5%.
	poleTrendMin = 0.05
	// The flag half may retrace up to 5% against the pole...
	flagRetraceLimit = 0.05
	// ...or drift up to 2% with it.
	flagDriftLimit = 0.02
)

func classifyBullishRectangle(w window) bool {
	bullish, _ := rectangleSignal(w)
	return bullish
}

func classifyBearishRectangle(w window) bool {
	_, bearish := rectangleSignal(w)
	return bearish
}

// rectangleSignal checks for price oscillating between a horizontal support
// and resistance. Direction comes from where the last close sits relative
// to the window midpoint.
func rectangleSignal(w window) (bullish, bearish bool) {
	highs := w.highs()
	lows := w.lows()

	resistance := maxOf(highs)
	support := minOf(lows)
	if resistance <= support {
		// Degenerate window (e.g. all prices identical) has no levels.
		return false, false
	}

	resTouches, supTouches := 0, 0
	firstRes, lastRes, firstSup, lastSup := -1, -1, -1, -1
	for j := range highs {
		if highs[j] >= resistance*(1-touchTolerance) {
			if firstRes < 0 {
				firstRes = j
			}
			lastRes = j
			resTouches++
		}
		if lows[j] <= support*(1+touchTolerance) {
			if firstSup < 0 {
				firstSup = j
			}
			lastSup = j
			supTouches++
		}
	}
	if resTouches < 2 || supTouches < 2 {
		return false, false
	}

	// Touches must interleave. A monotone trend piles its resistance
	// touches at one end of the window and its support touches at the
	// other, which is not a rectangle.
	if firstRes > lastSup || firstSup > lastRes {
		return false, false
	}

	lastClose := w.bars[len(w.bars)-1].Close
	if lastClose > (support+resistance)/2 {
		return true, false
	}
	return false, true
}

func classifyAscendingChannel(w window) bool {
	highSlope, lowSlope, ok := channelSlopes(w)
	if !ok || highSlope <= 0 || lowSlope <= 0 {
		return false
	}
	return math.Abs(highSlope-lowSlope)/math.Abs(highSlope) < channelSlopeRatio
}

func classifyDescendingChannel(w window) bool {
	highSlope, lowSlope, ok := channelSlopes(w)
	if !ok || highSlope >= 0 || lowSlope >= 0 {
		return false
	}
	return math.Abs(highSlope-lowSlope)/math.Abs(highSlope) < channelSlopeRatio
}

func channelSlopes(w window) (highSlope, lowSlope float64, ok bool) {
	highSlope, _, hok := fitLine(w.highs())
	lowSlope, _, lok := fitLine(w.lows())
	return highSlope, lowSlope, hok && lok
}

func classifyAscendingTriangle(w window) bool {
	highSlope, lowSlope, ok := triangleSlopes(w)
	// Flat resistance, rising support.
	return ok && math.Abs(highSlope) < triangleFlatSlope && lowSlope > triangleFlatSlope
}

func classifyDescendingTriangle(w window) bool {
	highSlope, lowSlope, ok := triangleSlopes(w)
	// Falling resistance, flat support.
	return ok && highSlope < -triangleFlatSlope && math.Abs(lowSlope) < triangleFlatSlope
}

// triangleSlopes fits both trend lines and normalizes the slopes by the
// window's mean close.
func triangleSlopes(w window) (highSlope, lowSlope float64, ok bool) {
	hs, _, hok := fitLine(w.highs())
	ls, _, lok := fitLine(w.lows())
	m := mean(w.closes())
	if !hok || !lok || m <= 0 {
		return 0, 0, false
	}
	return hs / m, ls / m, true
}

func classifyBullFlag(w window) bool {
	poleTrend, flagTrend, ok := flagTrends(w)
	// Strong move up, then slight pullback or sideways drift.
	return ok && poleTrend > poleTrendMin &&
		flagTrend > -flagRetraceLimit && flagTrend < flagDriftLimit
}

func classifyBearFlag(w window) bool {
	poleTrend, flagTrend, ok := flagTrends(w)
	// Strong move down, then slight rebound or sideways drift.
	return ok && poleTrend < -poleTrendMin &&
		flagTrend > -flagDriftLimit && flagTrend < flagRetraceLimit
}

// flagTrends splits the window into a pole half and a flag half and
// measures the relative close change over each.
func flagTrends(w window) (poleTrend, flagTrend float64, ok bool) {
	half := len(w.bars) / 2
	if half < 2 || len(w.bars)-half < 2 {
		return 0, 0, false
	}

	poleStart := w.bars[0].Close
	poleEnd := w.bars[half-1].Close
	flagStart := w.bars[half].Close
	flagEnd := w.bars[len(w.bars)-1].Close
	if poleStart <= 0 || flagStart <= 0 {
		return 0, 0, false
	}

	return (poleEnd - poleStart) / poleStart, (flagEnd - flagStart) / flagStart, true
}
