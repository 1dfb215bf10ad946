package patterns

import "math"

// Reversal patterns: head and shoulders plus double/triple tops and
// bottoms. All tolerances are fractions of a reference price, so the rules
// behave the same across tickers and price levels.
const (
	// A head must top each shoulder by at least 2%.
	headMargin = 1.02
	// Shoulders must sit within 5% of the left shoulder's price.
	shoulderTolerance = 0.05
	// The latest two peaks (troughs) of a double top (bottom) must differ
	// by less than 2% of the higher one.
	doubleTolerance = 0.02
	// The latest three extrema of a triple top/bottom may spread by less
	// than 3% of the highest.
	tripleTolerance = 0.03
)

func classifyHeadAndShoulders(w window) bool {
	peakIdx := flaggedIndices(w.peaks)
	if len(peakIdx) < 3 {
		return false
	}

	prices := make([]float64, len(peakIdx))
	for i, p := range peakIdx {
		prices[i] = w.bars[p].High
	}

	head := argMax(prices)
	if head == 0 || head == len(prices)-1 {
		// The highest peak must sit between two shoulders in time order.
		return false
	}

	left := prices[head-1]
	right := prices[head+1]
	return prices[head] > left*headMargin &&
		prices[head] > right*headMargin &&
		math.Abs(left-right)/left < shoulderTolerance
}

func classifyDoubleTop(w window) bool {
	return extremaCluster(w, true, 2, doubleTolerance)
}

func classifyDoubleBottom(w window) bool {
	return extremaCluster(w, false, 2, doubleTolerance)
}

func classifyTripleTop(w window) bool {
	return extremaCluster(w, true, 3, tripleTolerance)
}

func classifyTripleBottom(w window) bool {
	return extremaCluster(w, false, 3, tripleTolerance)
}

// extremaCluster reports whether the latest count extrema of the window sit
// within tolerance of each other, relative to the highest of them.
func extremaCluster(w window, usePeaks bool, count int, tolerance float64) bool {
	flags := w.troughs
	if usePeaks {
		flags = w.peaks
	}
	idx := flaggedIndices(flags)
	if len(idx) < count {
		return false
	}
	idx = idx[len(idx)-count:]

	prices := make([]float64, count)
	for i, p := range idx {
		if usePeaks {
			prices[i] = w.bars[p].High
		} else {
			prices[i] = w.bars[p].Low
		}
	}

	highest := maxOf(prices)
	if highest <= 0 {
		return false
	}
	return (highest-minOf(prices))/highest < tolerance
}
