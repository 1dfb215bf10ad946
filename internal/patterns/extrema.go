package patterns

import (
	"math"

	"stock-analytics-service/internal/marketdata"
)

// ExtremaMask flags which bars of a series are structural peaks or troughs.
// The slices align 1:1 with the input bars. A bar is never both.
type ExtremaMask struct {
	Peaks   []bool
	Troughs []bool
}

// prominenceFactor scales the series' price standard deviation into the
// minimum height an extremum must stand out from its surroundings.
// Filters noise-level wiggles without fixed absolute thresholds.
const prominenceFactor = 0.5

// FindExtrema locates local price extrema. A bar is a peak candidate when
// its high tops every neighbor within spacing bars on each side (earliest
// bar wins ties, so at most one peak survives per spacing-wide region), and
// its prominence reaches prominenceFactor times the standard deviation of
// all highs. Troughs apply the mirrored rule to lows. An empty series
// yields an empty mask.
func FindExtrema(bars []marketdata.Bar, spacing int) ExtremaMask {
	n := len(bars)
	mask := ExtremaMask{Peaks: make([]bool, n), Troughs: make([]bool, n)}
	if n == 0 {
		return mask
	}
	if spacing < 1 {
		spacing = 1
	}

	highs := marketdata.Highs(bars)
	lows := marketdata.Lows(bars)

	for _, i := range findPeaks(highs, spacing, prominenceFactor*stddev(highs)) {
		mask.Peaks[i] = true
	}

	negLows := make([]float64, n)
	for i, v := range lows {
		negLows[i] = -v
	}
	for _, i := range findPeaks(negLows, spacing, prominenceFactor*stddev(lows)) {
		if !mask.Peaks[i] {
			mask.Troughs[i] = true
		}
	}

	return mask
}

// findPeaks returns the indices of values that are local maxima with the
// given spacing and minimum prominence, in ascending order.
func findPeaks(values []float64, spacing int, minProminence float64) []int {
	var out []int
	for i := 1; i < len(values)-1; i++ {
		if !isLocalMax(values, i, spacing) {
			continue
		}
		if prominence(values, i) < minProminence {
			continue
		}
		out = append(out, i)
	}
	return out
}

func isLocalMax(values []float64, i, spacing int) bool {
	lo := i - spacing
	if lo < 0 {
		lo = 0
	}
	hi := i + spacing
	if hi > len(values)-1 {
		hi = len(values) - 1
	}
	for j := lo; j <= hi; j++ {
		if j == i {
			continue
		}
		if values[j] > values[i] {
			return false
		}
		// Equal heights resolve to the earliest bar.
		if values[j] == values[i] && j < i {
			return false
		}
	}
	return true
}

// prominence measures how far a peak rises above the higher of the two
// valley floors separating it from the nearest taller bars.
func prominence(values []float64, i int) float64 {
	left := values[i]
	for j := i - 1; j >= 0 && values[j] <= values[i]; j-- {
		if values[j] < left {
			left = values[j]
		}
	}
	right := values[i]
	for j := i + 1; j < len(values) && values[j] <= values[i]; j++ {
		if values[j] < right {
			right = values[j]
		}
	}
	base := left
	if right > base {
		base = right
	}
	return values[i] - base
}

// flaggedIndices returns the positions of set flags in ascending order.
func flaggedIndices(flags []bool) []int {
	var out []int
	for i, f := range flags {
		if f {
			out = append(out, i)
		}
	}
	return out
}

// stddev is the population standard deviation.
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
