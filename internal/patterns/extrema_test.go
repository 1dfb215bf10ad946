package patterns

import (
	"testing"
)

func TestFindExtremaIsolatedSpikes(t *testing.T) {
	closes := spikedCloses(30, 100, map[int]float64{10: 120, 20: 80})
	mask := FindExtrema(barsFromCloses(closes), 5)

	for i := 0; i < 30; i++ {
		if got, want := mask.Peaks[i], i == 10; got != want {
			t.Errorf("peak at bar %d = %v, want %v", i, got, want)
		}
		if got, want := mask.Troughs[i], i == 20; got != want {
			t.Errorf("trough at bar %d = %v, want %v", i, got, want)
		}
		if mask.Peaks[i] && mask.Troughs[i] {
			t.Errorf("bar %d flagged as both peak and trough", i)
		}
	}
}

func TestFindExtremaTieEarliestWins(t *testing.T) {
	closes := spikedCloses(30, 100, map[int]float64{10: 120, 13: 120})
	mask := FindExtrema(barsFromCloses(closes), 5)

	if !mask.Peaks[10] {
		t.Error("earliest of two equal spikes should be the peak")
	}
	if mask.Peaks[13] {
		t.Error("later equal spike within spacing should not be a peak")
	}
}

func TestFindExtremaProminenceFilter(t *testing.T) {
	// Two strong spikes and one noise-level bump between them. The bump is
	// a local maximum but too shallow against the series' variability.
	closes := spikedCloses(30, 100, map[int]float64{8: 120, 15: 102, 22: 120})
	mask := FindExtrema(barsFromCloses(closes), 5)

	if !mask.Peaks[8] || !mask.Peaks[22] {
		t.Error("strong spikes should be peaks")
	}
	if mask.Peaks[15] {
		t.Error("noise-level bump should be filtered by prominence")
	}
}

func TestFindExtremaPeakWinsOverTrough(t *testing.T) {
	bars := barsFromCloses(spikedCloses(30, 100, nil))
	bars[15].High = 130
	bars[15].Low = 70

	mask := FindExtrema(bars, 5)
	if !mask.Peaks[15] {
		t.Error("bar 15 should be a peak")
	}
	if mask.Troughs[15] {
		t.Error("a peak bar must never also be a trough")
	}
}

func TestFindExtremaFlatSeries(t *testing.T) {
	mask := FindExtrema(flatBars(30, 100), 5)
	for i := 0; i < 30; i++ {
		if mask.Peaks[i] || mask.Troughs[i] {
			t.Errorf("flat series flagged extremum at bar %d", i)
		}
	}
}

func TestFindExtremaDegenerateInput(t *testing.T) {
	mask := FindExtrema(nil, 5)
	if len(mask.Peaks) != 0 || len(mask.Troughs) != 0 {
		t.Error("empty series should yield an empty mask")
	}

	mask = FindExtrema(barsFromCloses([]float64{100, 110, 100}), 5)
	if len(mask.Peaks) != 3 {
		t.Fatalf("mask length = %d, want 3", len(mask.Peaks))
	}
}

func TestProminenceValleyFloor(t *testing.T) {
	// The middle peak is separated from its taller neighbors by shallow
	// valleys, so its prominence is measured against the higher valley
	// floor, not the global minimum.
	values := []float64{100, 140, 120, 130, 125, 150, 100}
	if got := prominence(values, 3); got != 5 {
		t.Errorf("prominence = %v, want 5", got)
	}
}

func TestStddev(t *testing.T) {
	if got := stddev([]float64{2, 2, 2, 2}); got != 0 {
		t.Errorf("stddev of constants = %v, want 0", got)
	}
	if got := stddev([]float64{2, 4, 4, 4, 5, 5, 7, 9}); got != 2 {
		t.Errorf("stddev = %v, want 2", got)
	}
	if got := stddev(nil); got != 0 {
		t.Errorf("stddev of empty input = %v, want 0", got)
	}
}
