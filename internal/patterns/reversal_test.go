package patterns

import (
	"testing"
)

func TestClassifyHeadAndShoulders(t *testing.T) {
	cases := map[string]struct {
		spikes map[int]float64
		want   bool
	}{
		"valid formation": {
			spikes: map[int]float64{10: 110, 30: 130, 50: 111},
			want:   true,
		},
		"shoulders too uneven": {
			spikes: map[int]float64{10: 110, 30: 130, 50: 120},
			want:   false,
		},
		"head not tall enough": {
			spikes: map[int]float64{10: 110, 30: 111, 50: 110},
			want:   false,
		},
		"head first in time": {
			spikes: map[int]float64{10: 130, 30: 110, 50: 111},
			want:   false,
		},
		"only two peaks": {
			spikes: map[int]float64{10: 110, 30: 130},
			want:   false,
		},
	}

	for name, tc := range cases {
		w := windowOver(barsFromCloses(spikedCloses(60, 100, tc.spikes)))
		if got := classifyHeadAndShoulders(w); got != tc.want {
			t.Errorf("%s: classifyHeadAndShoulders = %v, want %v", name, got, tc.want)
		}
	}
}

func TestClassifyDoubleTop(t *testing.T) {
	w := windowOver(barsFromCloses(spikedCloses(50, 100, map[int]float64{20: 120, 40: 119})))
	if !classifyDoubleTop(w) {
		t.Error("peaks within 2% should form a double top")
	}

	w = windowOver(barsFromCloses(spikedCloses(50, 100, map[int]float64{20: 120, 40: 115})))
	if classifyDoubleTop(w) {
		t.Error("peaks more than 2% apart should not form a double top")
	}
}

func TestClassifyDoubleBottom(t *testing.T) {
	w := windowOver(barsFromCloses(spikedCloses(50, 100, map[int]float64{20: 80, 40: 80.5})))
	if !classifyDoubleBottom(w) {
		t.Error("troughs within 2% should form a double bottom")
	}

	w = windowOver(barsFromCloses(spikedCloses(50, 100, map[int]float64{20: 80, 40: 85})))
	if classifyDoubleBottom(w) {
		t.Error("troughs more than 2% apart should not form a double bottom")
	}
}

func TestClassifyTripleTop(t *testing.T) {
	w := windowOver(barsFromCloses(spikedCloses(60, 100, map[int]float64{10: 120, 30: 121, 50: 119.5})))
	if !classifyTripleTop(w) {
		t.Error("three peaks within 3% should form a triple top")
	}

	w = windowOver(barsFromCloses(spikedCloses(60, 100, map[int]float64{10: 120, 30: 121, 50: 115})))
	if classifyTripleTop(w) {
		t.Error("peaks spread over 3% should not form a triple top")
	}
}

func TestClassifyTripleBottom(t *testing.T) {
	w := windowOver(barsFromCloses(spikedCloses(60, 100, map[int]float64{10: 80, 30: 79.5, 50: 81})))
	if !classifyTripleBottom(w) {
		t.Error("three troughs within 3% should form a triple bottom")
	}

	w = windowOver(barsFromCloses(spikedCloses(60, 100, map[int]float64{10: 80, 30: 79.5, 50: 85})))
	if classifyTripleBottom(w) {
		t.Error("troughs spread over 3% should not form a triple bottom")
	}
}

func TestExtremaClusterUsesLatest(t *testing.T) {
	// Four peaks where only the latest three cluster. The stale first peak
	// must not block the triple top.
	spikes := map[int]float64{5: 150, 20: 120, 35: 121, 50: 119.5}
	w := windowOver(barsFromCloses(spikedCloses(60, 100, spikes)))
	if !classifyTripleTop(w) {
		t.Error("triple top should consider only the latest three peaks")
	}
}
