package patterns

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func findLine(g PatternGeometry, label string) (Line, bool) {
	for _, l := range g.Lines {
		if l.Label == label {
			return l, true
		}
	}
	return Line{}, false
}

func TestEventWindow(t *testing.T) {
	bars := barsFromCloses(rampCloses(70, 100, 1))

	w := EventWindow(bars, HeadAndShoulders, 65)
	if len(w) != 60 {
		t.Fatalf("window length = %d, want 60", len(w))
	}
	if !w[len(w)-1].Date.Equal(bars[65].Date) {
		t.Error("window should end at the event bar")
	}
	if !w[0].Date.Equal(bars[6].Date) {
		t.Error("window should start lookback-1 bars before the event bar")
	}

	// Clamped to the series start.
	if got := len(EventWindow(bars, BullFlag, 10)); got != 11 {
		t.Errorf("clamped window length = %d, want 11", got)
	}

	if EventWindow(bars, PatternType("cup_and_handle"), 65) != nil {
		t.Error("unknown pattern type should yield no window")
	}
	if EventWindow(bars, BullFlag, 70) != nil {
		t.Error("out of range index should yield no window")
	}
}

func TestExtractGeometryUnknownPattern(t *testing.T) {
	_, err := ExtractGeometry(barsFromCloses(rampCloses(40, 100, 1)), PatternType("wedge"))
	if !errors.Is(err, ErrUnknownPattern) {
		t.Errorf("err = %v, want ErrUnknownPattern", err)
	}
}

func TestExtractGeometryEmptyWindow(t *testing.T) {
	g, err := ExtractGeometry(nil, DoubleTop)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if len(g.Lines) != 0 || len(g.KeyPoints) != 0 {
		t.Error("empty window should yield empty geometry")
	}
}

func TestHeadAndShouldersGeometry(t *testing.T) {
	// Peaks at bars 10, 30, 50 with distinct valleys between them for the
	// neckline.
	closes := spikedCloses(60, 100, map[int]float64{
		10: 110, 30: 130, 50: 111,
		20: 92, 40: 92.5,
	})
	bars := barsFromCloses(closes)

	g, err := ExtractGeometry(bars, HeadAndShoulders)
	if err != nil {
		t.Fatalf("err = %v", err)
	}

	main, ok := findLine(g, "Head & Shoulders")
	if !ok || len(main.Points) != 3 {
		t.Fatalf("missing three-point formation line: %+v", g.Lines)
	}
	if main.Points[1].Value != 131 {
		t.Errorf("head value = %v, want 131", main.Points[1].Value)
	}

	if len(g.KeyPoints) != 3 {
		t.Fatalf("got %d key points, want 3", len(g.KeyPoints))
	}
	head := g.KeyPoints[1]
	if head.Label != "Head" || !head.Time.Equal(bars[30].Date) || head.Value != 131 {
		t.Errorf("head key point = %+v", head)
	}

	neck, ok := findLine(g, "Neckline")
	if !ok || len(neck.Points) != 2 {
		t.Fatalf("missing neckline: %+v", g.Lines)
	}
	if !neck.Points[0].Time.Equal(bars[20].Date) || neck.Points[0].Value != 91 {
		t.Errorf("neckline start = %+v", neck.Points[0])
	}
	if !neck.Points[1].Time.Equal(bars[40].Date) || neck.Points[1].Value != 91.5 {
		t.Errorf("neckline end = %+v", neck.Points[1])
	}
}

func TestDoubleTopGeometry(t *testing.T) {
	closes := spikedCloses(50, 100, map[int]float64{20: 120, 40: 119})
	bars := barsFromCloses(closes)

	g, err := ExtractGeometry(bars, DoubleTop)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	line, ok := findLine(g, "Double Top")
	if !ok || len(line.Points) != 2 {
		t.Fatalf("missing double top line: %+v", g.Lines)
	}
	if line.Points[0].Value != 121 || line.Points[1].Value != 120 {
		t.Errorf("peak values = %v, %v, want 121, 120", line.Points[0].Value, line.Points[1].Value)
	}
}

func TestRectangleGeometry(t *testing.T) {
	bars := barsFromCloses(oscillatingCloses(40, 100, 105, 110, 105))

	g, err := ExtractGeometry(bars, BearishRectangle)
	if err != nil {
		t.Fatalf("err = %v", err)
	}

	res, ok := findLine(g, "Resistance")
	if !ok || res.Points[0].Value != 111 || res.Points[1].Value != 111 {
		t.Errorf("resistance line = %+v", res)
	}
	sup, ok := findLine(g, "Support")
	if !ok || sup.Points[0].Value != 99 || sup.Points[1].Value != 99 {
		t.Errorf("support line = %+v", sup)
	}
}

func TestChannelGeometry(t *testing.T) {
	bars := barsFromCloses(rampCloses(40, 100, 1))

	g, err := ExtractGeometry(bars, AscendingChannel)
	if err != nil {
		t.Fatalf("err = %v", err)
	}

	upper, ok := findLine(g, "Upper Channel")
	if !ok {
		t.Fatal("missing upper channel line")
	}
	if math.Abs(upper.Points[0].Value-101) > 1e-9 || math.Abs(upper.Points[1].Value-140) > 1e-9 {
		t.Errorf("upper channel = %v to %v, want 101 to 140", upper.Points[0].Value, upper.Points[1].Value)
	}

	lower, ok := findLine(g, "Lower Channel")
	if !ok {
		t.Fatal("missing lower channel line")
	}
	if math.Abs(lower.Points[0].Value-99) > 1e-9 || math.Abs(lower.Points[1].Value-138) > 1e-9 {
		t.Errorf("lower channel = %v to %v, want 99 to 138", lower.Points[0].Value, lower.Points[1].Value)
	}
}

func TestTriangleGeometry(t *testing.T) {
	bars := shapedBars(40,
		func(i int) float64 { return 100 },
		func(i int) float64 { return 60 + float64(i) },
	)

	g, err := ExtractGeometry(bars, AscendingTriangle)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	res, ok := findLine(g, "Resistance")
	if !ok || res.Points[0].Value != 100 || res.Points[1].Value != 100 {
		t.Errorf("flat resistance = %+v", res)
	}
	sup, ok := findLine(g, "Support")
	if !ok {
		t.Fatal("missing fitted support line")
	}
	if math.Abs(sup.Points[0].Value-60) > 1e-9 || math.Abs(sup.Points[1].Value-99) > 1e-9 {
		t.Errorf("support = %v to %v, want 60 to 99", sup.Points[0].Value, sup.Points[1].Value)
	}
}

func TestFlagGeometry(t *testing.T) {
	closes := flagCloses(
		func(i int) float64 { return 100 + 20*float64(i)/14 },
		func(i int) float64 { return 119.5 - 0.1*float64(i) },
	)
	bars := barsFromCloses(closes)

	g, err := ExtractGeometry(bars, BullFlag)
	if err != nil {
		t.Fatalf("err = %v", err)
	}

	pole, ok := findLine(g, "Pole")
	if !ok {
		t.Fatal("missing pole line")
	}
	if pole.Points[0].Value != 100 || pole.Points[1].Value != 120 {
		t.Errorf("pole = %v to %v, want 100 to 120", pole.Points[0].Value, pole.Points[1].Value)
	}
	if _, ok := findLine(g, "Flag"); !ok {
		t.Error("missing fitted flag line")
	}
}

func TestExtractGeometryDeterministic(t *testing.T) {
	closes := spikedCloses(60, 100, map[int]float64{10: 110, 30: 130, 50: 111, 20: 92, 40: 92.5})
	bars := barsFromCloses(closes)

	first, err := ExtractGeometry(bars, HeadAndShoulders)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	second, err := ExtractGeometry(bars, HeadAndShoulders)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("geometry must be identical across calls on identical input")
	}
}
