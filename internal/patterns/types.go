package patterns

import (
	"errors"
	"fmt"
	"time"
)

// PatternType identifies one of the supported chart patterns.
type PatternType string

const (
	HeadAndShoulders   PatternType = "head_and_shoulders"
	BullishRectangle   PatternType = "bullish_rectangle"
	BearishRectangle   PatternType = "bearish_rectangle"
	TripleTop          PatternType = "triple_top"
	TripleBottom       PatternType = "triple_bottom"
	DoubleTop          PatternType = "double_top"
	DoubleBottom       PatternType = "double_bottom"
	AscendingChannel   PatternType = "ascending_channel"
	DescendingChannel  PatternType = "descending_channel"
	AscendingTriangle  PatternType = "ascending_triangle"
	DescendingTriangle PatternType = "descending_triangle"
	BullFlag           PatternType = "bull_flag"
	BearFlag           PatternType = "bear_flag"
)

// Contract violations in the input series fail fast; the engine never
// repairs or reorders its input.
var (
	ErrUnordered      = errors.New("bar timestamps must be strictly increasing")
	ErrMalformedBar   = errors.New("bar has missing or invalid price fields")
	ErrUnknownPattern = errors.New("unknown pattern type")
)

// ComputeError reports an unexpected failure inside the classifier stage.
// Callers decide the fallback; the batch runner logs it and substitutes
// zero detections so one symbol's anomaly cannot poison a batch.
type ComputeError struct {
	Stage string
	Cause error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("pattern computation failed at %s: %v", e.Stage, e.Cause)
}

func (e *ComputeError) Unwrap() error { return e.Cause }

// DetectionMatrix maps each pattern type to a boolean signal aligned 1:1
// with the input bars. A set flag at position i means the pattern is
// recognized as completing at bar i. Built fresh per invocation.
type DetectionMatrix struct {
	Length  int
	Signals map[PatternType][]bool
}

// NewDetectionMatrix creates an all-zero matrix covering every registered
// pattern type for a series of n bars.
func NewDetectionMatrix(n int) *DetectionMatrix {
	m := &DetectionMatrix{Length: n, Signals: make(map[PatternType][]bool, len(descriptors))}
	for _, d := range descriptors {
		m.Signals[d.Type] = make([]bool, n)
	}
	return m
}

// Detected reports whether pt completes at bar i.
func (m *DetectionMatrix) Detected(pt PatternType, i int) bool {
	signal, ok := m.Signals[pt]
	if !ok || i < 0 || i >= len(signal) {
		return false
	}
	return signal[i]
}

// PatternEvent is a discrete, persistable record of one pattern recognized
// as ending at a specific bar.
type PatternEvent struct {
	ID         string      `json:"pattern_id"`
	Symbol     string      `json:"stock_symbol"`
	Type       PatternType `json:"pattern_type"`
	StartTime  time.Time   `json:"start_time"`
	EndTime    time.Time   `json:"end_time"`
	Confidence float64     `json:"confidence"`
}

// Pattern strength scoring is not implemented; every event reports full
// confidence.
const eventConfidence = 1.0

// EventID builds the stable identifier the persistence layer keys on.
// Repeated runs over the same data produce the same ID, so conflicting
// inserts collapse to no-ops.
func EventID(symbol string, pt PatternType, endTime time.Time) string {
	return fmt.Sprintf("%s_%s_%s", symbol, pt, endTime.UTC().Format(time.RFC3339))
}
