package types

// Span sentinels stored in RunSpan.StartNs/EndNs when a run's time span
// could not be established. Real timestamps are always positive.
const (
	SpanNoColumns        int64 = -9999
	SpanNoSubsystem      int64 = -9998
	SpanNoCycles         int64 = -9997
	SpanConfigUnreadable int64 = -9996
)

// RunSpan is the time extent of one run.
type RunSpan struct {
	// Run is the run number
	Run int32 `json:"run"`

	// Subsystem is the subsystem whose configs supplied the bounds
	Subsystem string `json:"subsystem,omitempty"`

	// StartNs is the first timestamp of the lowest cycle, or a sentinel
	StartNs int64 `json:"start_ns"`

	// EndNs is the last timestamp of the highest cycle, or a sentinel
	EndNs int64 `json:"end_ns"`

	// MinCycle and MaxCycle are the cycles read for the bounds
	MinCycle int32 `json:"min_cycle"`
	MaxCycle int32 `json:"max_cycle"`

	// Err is the parse failure behind SpanConfigUnreadable
	Err error `json:"-"`
}

// Valid reports whether both bounds are real timestamps.
func (s RunSpan) Valid() bool {
	return s.StartNs > 0 && s.EndNs > 0
}

// Overlaps reports whether a valid span intersects [startNs, endNs]. A zero
// bound is open.
func (s RunSpan) Overlaps(startNs, endNs int64) bool {
	if !s.Valid() {
		return false
	}
	if startNs != 0 && s.EndNs < startNs {
		return false
	}
	if endNs != 0 && s.StartNs > endNs {
		return false
	}
	return true
}

// SpanStatus names a span sentinel, or "ok" for a valid span.
func SpanStatus(v int64) string {
	switch v {
	case SpanNoColumns:
		return "no_columns"
	case SpanNoSubsystem:
		return "no_subsystem"
	case SpanNoCycles:
		return "no_cycles"
	case SpanConfigUnreadable:
		return "config_unreadable"
	}
	if v <= 0 {
		return "invalid"
	}
	return "ok"
}
