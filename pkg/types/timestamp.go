package types

import (
	"fmt"
	"time"
)

// DefaultTimestampLayout is the date part of FormatTimestamp.
const DefaultTimestampLayout = "20060102-150405"

// ToTime converts nanoseconds since epoch to a UTC time.
func ToTime(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// FormatTimestamp renders ns as YYYYMMDD-HHMMSS.nnnnnnnnn in UTC.
func FormatTimestamp(ns int64) string {
	t := time.Unix(ns/1e9, 0).UTC()
	return fmt.Sprintf("%s.%09d", t.Format(DefaultTimestampLayout), ns%1e9)
}

// FormatTimestampLayout renders the whole seconds of ns with a Go time
// layout. An empty layout falls back to FormatTimestamp.
func FormatTimestampLayout(ns int64, layout string) string {
	if layout == "" {
		return FormatTimestamp(ns)
	}
	return time.Unix(ns/1e9, 0).UTC().Format(layout)
}

// DateParts is a broken-down UTC timestamp.
type DateParts struct {
	Year, Month, Day  int
	Hour, Minute, Sec int
	Nano              int
}

// SplitTimestamp breaks ns into calendar fields.
func SplitTimestamp(ns int64) DateParts {
	t := time.Unix(ns/1e9, 0).UTC()
	return DateParts{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Sec:    t.Second(),
		Nano:   int(ns % 1e9),
	}
}
