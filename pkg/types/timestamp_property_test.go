package types

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestFormatTimestamp(t *testing.T) {
	got := FormatTimestamp(1577836800000000123)
	if got != "20200101-000000.000000123" {
		t.Errorf("got %q", got)
	}
	if got := FormatTimestampLayout(1577836800000000123, "2006-01-02"); got != "2020-01-01" {
		t.Errorf("got %q", got)
	}
}

// TestProperty_TimestampPartsAgreeWithFormat checks that SplitTimestamp and
// FormatTimestamp describe the same instant for positive timestamps.
func TestProperty_TimestampPartsAgreeWithFormat(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("formatted string matches broken-down fields", prop.ForAll(
		func(ns int64) bool {
			p := SplitTimestamp(ns)
			want := fmt.Sprintf("%04d%02d%02d-%02d%02d%02d.%09d",
				p.Year, p.Month, p.Day, p.Hour, p.Minute, p.Sec, p.Nano)
			return FormatTimestamp(ns) == want && ToTime(ns).UnixNano() == ns
		},
		gen.Int64Range(1, 4102444800000000000),
	))

	properties.TestingRun(t)
}
