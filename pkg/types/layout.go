package types

import "fmt"

// Layout selects how dataset files are arranged under a root directory.
type Layout uint8

const (
	// Sharded stores a run's files under root/RRR/rrr/ where RRR is
	// run/1000 and rrr is run%1000.
	Sharded Layout = iota

	// Flat stores every file directly under root.
	Flat
)

func (l Layout) String() string {
	if l == Flat {
		return "flat"
	}
	return "sharded"
}

// ParseLayout parses "sharded" or "flat". The empty string is Sharded.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "", "sharded":
		return Sharded, nil
	case "flat":
		return Flat, nil
	default:
		return Sharded, fmt.Errorf("%w: %q", ErrUnknownLayout, s)
	}
}
