package bloom

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestOptimalParameters(t *testing.T) {
	bits, hashes := OptimalParameters(1000, 0.01)
	if bits < 9000 || bits > 10000 {
		t.Errorf("expected about 9586 bits, got %d", bits)
	}
	if hashes != 7 {
		t.Errorf("expected 7 hashes, got %d", hashes)
	}

	bits, hashes = OptimalParameters(1, 0.5)
	if bits != 64 || hashes < 1 {
		t.Errorf("expected minimum geometry, got %d/%d", bits, hashes)
	}
}

func TestSubsystemFilter(t *testing.T) {
	f := ForSubsystems([]string{"coils", "degauss", "pumps"})
	for _, s := range []string{"coils", "degauss", "pumps"} {
		if !f.ContainsString(s) {
			t.Errorf("expected %q to be present", s)
		}
	}
	if f.Count() != 3 {
		t.Errorf("expected count 3, got %d", f.Count())
	}

	misses := 0
	for i := 0; i < 1000; i++ {
		if !f.ContainsString(fmt.Sprintf("absent_%d", i)) {
			misses++
		}
	}
	if misses < 900 {
		t.Errorf("too many false positives: %d of 1000 absent names matched", 1000-misses)
	}
}

func TestMerge(t *testing.T) {
	a, b := New(256, 4), New(256, 4)
	a.AddString("coils")
	b.AddString("pumps")
	if err := a.Merge(b); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if !a.ContainsString("coils") || !a.ContainsString("pumps") {
		t.Errorf("merged filter lost an item")
	}
	if a.Count() != 2 {
		t.Errorf("expected count 2, got %d", a.Count())
	}
	if err := a.Merge(New(512, 4)); err == nil {
		t.Errorf("expected geometry mismatch error")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	f := ForSubsystems([]string{"coils", "degauss"})
	data, err := f.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	g, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if g.NumBits() != f.NumBits() || g.NumHashes() != f.NumHashes() || g.Count() != f.Count() {
		t.Errorf("geometry changed: %d/%d/%d vs %d/%d/%d",
			g.NumBits(), g.NumHashes(), g.Count(), f.NumBits(), f.NumHashes(), f.Count())
	}
	if !g.ContainsString("coils") || !g.ContainsString("degauss") {
		t.Errorf("decoded filter lost an item")
	}
}

func TestUnmarshalRejectsBadInput(t *testing.T) {
	good, _ := New(128, 3).MarshalBinary()
	tests := map[string][]byte{
		"short":      {1, 2, 3},
		"zero bits":  make([]byte, headerSize),
		"truncated":  good[:len(good)-1],
		"bad snappy": append(append([]byte{}, good[:headerSize]...), 0xFF, 0xFF, 0xFF),
	}
	for name, data := range tests {
		if _, err := Unmarshal(data); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

// TestProperty_NoFalseNegatives checks that every added name is found,
// before and after a serialization round trip.
func TestProperty_NoFalseNegatives(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("added names are always contained", prop.ForAll(
		func(names []string) bool {
			f := ForSubsystems(names)
			data, err := f.MarshalBinary()
			if err != nil {
				return false
			}
			g, err := Unmarshal(data)
			if err != nil {
				return false
			}
			for _, n := range names {
				if !f.ContainsString(n) || !g.ContainsString(n) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
