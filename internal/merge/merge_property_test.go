package merge

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/n2edm/n2read/internal/dataset"
	"github.com/n2edm/n2read/pkg/types"
)

// splitMerge merges total rows cut into pieces of the given sizes (the
// last piece takes what is left) and returns the kept timestamps and the
// final remainder.
func splitMerge(t *testing.T, total int, sizes []int, spec types.FilterSpec) ([]int64, uint32, bool) {
	dst := dataset.NewRowSet()
	var rem uint32
	base := 0
	pieces := append(append([]int(nil), sizes...), total)
	for _, size := range pieces {
		if base+size > total {
			size = total - base
		}
		if _, err := Merge(dst, rowSet(t, int64(base), size), spec, &rem); err != nil {
			return nil, 0, false
		}
		base += size
	}
	return dst.Timestamps(), rem, true
}

// TestProperty_DecimationIsContinuousAcrossSplits checks that merging a
// sequence in several pieces keeps the same rows as merging it at once, and
// that one piece of R rows yields ceil(R/d) rows.
func TestProperty_DecimationIsContinuousAcrossSplits(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("split merge equals single merge", prop.ForAll(
		func(total int, dec uint32, sizes []int) bool {
			spec := types.FilterSpec{Decimation: dec}

			whole, wholeRem, ok := splitMerge(t, total, nil, spec)
			if !ok {
				return false
			}
			d := int(spec.EffectiveDecimation())
			if len(whole) != (total+d-1)/d {
				return false
			}
			for i, ts := range whole {
				if ts != int64(i*d) {
					return false
				}
			}

			split, splitRem, ok := splitMerge(t, total, sizes, spec)
			if !ok || len(split) != len(whole) || splitRem != wholeRem {
				return false
			}
			for i := range whole {
				if split[i] != whole[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 300),
		gen.UInt32Range(0, 12),
		gen.SliceOf(gen.IntRange(0, 40)),
	))

	properties.TestingRun(t)
}

// TestProperty_MaxRowsCapsWithoutChangingRemainder checks that the cap
// bounds the destination and does not disturb the carried remainder.
func TestProperty_MaxRowsCapsWithoutChangingRemainder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("cap bounds rows and keeps remainder", prop.ForAll(
		func(total int, dec, maxRows uint32, sizes []int) bool {
			free, freeRem, ok := splitMerge(t, total, sizes, types.FilterSpec{Decimation: dec})
			if !ok {
				return false
			}
			capped, cappedRem, ok := splitMerge(t, total, sizes, types.FilterSpec{Decimation: dec, MaxRows: maxRows})
			if !ok || cappedRem != freeRem {
				return false
			}
			want := len(free)
			if int(maxRows) < want {
				want = int(maxRows)
			}
			if len(capped) != want {
				return false
			}
			for i := range capped {
				if capped[i] != free[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 300),
		gen.UInt32Range(0, 12),
		gen.UInt32Range(1, 60),
		gen.SliceOf(gen.IntRange(0, 40)),
	))

	properties.TestingRun(t)
}
