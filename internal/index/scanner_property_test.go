package index

import (
	"os"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/n2edm/n2read/internal/naming"
	"github.com/n2edm/n2read/pkg/types"
)

// TestProperty_ListRunsSortedAndFiltered checks that ListRuns returns every
// created run >= start exactly once, in ascending order.
func TestProperty_ListRunsSortedAndFiltered(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("sharded runs are sorted, unique and >= start", prop.ForAll(
		func(runs []int32, start int32) bool {
			root := t.TempDir()
			want := map[int32]bool{}
			for _, r := range runs {
				if err := os.MkdirAll(naming.RunDir(root, types.Sharded, r), 0755); err != nil {
					return false
				}
				if r >= start {
					want[r] = true
				}
			}

			s := NewScanner(root, types.Sharded)
			got, err := s.ListRuns(start)
			if err != nil {
				return false
			}
			if len(got) != len(want) {
				return false
			}
			if !sort.SliceIsSorted(got, func(i, j int) bool { return got[i] < got[j] }) {
				return false
			}
			for i, r := range got {
				if !want[r] || (i > 0 && got[i-1] == r) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(12, gen.Int32Range(0, 20000)),
		gen.Int32Range(0, 20000),
	))

	properties.TestingRun(t)
}
