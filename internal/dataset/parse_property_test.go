package dataset

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/n2edm/n2read/internal/naming"
	"github.com/n2edm/n2read/pkg/types"
)

// TestProperty_QuickParseMatchesFullParse checks that a quick parse yields
// the same metadata as a full parse, except for ExpectedRows, whenever both
// timestamps are present in the header.
func TestProperty_QuickParseMatchesFullParse(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	root := t.TempDir()
	r := NewReader()
	iteration := 0

	properties.Property("quick and full parse agree", prop.ForAll(
		func(first, span int64, rows int, run int32) bool {
			iteration++
			dir := filepath.Join(root, strconv.Itoa(iteration))
			cfg := naming.ConfigPath(dir, types.Sharded, run, 1, 0, "coils", 0)
			text := headerText("coils", "0xDEADBEEF", run, 1, first, first+span, testSchema)
			if err := os.MkdirAll(filepath.Dir(cfg), 0755); err != nil {
				return false
			}
			if err := os.WriteFile(cfg, []byte(text), 0644); err != nil {
				return false
			}
			writeDataFile(t, naming.ConfigToDataPath(cfg), len(testSchema), testEOL, first, rows)

			quick, err := r.ParseConfig(cfg, true)
			if err != nil {
				return false
			}
			full, err := r.ParseConfig(cfg, false)
			if err != nil {
				return false
			}
			if quick.ExpectedRows != 0 || full.ExpectedRows != rows {
				return false
			}
			quick.ExpectedRows = full.ExpectedRows
			return quick.Name == full.Name &&
				quick.EOL == full.EOL &&
				quick.Run == full.Run &&
				quick.Cycle == full.Cycle &&
				quick.FirstTimestampNs == full.FirstTimestampNs &&
				quick.LastTimestampNs == full.LastTimestampNs &&
				quick.LastWriteNs == full.LastWriteNs &&
				len(quick.Schema) == len(full.Schema)
		},
		gen.Int64Range(1, 4102444800000000000),
		gen.Int64Range(1, 1000000000000),
		gen.IntRange(0, 50),
		gen.Int32Range(0, 999999),
	))

	properties.TestingRun(t)
}
