// Package dataset parses N2 EDM header files and reads their data files.
//
// A Dataset starts empty, is populated by Reader.ParseConfig (which may
// probe the data file for missing timestamps), filled with rows by
// Reader.ReadData, and is finally discarded with Clear or duplicated without
// its rows with CloneShell.
package dataset

import (
	"github.com/n2edm/n2read/pkg/types"
)

// MissingName is the name of a dataset whose header has no name setting.
const MissingName = "-Missing-"

// Dataset is the metadata and rows of one header/data file pair.
type Dataset struct {
	Name       string
	ConfigPath string
	DataPath   string

	// Subsystem is taken from the header file name when it follows the
	// naming convention
	Subsystem string

	EOL           uint64
	Run           int32
	Cycle         int32
	HeaderVersion int32

	Schema types.Schema

	FirstTimestampNs int64
	LastTimestampNs  int64
	LastWriteNs      int64

	// ExpectedRows is derived from the data file size
	ExpectedRows int

	Filter types.FilterSpec
	Rows   *RowSet
}

// NumColumns returns the number of columns including the timestamp.
func (d *Dataset) NumColumns() int {
	return len(d.Schema)
}

// Len returns the number of rows held.
func (d *Dataset) Len() int {
	return d.Rows.Len()
}

// Labels returns the display label of every column.
func (d *Dataset) Labels() []string {
	return d.Schema.Labels()
}

// Clear releases the rows and zeroes every field.
func (d *Dataset) Clear() {
	if d.Rows != nil {
		d.Rows.Clear()
	}
	*d = Dataset{}
}

// CloneShell returns a new dataset with the same metadata and filter but no
// rows and no capacity.
func (d *Dataset) CloneShell() *Dataset {
	return &Dataset{
		Name:             d.Name,
		ConfigPath:       d.ConfigPath,
		DataPath:         d.DataPath,
		Subsystem:        d.Subsystem,
		EOL:              d.EOL,
		Run:              d.Run,
		Cycle:            d.Cycle,
		HeaderVersion:    d.HeaderVersion,
		Schema:           d.Schema.Clone(),
		FirstTimestampNs: d.FirstTimestampNs,
		LastTimestampNs:  d.LastTimestampNs,
		LastWriteNs:      d.LastWriteNs,
		Filter:           d.Filter,
		Rows:             NewRowSet(),
	}
}
