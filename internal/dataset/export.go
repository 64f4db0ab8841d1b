package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/n2edm/n2read/internal/hdconf"
	"github.com/n2edm/n2read/internal/naming"
	"github.com/n2edm/n2read/internal/record"
	"github.com/n2edm/n2read/pkg/types"
)

// WriteResult names the files written by Write.
type WriteResult struct {
	ConfigPath string
	DataPath   string
	Rows       int
}

// Write stores ds as a header/data file pair under root, using ds.Run,
// ds.Cycle, size index 0 and ds.Subsystem (or ds.Name) for the file names.
// Timestamps are written raw so the pair reads back with the same time
// axis; column 0 is declared uint64 nanoseconds again.
func Write(ds *Dataset, root string, layout types.Layout) (*WriteResult, error) {
	if err := ds.Schema.Validate(); err != nil {
		return nil, fmt.Errorf("write dataset %q: %w", ds.Name, err)
	}
	subsystem := ds.Subsystem
	if subsystem == "" {
		subsystem = ds.Name
	}

	res := &WriteResult{
		ConfigPath: naming.ConfigPath(root, layout, ds.Run, ds.Cycle, 0, subsystem, ds.HeaderVersion),
		DataPath:   naming.DataPath(root, layout, ds.Run, ds.Cycle, 0, subsystem),
	}
	if err := os.MkdirAll(filepath.Dir(res.ConfigPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	first, last := ds.FirstTimestampNs, ds.LastTimestampNs
	if n := ds.Len(); n > 0 {
		first, last = ds.Rows.Timestamp(0), ds.Rows.Timestamp(n-1)
	}

	rows, err := writeData(res.DataPath, ds)
	if err != nil {
		return nil, err
	}
	res.Rows = rows

	columns := hdconf.Group("columns")
	for i, c := range ds.Schema {
		dataType, desc := c.DataType, c.Description
		if i == 0 {
			dataType = types.TagUInt64
			if desc == "[s]" {
				desc = "[ns]"
			}
		}
		columns.Children = append(columns.Children, hdconf.Group(fmt.Sprintf("column_%03d", i),
			hdconf.String("columnName", c.Name),
			hdconf.String("columnDescription", desc),
			hdconf.String("columnDataType", dataType),
		))
	}
	header := hdconf.Group("",
		hdconf.String("name", ds.Name),
		hdconf.String("EOLidentifier", fmt.Sprintf("0x%X", ds.EOL)),
		hdconf.Int("runNo", ds.Run),
		hdconf.Int("cycNo", ds.Cycle),
		hdconf.Int64("firstTimeStamp", first),
		hdconf.Int64("lastTimeStamp", last),
		hdconf.Int64("lastWrite", ds.LastWriteNs),
		columns,
	)

	f, err := os.Create(res.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create header: %w", err)
	}
	if err := hdconf.Write(f, header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close header: %w", err)
	}
	return res, nil
}

// writeData writes every row still held by ds and returns how many.
func writeData(path string, ds *Dataset) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create data file: %w", err)
	}
	written := 0
	enc := record.NewEncoder(f, ds.NumColumns(), ds.EOL)
	for i := 0; i < ds.Len(); i++ {
		row := ds.Rows.Row(i)
		if row == nil {
			continue
		}
		if err := enc.Encode(ds.Rows.Timestamp(i), row); err != nil {
			f.Close()
			return 0, fmt.Errorf("failed to write row %d: %w", i, err)
		}
		written++
	}
	if err := enc.Flush(); err != nil {
		f.Close()
		return 0, fmt.Errorf("failed to flush data file: %w", err)
	}
	return written, f.Close()
}
