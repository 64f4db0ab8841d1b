package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	n2errors "github.com/n2edm/n2read/internal/errors"
	"github.com/n2edm/n2read/internal/hdconf"
	"github.com/n2edm/n2read/internal/logger"
	"github.com/n2edm/n2read/internal/naming"
	"github.com/n2edm/n2read/internal/observability"
	"github.com/n2edm/n2read/internal/record"
	"github.com/n2edm/n2read/pkg/types"
)

// Reader parses header files and reads data files. A Reader holds no
// per-dataset state and may be shared.
type Reader struct {
	log   zerolog.Logger
	stats *observability.ReadStats
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithStats records every ReadData call in stats.
func WithStats(stats *observability.ReadStats) ReaderOption {
	return func(r *Reader) {
		r.stats = stats
	}
}

// NewReader creates a Reader.
func NewReader(opts ...ReaderOption) *Reader {
	r := &Reader{log: logger.Get("dataset")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stats returns the statistics sink, or nil.
func (r *Reader) Stats() *observability.ReadStats {
	return r.stats
}

// Location identifies a dataset under a data root.
type Location struct {
	Root          string
	Layout        types.Layout
	Run           int32
	Cycle         int32
	SizeIndex     int32
	Subsystem     string
	HeaderVersion int32
}

// ConfigPath returns the header file path of the location.
func (l Location) ConfigPath() string {
	return naming.ConfigPath(l.Root, l.Layout, l.Run, l.Cycle, l.SizeIndex, l.Subsystem, l.HeaderVersion)
}

// DataPath returns the data file path of the location.
func (l Location) DataPath() string {
	return naming.DataPath(l.Root, l.Layout, l.Run, l.Cycle, l.SizeIndex, l.Subsystem)
}

// ReadReport describes the outcome of ReadData.
type ReadReport struct {
	// ExpectedRows is the number of complete rows the file size allows
	ExpectedRows int

	// Rows is the number of rows actually read
	Rows int

	// PartialBytes is the size of a trailing incomplete row
	PartialBytes int64

	// IntegrityWarnings counts sentinel mismatches
	IntegrityWarnings int

	// Warnings holds the non-fatal errors met during the read
	Warnings []error
}

// Short reports whether fewer rows were read than the file size promised.
func (r *ReadReport) Short() bool {
	return r.Rows < r.ExpectedRows || r.PartialBytes > 0
}

// ParseConfig parses the header file at path. In quick mode the data file
// is never opened: ExpectedRows stays 0 and missing timestamps are not
// recovered. Otherwise the data file size gives ExpectedRows and a missing
// first or last timestamp is read from the first or last row.
//
// A dataset whose first timestamp is still 0 afterwards fails with
// DATASET_INVALID, which also matches ErrConfigNotFound.
func (r *Reader) ParseConfig(path string, quick bool) (*Dataset, error) {
	return r.parseConfig(path, naming.ConfigToDataPath(path), quick)
}

// parseConfig is ParseConfig with the data file given explicitly.
func (r *Reader) parseConfig(path, dataPath string, quick bool) (*Dataset, error) {
	hdrVer, err := naming.HeaderVersion(path)
	if err != nil {
		return nil, err
	}

	doc, err := hdconf.ParseFile(path)
	if err != nil {
		var se *hdconf.SyntaxError
		if errors.As(err, &se) {
			r.log.Error().Str("path", path).Int("line", se.Line).Msg(se.Message)
			return nil, n2errors.NewConfigParseError(path, se.Line, err)
		}
		r.log.Error().Err(err).Str("path", path).Msg("Cannot read config file")
		return nil, n2errors.NewConfigNotFound(path, err)
	}

	ds := &Dataset{
		ConfigPath:    path,
		DataPath:      dataPath,
		HeaderVersion: hdrVer,
		Rows:          NewRowSet(),
	}
	if h, ok := naming.ParseHeaderName(filepath.Base(path)); ok {
		ds.Subsystem = h.Subsystem
	}
	log := r.log.With().Str("path", path).Logger()

	if name, ok := doc.LookupString("name"); ok {
		ds.Name = name
	} else {
		ds.Name = MissingName
		log.Error().Msg("No 'name' setting in configuration file")
	}

	ds.EOL = lookupEOL(doc, log)
	ds.Run, _ = doc.LookupInt("runNo")
	ds.Cycle, _ = doc.LookupInt("cycNo")

	var ok bool
	if ds.FirstTimestampNs, ok = doc.LookupInt64("firstTimeStamp"); !ok {
		log.Warn().Msg("Missing firstTimeStamp")
	}
	if ds.LastTimestampNs, ok = doc.LookupInt64("lastTimeStamp"); !ok {
		log.Info().Msg("Missing lastTimeStamp")
	}
	ds.LastWriteNs, _ = doc.LookupInt64("lastWrite")

	ds.Schema = parseColumns(doc, log)

	if !quick {
		r.probe(ds, log)
	}
	if ds.LastTimestampNs == 0 {
		ds.LastTimestampNs = ds.FirstTimestampNs
	}
	if ds.FirstTimestampNs == 0 {
		ds.Clear()
		log.Error().Bool("quick", quick).Msg("No first timestamp, dataset invalidated")
		return nil, n2errors.NewDatasetInvalid(path)
	}

	log.Debug().
		Str("name", ds.Name).
		Int32("run", ds.Run).
		Int32("cycle", ds.Cycle).
		Int("columns", len(ds.Schema)).
		Str("first", types.FormatTimestamp(ds.FirstTimestampNs)).
		Str("last", types.FormatTimestamp(ds.LastTimestampNs)).
		Int("expected_rows", ds.ExpectedRows).
		Msg("Config parsed")
	return ds, nil
}

// lookupEOL reads EOLidentifier, a string holding a C integer literal.
// An integer setting is accepted too.
func lookupEOL(doc *hdconf.Document, log zerolog.Logger) uint64 {
	s := doc.Lookup("EOLidentifier")
	if s == nil {
		log.Warn().Msg("Missing EOLidentifier")
		return 0
	}
	if v, ok := s.AsInt64(); ok {
		return uint64(v)
	}
	str, _ := s.AsString()
	v, err := parseCUint(str)
	if err != nil {
		log.Warn().Err(err).Str("EOLidentifier", str).Msg("Invalid EOLidentifier")
	}
	return v
}

// parseCUint parses like strtoul with base 0: 0x for hex, a leading 0 for
// octal, decimal otherwise.
func parseCUint(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	base := 10
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		base, s = 16, s[2:]
	case len(s) > 1 && s[0] == '0':
		base, s = 8, s[1:]
	}
	return strconv.ParseUint(s, base, 64)
}

func parseColumns(doc *hdconf.Document, log zerolog.Logger) types.Schema {
	count := doc.Lookup("columns").Len()
	schema := make(types.Schema, 0, count)
	unknown := 0
	for i := 0; i < count; i++ {
		prefix := fmt.Sprintf("columns/column_%03d/", i)
		name, ok1 := doc.LookupString(prefix + "columnName")
		desc, ok2 := doc.LookupString(prefix + "columnDescription")
		typ, ok3 := doc.LookupString(prefix + "columnDataType")
		if !ok1 || !ok2 || !ok3 {
			log.Warn().Int("column", i).Int("declared", count).Msg("Config column read failure")
			break
		}
		if _, known := types.ParseColumnType(typ); !known && i > 0 {
			unknown++
		}
		schema = append(schema, types.Column{Name: name, Description: desc, DataType: typ})
	}
	if unknown > 0 {
		log.Info().Int("columns", unknown).Msg("Unknown column data types read as uint64")
	}
	return schema
}

// probe fills ExpectedRows and recovers missing timestamps from the data
// file. Failures are logged and leave the values at 0.
func (r *Reader) probe(ds *Dataset, log zerolog.Logger) {
	f, err := os.Open(ds.DataPath)
	if err != nil {
		log.Error().Err(err).Str("data", ds.DataPath).Msg("Could not open data file")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		log.Error().Err(err).Str("data", ds.DataPath).Msg("Could not stat data file")
		return
	}
	size := info.Size()
	ds.ExpectedRows = record.ExpectedRows(size, len(ds.Schema))

	if ds.FirstTimestampNs == 0 {
		ts, err := record.ReadTimestampAt(f, 0)
		if err != nil {
			log.Error().Err(err).Str("data", ds.DataPath).Msg("Cannot read first timestamp")
		}
		ds.FirstTimestampNs = ts
	}
	if ds.LastTimestampNs == 0 {
		off := size - record.RowSize(len(ds.Schema))
		if off < 0 {
			log.Error().Int64("size", size).Str("data", ds.DataPath).Msg("Data file shorter than one row")
			return
		}
		ts, err := record.ReadTimestampAt(f, off)
		if err != nil {
			log.Error().Err(err).Str("data", ds.DataPath).Msg("Cannot read last timestamp")
		}
		ds.LastTimestampNs = ts
	}
}

// ReadData reads the rows of ds's data file into ds.Rows. Timestamps are
// converted to seconds relative to altFirstNs, or to ds.FirstTimestampNs
// when altFirstNs is 0. A truncated file or wrong sentinels are reported in
// the ReadReport, not as an error: the rows actually read are kept.
func (r *Reader) ReadData(ds *Dataset, altFirstNs int64) (*ReadReport, error) {
	if err := ds.Schema.Validate(); err != nil {
		return nil, fmt.Errorf("read %s: %w", ds.DataPath, err)
	}

	f, err := os.Open(ds.DataPath)
	if err != nil {
		r.log.Error().Err(err).Str("data", ds.DataPath).Msg("Could not open data file")
		return nil, n2errors.NewConfigNotFound(ds.DataPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, n2errors.NewConfigNotFound(ds.DataPath, err)
	}

	numCols := len(ds.Schema)
	rowSize := record.RowSize(numCols)
	report := &ReadReport{
		ExpectedRows: record.ExpectedRows(info.Size(), numCols),
		PartialBytes: info.Size() % rowSize,
	}
	ds.ExpectedRows = report.ExpectedRows
	ds.Schema[0].DataType = types.TagFloat64
	ds.Schema[0].Description = "[s]"

	if ds.Rows == nil {
		ds.Rows = NewRowSet()
	}
	ds.Rows.Clear()
	if err := ds.Rows.Allocate(report.ExpectedRows); err != nil {
		return nil, err
	}

	origin := ds.FirstTimestampNs
	if altFirstNs != 0 {
		origin = altFirstNs
	}
	dec := record.NewDecoder(f, numCols, ds.EOL, origin).WithPath(ds.DataPath)

	for ds.Rows.Len() < report.ExpectedRows {
		rec, err := dec.Decode()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				report.Warnings = append(report.Warnings, err)
			}
			r.log.Warn().Err(err).Str("data", ds.DataPath).Int("row", ds.Rows.Len()).Msg("Unexpected end of file")
			break
		}
		if !rec.SentinelOK {
			report.Warnings = append(report.Warnings,
				n2errors.NewIntegrityWarning(ds.DataPath, ds.Rows.Len(), rec.Sentinel, ds.EOL))
		}
		if err := ds.Rows.Append(rec.TimestampNs, rec.Row); err != nil {
			return report, err
		}
	}
	report.Rows = ds.Rows.Len()
	report.IntegrityWarnings = dec.IntegrityWarnings()

	if report.Short() {
		want := report.ExpectedRows
		if report.PartialBytes > 0 {
			want++
		}
		mismatch := n2errors.NewRowCountMismatch(ds.DataPath, report.Rows, want)
		report.Warnings = append(report.Warnings, mismatch)
		r.log.Error().
			Str("data", ds.DataPath).
			Int("rows", report.Rows).
			Int("expected", want).
			Int64("partial_bytes", report.PartialBytes).
			Msg("Row number discrepancy")
	} else {
		r.log.Debug().Str("data", ds.DataPath).Int("rows", report.Rows).Msg("Data read")
	}

	if r.stats != nil {
		subsystem := ds.Subsystem
		if subsystem == "" {
			subsystem = ds.Name
		}
		r.stats.RecordRead(subsystem, ds.Run, report.Rows, report.IntegrityWarnings, report.Short())
	}
	return report, nil
}

// ReadFile parses the header at configPath (probing the data file) and
// reads its rows.
func (r *Reader) ReadFile(configPath string) (*Dataset, *ReadReport, error) {
	ds, err := r.ParseConfig(configPath, false)
	if err != nil {
		return nil, nil, err
	}
	report, err := r.ReadData(ds, 0)
	if err != nil {
		return ds, nil, err
	}
	return ds, report, nil
}

// ReadDataset parses the header of loc, probing loc's data file for
// missing timestamps, and reads its rows with the given time origin.
func (r *Reader) ReadDataset(loc Location, altFirstNs int64) (*Dataset, *ReadReport, error) {
	ds, err := r.parseConfig(loc.ConfigPath(), loc.DataPath(), false)
	if err != nil {
		return nil, nil, err
	}
	if ds.Subsystem == "" {
		ds.Subsystem = loc.Subsystem
	}
	report, err := r.ReadData(ds, altFirstNs)
	if err != nil {
		return ds, nil, err
	}
	return ds, report, nil
}
