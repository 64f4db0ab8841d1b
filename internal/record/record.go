// Package record decodes and encodes the fixed-width rows of N2 EDM data
// files.
//
// A row of a dataset with N columns is (N+1)*8 bytes, little-endian: an
// int64 timestamp in nanoseconds since the epoch, N-1 eight-byte column
// values (IEEE-754 double or uint64 according to the schema) and a uint64
// end-of-line sentinel.
package record

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/n2edm/n2read/pkg/types"
)

// WordSize is the width of every slot in a row.
const WordSize = 8

// byteOrder is the on-disk byte order. Both the append and the read paths
// go through it.
var byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
} = binary.LittleEndian

// RowSize returns the byte length of one row of a dataset with numCols
// columns, sentinel included.
func RowSize(numCols int) int64 {
	return int64(numCols+1) * WordSize
}

// ExpectedRows returns the number of complete rows in a file of fileSize
// bytes.
func ExpectedRows(fileSize int64, numCols int) int {
	if numCols < 0 || fileSize <= 0 {
		return 0
	}
	return int(fileSize / RowSize(numCols))
}

// Row holds one decoded row as raw 8-byte slots. Slot 0 holds the float64
// bits of the seconds elapsed since the origin timestamp.
type Row []uint64

// Float64 interprets slot i as a double.
func (r Row) Float64(i int) float64 {
	return math.Float64frombits(r[i])
}

// Uint64 returns slot i unchanged.
func (r Row) Uint64(i int) uint64 {
	return r[i]
}

// Seconds returns the relative time of the row.
func (r Row) Seconds() float64 {
	return r.Float64(0)
}

// Value returns slot i interpreted with the column types of a schema, as
// returned by types.Schema.Types.
func (r Row) Value(colTypes []types.ColumnType, i int) Value {
	t := types.UInt64
	if i < len(colTypes) {
		t = colTypes[i]
	}
	if i == 0 {
		t = types.Float64
	}
	if t == types.Float64 {
		return Value{Type: t, F: r.Float64(i)}
	}
	return Value{Type: t, U: r[i]}
}

// Values returns every slot of r as a Value.
func (r Row) Values(colTypes []types.ColumnType) []Value {
	out := make([]Value, len(r))
	for i := range r {
		out[i] = r.Value(colTypes, i)
	}
	return out
}

// Clone returns a copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Value is one typed cell.
type Value struct {
	Type types.ColumnType
	F    float64
	U    uint64
}

func (v Value) String() string {
	if v.Type == types.Float64 {
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	}
	return strconv.FormatUint(v.U, 10)
}

// Record is the result of decoding one row.
type Record struct {
	// TimestampNs is the raw timestamp, nanoseconds since the epoch
	TimestampNs int64

	// Row holds the slots; slot 0 is already converted to seconds
	Row Row

	// Sentinel is the end-of-line word read after the row
	Sentinel uint64

	// SentinelOK reports whether Sentinel matched the expected value
	SentinelOK bool
}

// SecondsSince converts a raw timestamp to seconds relative to originNs.
func SecondsSince(tsNs, originNs int64) float64 {
	return float64(tsNs-originNs) / 1e9
}
