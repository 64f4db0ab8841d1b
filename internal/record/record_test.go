package record

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	n2errors "github.com/n2edm/n2read/internal/errors"
	"github.com/n2edm/n2read/pkg/types"
)

const testEOL = 0xDEADBEEF

func encodeRows(t *testing.T, numCols int, eol uint64, ts []int64, rows []Row) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := NewEncoder(&buf, numCols, eol)
	for i := range ts {
		require.NoError(t, enc.Encode(ts[i], rows[i]))
	}
	require.NoError(t, enc.Flush())
	return buf.Bytes()
}

func TestRowSize(t *testing.T) {
	assert.Equal(t, int64(32), RowSize(3))
	assert.Equal(t, 10, ExpectedRows(320, 3))
	assert.Equal(t, 9, ExpectedRows(319, 3))
	assert.Equal(t, 0, ExpectedRows(0, 3))
}

func TestDecodeRows(t *testing.T) {
	origin := int64(1577836800000000000)
	ts := []int64{origin, origin + 500_000_000, origin + 2_000_000_000}
	rows := []Row{
		{0, math.Float64bits(1.5), 7},
		{0, math.Float64bits(-2.25), 8},
		{0, math.Float64bits(0), math.MaxUint64},
	}
	data := encodeRows(t, 3, testEOL, ts, rows)
	require.Len(t, data, 3*32)

	dec := NewDecoder(bytes.NewReader(data), 3, testEOL, origin)
	colTypes := types.Schema{
		{Name: "t", DataType: "uint64"},
		{Name: "I", DataType: "double"},
		{Name: "n", DataType: "uint64"},
	}.Types()

	wantSeconds := []float64{0, 0.5, 2}
	for i := range ts {
		rec, err := dec.Decode()
		require.NoError(t, err)
		assert.Equal(t, ts[i], rec.TimestampNs)
		assert.True(t, rec.SentinelOK)
		assert.Equal(t, wantSeconds[i], rec.Row.Seconds())
		assert.Equal(t, rows[i][1], rec.Row.Uint64(1))
		assert.Equal(t, rows[i][2], rec.Row.Uint64(2))
		assert.Equal(t, types.Float64, rec.Row.Value(colTypes, 1).Type)
		assert.Equal(t, types.UInt64, rec.Row.Value(colTypes, 2).Type)
	}

	_, err := dec.Decode()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 3, dec.Rows())
	assert.Equal(t, 0, dec.IntegrityWarnings())
}

func TestValueString(t *testing.T) {
	colTypes := []types.ColumnType{types.Float64, types.Float64, types.UInt64}
	row := Row{math.Float64bits(0.25), math.Float64bits(1.5), 42}
	assert.Equal(t, "0.25", row.Value(colTypes, 0).String())
	assert.Equal(t, "1.5", row.Value(colTypes, 1).String())
	assert.Equal(t, "42", row.Value(colTypes, 2).String())
	assert.Len(t, row.Values(colTypes), 3)
}

func TestDecodeSentinelMismatchIsNotFatal(t *testing.T) {
	data := encodeRows(t, 2, 0x1234, []int64{10, 20}, []Row{{0, 1}, {0, 2}})

	dec := NewDecoder(bytes.NewReader(data), 2, testEOL, 10)
	for i := 0; i < 2; i++ {
		rec, err := dec.Decode()
		require.NoError(t, err)
		assert.False(t, rec.SentinelOK)
		assert.Equal(t, uint64(0x1234), rec.Sentinel)
	}
	assert.Equal(t, 2, dec.IntegrityWarnings())
}

func TestDecodeShortRead(t *testing.T) {
	data := encodeRows(t, 2, testEOL, []int64{10, 20}, []Row{{0, 1}, {0, 2}})
	truncated := data[:len(data)-5]

	dec := NewDecoder(bytes.NewReader(truncated), 2, testEOL, 0).WithPath("x.EDMdat")
	_, err := dec.Decode()
	require.NoError(t, err)

	_, err = dec.Decode()
	require.Error(t, err)
	assert.True(t, errors.Is(err, n2errors.ErrShortRead))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Equal(t, 1, dec.Rows())
}

func TestReadTimestampAt(t *testing.T) {
	data := encodeRows(t, 2, testEOL, []int64{111, 222}, []Row{{0, 1}, {0, 2}})
	r := bytes.NewReader(data)

	first, err := ReadTimestampAt(r, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(111), first)

	last, err := ReadTimestampAt(r, int64(len(data))-RowSize(2))
	require.NoError(t, err)
	assert.Equal(t, int64(222), last)

	_, err = ReadTimestampAt(r, int64(len(data))-4)
	assert.Error(t, err)
}
