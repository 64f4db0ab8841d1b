package record

import (
	"bufio"
	"errors"
	"io"
	"math"

	"github.com/rs/zerolog"

	n2errors "github.com/n2edm/n2read/internal/errors"
	"github.com/n2edm/n2read/internal/logger"
)

// Decoder reads rows sequentially from a data stream. It is not safe for
// concurrent use.
type Decoder struct {
	r        *bufio.Reader
	path     string
	numCols  int
	eol      uint64
	originNs int64
	buf      []byte

	rows     int
	warnings int
	log      zerolog.Logger
}

// NewDecoder returns a decoder for rows of numCols columns closed by eol.
// Timestamps are converted to seconds relative to originNs.
func NewDecoder(r io.Reader, numCols int, eol uint64, originNs int64) *Decoder {
	if numCols < 1 {
		numCols = 1
	}
	return &Decoder{
		r:        bufio.NewReaderSize(r, 64*1024),
		numCols:  numCols,
		eol:      eol,
		originNs: originNs,
		buf:      make([]byte, RowSize(numCols)),
		log:      logger.Get("record"),
	}
}

// WithPath sets the file name used in errors and log messages.
func (d *Decoder) WithPath(path string) *Decoder {
	d.path = path
	return d
}

// Decode reads the next row. It returns io.EOF when the stream ends exactly
// at a row boundary and a SHORT_READ error when it ends inside a row. A
// sentinel mismatch is not an error: the record is returned with
// SentinelOK unset and the mismatch is counted.
func (d *Decoder) Decode() (Record, error) {
	n, err := io.ReadFull(d.r, d.buf)
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return Record{}, io.EOF
		}
		return Record{}, n2errors.NewShortRead(d.path, d.rows, err).
			WithDetails(map[string]interface{}{"bytes": n, "row_size": len(d.buf)})
	}

	ts := int64(byteOrder.Uint64(d.buf))
	row := make(Row, d.numCols)
	row[0] = math.Float64bits(SecondsSince(ts, d.originNs))
	for i := 1; i < d.numCols; i++ {
		row[i] = byteOrder.Uint64(d.buf[i*WordSize:])
	}
	sentinel := byteOrder.Uint64(d.buf[d.numCols*WordSize:])

	rec := Record{TimestampNs: ts, Row: row, Sentinel: sentinel, SentinelOK: sentinel == d.eol}
	if !rec.SentinelOK {
		d.warnings++
		d.log.Error().
			Str("path", d.path).
			Int("row", d.rows).
			Uint64("eol", sentinel).
			Uint64("expected", d.eol).
			Msg("EOL is wrong")
	}
	d.rows++
	return rec, nil
}

// Rows returns the number of rows decoded so far.
func (d *Decoder) Rows() int {
	return d.rows
}

// IntegrityWarnings returns the number of sentinel mismatches seen so far.
func (d *Decoder) IntegrityWarnings() int {
	return d.warnings
}

// Encoder writes rows in the data file layout. Call Flush when done.
type Encoder struct {
	w       *bufio.Writer
	numCols int
	eol     uint64
	buf     []byte
}

// NewEncoder returns an encoder for rows of numCols columns.
func NewEncoder(w io.Writer, numCols int, eol uint64) *Encoder {
	if numCols < 1 {
		numCols = 1
	}
	return &Encoder{
		w:       bufio.NewWriterSize(w, 64*1024),
		numCols: numCols,
		eol:     eol,
		buf:     make([]byte, 0, RowSize(numCols)),
	}
}

// Encode writes one row: tsNs, then slots 1..N-1 of row, then the
// sentinel. Slot 0 is ignored because the timestamp is written raw. Missing
// slots are written as zero.
func (e *Encoder) Encode(tsNs int64, row Row) error {
	b := byteOrder.AppendUint64(e.buf[:0], uint64(tsNs))
	for i := 1; i < e.numCols; i++ {
		var v uint64
		if i < len(row) {
			v = row[i]
		}
		b = byteOrder.AppendUint64(b, v)
	}
	b = byteOrder.AppendUint64(b, e.eol)
	e.buf = b
	_, err := e.w.Write(b)
	return err
}

// Flush writes buffered rows to the underlying writer.
func (e *Encoder) Flush() error {
	return e.w.Flush()
}

// ReadTimestampAt reads the raw timestamp stored at byte offset off.
func ReadTimestampAt(r io.ReaderAt, off int64) (int64, error) {
	var b [WordSize]byte
	if n, err := r.ReadAt(b[:], off); n < WordSize {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return 0, err
	}
	return int64(byteOrder.Uint64(b[:])), nil
}
