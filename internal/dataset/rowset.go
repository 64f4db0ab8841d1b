package dataset

import (
	"errors"
	"fmt"
	"math"

	n2errors "github.com/n2edm/n2read/internal/errors"
	"github.com/n2edm/n2read/internal/record"
)

// MaxCapacity is the largest number of rows a RowSet may hold.
const MaxCapacity = math.MaxInt32

var (
	// ErrNotEmpty is returned by Allocate on a RowSet that holds rows
	ErrNotEmpty = errors.New("row set is not empty")

	// ErrFull is returned by Append when capacity is exhausted
	ErrFull = errors.New("row set is full")
)

// RowSet holds the decoded rows of a dataset with their raw timestamps.
// It owns its rows: Take hands a row over and forgets it.
type RowSet struct {
	timestamps []int64
	rows       []record.Row
}

// NewRowSet returns an empty RowSet.
func NewRowSet() *RowSet {
	return &RowSet{}
}

// Len returns the number of rows.
func (s *RowSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rows)
}

// Cap returns the number of rows that fit without growing.
func (s *RowSet) Cap() int {
	if s == nil {
		return 0
	}
	return cap(s.rows)
}

// Allocate reserves room for n rows. The set must be empty.
func (s *RowSet) Allocate(n int) error {
	if len(s.rows) > 0 {
		return ErrNotEmpty
	}
	s.timestamps = nil
	s.rows = nil
	return s.Reserve(n)
}

// Reserve grows the capacity to at least n rows. Existing rows are kept.
func (s *RowSet) Reserve(n int) (err error) {
	if n <= cap(s.rows) {
		return nil
	}
	if n > MaxCapacity {
		return n2errors.NewOutOfMemory(fmt.Sprintf("cannot reserve %d rows", n), nil).
			WithDetails(map[string]interface{}{"requested": n, "max": MaxCapacity})
	}
	defer func() {
		if r := recover(); r != nil {
			err = n2errors.NewOutOfMemory(fmt.Sprintf("cannot reserve %d rows", n), fmt.Errorf("%v", r))
		}
	}()

	ts := make([]int64, len(s.timestamps), n)
	copy(ts, s.timestamps)
	rows := make([]record.Row, len(s.rows), n)
	copy(rows, s.rows)
	s.timestamps, s.rows = ts, rows
	return nil
}

// Append adds a row and takes ownership of it. It never grows the set.
func (s *RowSet) Append(ts int64, row record.Row) error {
	if len(s.rows) == cap(s.rows) {
		return ErrFull
	}
	s.timestamps = append(s.timestamps, ts)
	s.rows = append(s.rows, row)
	return nil
}

// Timestamp returns the raw timestamp of row i.
func (s *RowSet) Timestamp(i int) int64 {
	return s.timestamps[i]
}

// Row returns row i. It is nil once the row has been taken.
func (s *RowSet) Row(i int) record.Row {
	return s.rows[i]
}

// Timestamps returns the raw timestamps. The slice is shared.
func (s *RowSet) Timestamps() []int64 {
	if s == nil {
		return nil
	}
	return s.timestamps
}

// Take hands row i over to the caller and clears the slot.
func (s *RowSet) Take(i int) record.Row {
	row := s.rows[i]
	s.rows[i] = nil
	return row
}

// Clear releases every row and the capacity.
func (s *RowSet) Clear() {
	if s == nil {
		return
	}
	s.timestamps = nil
	s.rows = nil
}
