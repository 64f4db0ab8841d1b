package merge

import (
	"github.com/n2edm/n2read/internal/dataset"
	"github.com/n2edm/n2read/pkg/types"
)

// Session merges successive datasets into one accumulator, carrying the
// decimation remainder from one dataset to the next.
type Session struct {
	spec      types.FilterSpec
	remaining uint32
	acc       *dataset.Dataset
	files     int
}

// NewSession returns a session applying spec.
func NewSession(spec types.FilterSpec) *Session {
	return &Session{spec: spec}
}

// Add merges the rows of ds. The first dataset added supplies the metadata
// of the result. The rows taken from ds are no longer held by ds.
func (s *Session) Add(ds *dataset.Dataset) (int, error) {
	if s.acc == nil {
		s.acc = ds.CloneShell()
		s.acc.Filter = s.spec
	}
	if ds.Rows == nil {
		ds.Rows = dataset.NewRowSet()
	}
	n, err := Merge(s.acc.Rows, ds.Rows, s.spec, &s.remaining)
	if ds.LastTimestampNs > s.acc.LastTimestampNs {
		s.acc.LastTimestampNs = ds.LastTimestampNs
	}
	if ds.LastWriteNs > s.acc.LastWriteNs {
		s.acc.LastWriteNs = ds.LastWriteNs
	}
	s.files++
	return n, err
}

// Result returns the accumulated dataset, or nil before the first Add.
func (s *Session) Result() *dataset.Dataset {
	return s.acc
}

// Remaining returns the rows left over since the last decimation step.
func (s *Session) Remaining() uint32 {
	return s.remaining
}

// Files returns the number of datasets added.
func (s *Session) Files() int {
	return s.files
}

// Full reports whether the result already holds MaxRows rows.
func (s *Session) Full() bool {
	return s.acc != nil && s.spec.Capped(s.acc.Len())
}
