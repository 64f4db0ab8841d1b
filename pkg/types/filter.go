package types

// FilterSpec selects which rows a merge keeps.
type FilterSpec struct {
	// Decimation keeps every Nth row; 0 and 1 keep every row
	Decimation uint32 `json:"decimation" yaml:"decimation"`

	// MaxRows caps the destination row count; 0 is unbounded
	MaxRows uint32 `json:"max_rows" yaml:"max_rows"`

	// StartTimestampNs is the inclusive lower time bound; 0 is unbounded
	StartTimestampNs int64 `json:"start_timestamp_ns" yaml:"start_timestamp_ns"`

	// EndTimestampNs is the inclusive upper time bound; 0 is unbounded
	EndTimestampNs int64 `json:"end_timestamp_ns" yaml:"end_timestamp_ns"`
}

// EffectiveDecimation returns the decimation step, never less than 1.
func (f FilterSpec) EffectiveDecimation() uint32 {
	if f.Decimation == 0 {
		return 1
	}
	return f.Decimation
}

// InWindow reports whether ts lies within [StartTimestampNs, EndTimestampNs],
// treating a zero bound as open.
func (f FilterSpec) InWindow(ts int64) bool {
	if f.StartTimestampNs != 0 && ts < f.StartTimestampNs {
		return false
	}
	if f.EndTimestampNs != 0 && ts > f.EndTimestampNs {
		return false
	}
	return true
}

// Capped reports whether n rows reach the MaxRows limit.
func (f FilterSpec) Capped(n int) bool {
	return f.MaxRows > 0 && n >= int(f.MaxRows)
}
