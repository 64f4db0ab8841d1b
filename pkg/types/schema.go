// Package types provides the core data types shared by the N2 EDM reader
// packages: column schemas, row filters, directory layouts and run spans.
package types

import "fmt"

// ColumnType is the storage interpretation of one 8-byte column slot.
type ColumnType uint8

const (
	// UInt64 columns hold raw unsigned 64-bit integers. Unrecognized type
	// tags are read as UInt64 as well.
	UInt64 ColumnType = iota

	// Float64 columns hold IEEE-754 doubles.
	Float64
)

// Type tags as they appear in columnDataType settings.
const (
	TagFloat64 = "double"
	TagUInt64  = "uint64"
)

// ParseColumnType maps a columnDataType tag to a ColumnType. The boolean
// reports whether the tag was one of the two known values.
func ParseColumnType(tag string) (ColumnType, bool) {
	switch tag {
	case TagFloat64:
		return Float64, true
	case TagUInt64:
		return UInt64, true
	default:
		return UInt64, false
	}
}

func (t ColumnType) String() string {
	if t == Float64 {
		return TagFloat64
	}
	return TagUInt64
}

// Column describes one column of a dataset.
type Column struct {
	// Name is the columnName setting
	Name string `json:"name" yaml:"name"`

	// Description is the columnDescription setting, usually a unit
	Description string `json:"description" yaml:"description"`

	// DataType is the raw columnDataType tag as declared
	DataType string `json:"data_type" yaml:"data_type"`
}

// Type returns the interpretation of the column's slots.
func (c Column) Type() ColumnType {
	t, _ := ParseColumnType(c.DataType)
	return t
}

// Label returns "name (description)", or just the name when there is no
// description.
func (c Column) Label() string {
	if c.Description == "" {
		return c.Name
	}
	return fmt.Sprintf("%s (%s)", c.Name, c.Description)
}

// Schema is the ordered column list of a dataset. Column 0 is always the
// record timestamp.
type Schema []Column

// Validate checks that the schema has at least the timestamp column.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return ErrEmptySchema
	}
	return nil
}

// Types returns the slot interpretation of every column. Column 0 is
// always Float64 because decoders rewrite it as seconds since origin.
func (s Schema) Types() []ColumnType {
	types := make([]ColumnType, len(s))
	for i, c := range s {
		types[i] = c.Type()
	}
	if len(types) > 0 {
		types[0] = Float64
	}
	return types
}

// Labels returns Column.Label for every column.
func (s Schema) Labels() []string {
	labels := make([]string, len(s))
	for i, c := range s {
		labels[i] = c.Label()
	}
	return labels
}

// Clone returns a deep copy of the schema.
func (s Schema) Clone() Schema {
	if s == nil {
		return nil
	}
	out := make(Schema, len(s))
	copy(out, s)
	return out
}
