package hdconf

import (
	"math"
	"strconv"
	"strings"
)

// Kind is the type of a setting.
type Kind int

const (
	KindGroup Kind = iota
	KindArray
	KindList
	KindInt
	KindInt64
	KindFloat
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindArray:
		return "array"
	case KindList:
		return "list"
	case KindInt:
		return "int"
	case KindInt64:
		return "int64"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Format is the preferred integer output base.
type Format int

const (
	FormatDefault Format = iota
	FormatHex
)

// Setting is one node of a document. Groups, arrays and lists hold
// children; scalars hold a value.
type Setting struct {
	Name     string
	Kind     Kind
	Format   Format
	Int      int64
	Float    float64
	Bool     bool
	Str      string
	Children []*Setting
	Line     int
}

// IsAggregate reports whether the setting holds children.
func (s *Setting) IsAggregate() bool {
	return s.Kind == KindGroup || s.Kind == KindArray || s.Kind == KindList
}

// Len returns the number of children of an aggregate, 0 for scalars.
func (s *Setting) Len() int {
	if s == nil || !s.IsAggregate() {
		return 0
	}
	return len(s.Children)
}

// Member returns the named child of a group.
func (s *Setting) Member(name string) *Setting {
	if s == nil || s.Kind != KindGroup {
		return nil
	}
	for _, c := range s.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Elem returns the i-th child of an aggregate.
func (s *Setting) Elem(i int) *Setting {
	if s == nil || !s.IsAggregate() || i < 0 || i >= len(s.Children) {
		return nil
	}
	return s.Children[i]
}

// Lookup resolves a path of names separated by '.', '/' or ':' with
// optional [n] element indexes, e.g. "columns/column_000/columnName" or
// "list.[2]".
func (s *Setting) Lookup(path string) *Setting {
	cur := s
	for _, part := range splitPath(path) {
		if cur == nil {
			return nil
		}
		if strings.HasPrefix(part, "[") && strings.HasSuffix(part, "]") {
			i, err := strconv.Atoi(part[1 : len(part)-1])
			if err != nil {
				return nil
			}
			cur = cur.Elem(i)
			continue
		}
		cur = cur.Member(part)
	}
	return cur
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.FieldsFunc(path, func(r rune) bool { return r == '.' || r == '/' || r == ':' }) {
		// "a[1]" is "a" followed by "[1]"
		for {
			i := strings.IndexByte(p[1:], '[') + 1
			if i <= 0 {
				break
			}
			parts = append(parts, p[:i])
			p = p[i:]
		}
		parts = append(parts, p)
	}
	return parts
}

// AsString returns the value of a string setting.
func (s *Setting) AsString() (string, bool) {
	if s == nil || s.Kind != KindString {
		return "", false
	}
	return s.Str, true
}

// AsInt64 returns the value of an int or int64 setting.
func (s *Setting) AsInt64() (int64, bool) {
	if s == nil || (s.Kind != KindInt && s.Kind != KindInt64) {
		return 0, false
	}
	return s.Int, true
}

// AsInt returns the value of an integer setting that fits in 32 bits.
func (s *Setting) AsInt() (int32, bool) {
	v, ok := s.AsInt64()
	if !ok || v < math.MinInt32 || v > math.MaxInt32 {
		return 0, false
	}
	return int32(v), true
}

// AsFloat returns the value of a float setting. Integers convert.
func (s *Setting) AsFloat() (float64, bool) {
	if s == nil {
		return 0, false
	}
	switch s.Kind {
	case KindFloat:
		return s.Float, true
	case KindInt, KindInt64:
		return float64(s.Int), true
	}
	return 0, false
}

// AsBool returns the value of a boolean setting.
func (s *Setting) AsBool() (bool, bool) {
	if s == nil || s.Kind != KindBool {
		return false, false
	}
	return s.Bool, true
}

// Constructors used when building documents to write.

// Group returns a group setting.
func Group(name string, children ...*Setting) *Setting {
	return &Setting{Name: name, Kind: KindGroup, Children: children}
}

// String returns a string setting.
func String(name, v string) *Setting {
	return &Setting{Name: name, Kind: KindString, Str: v}
}

// Int returns a 32-bit integer setting.
func Int(name string, v int32) *Setting {
	return &Setting{Name: name, Kind: KindInt, Int: int64(v)}
}

// Int64 returns a 64-bit integer setting, written with an L suffix.
func Int64(name string, v int64) *Setting {
	return &Setting{Name: name, Kind: KindInt64, Int: v}
}

// Float returns a float setting.
func Float(name string, v float64) *Setting {
	return &Setting{Name: name, Kind: KindFloat, Float: v}
}

// Bool returns a boolean setting.
func Bool(name string, v bool) *Setting {
	return &Setting{Name: name, Kind: KindBool, Bool: v}
}
