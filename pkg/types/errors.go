package types

import "errors"

// Schema and layout errors
var (
	// ErrEmptySchema is returned when a schema has no column at all
	ErrEmptySchema = errors.New("schema has no columns")

	// ErrUnknownLayout is returned when a layout name is neither "sharded" nor "flat"
	ErrUnknownLayout = errors.New("unknown directory layout")
)
