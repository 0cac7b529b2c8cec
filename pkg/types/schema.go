package types

import (
	"fmt"

	cpkerrors "github.com/arkilian/cpkpack/internal/errors"
)

// Column is a named, typed column. Names are not required to be unique by
// the format.
type Column struct {
	Name string `json:"name" yaml:"name"`
	Kind Kind   `json:"kind" yaml:"kind"`
}

// Spec is the schema of a table: its name, ordered columns and the code
// page used to decode its text values.
type Spec struct {
	Name     string        `json:"name" yaml:"name"`
	Columns  []Column      `json:"columns" yaml:"columns"`
	Encoding CharsEncoding `json:"encoding" yaml:"encoding"`
}

// Validate checks that every column has a known kind and that the encoding
// is known.
func (s Spec) Validate() error {
	if !s.Encoding.Valid() {
		return cpkerrors.NewValidationError(cpkerrors.CodeInvalidSchema,
			fmt.Sprintf("table %q: unknown text encoding %d", s.Name, uint16(s.Encoding)))
	}
	for i, c := range s.Columns {
		if !c.Kind.Valid() {
			return cpkerrors.NewValidationError(cpkerrors.CodeInvalidSchema,
				fmt.Sprintf("table %q: column %d (%q) has unknown kind %d", s.Name, i, c.Name, uint8(c.Kind)))
		}
	}
	return nil
}

// ColumnIndex returns the position of the first column named name, or -1.
func (s Spec) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Equal reports whether two specs have the same name, encoding and columns
// in the same order.
func (s Spec) Equal(o Spec) bool {
	if s.Name != o.Name || s.Encoding != o.Encoding || len(s.Columns) != len(o.Columns) {
		return false
	}
	for i := range s.Columns {
		if s.Columns[i] != o.Columns[i] {
			return false
		}
	}
	return true
}
