package types

import (
	"fmt"

	cpkerrors "github.com/arkilian/cpkpack/internal/errors"
)

// Row holds one value per column, in column order.
type Row []Value

// Table is a spec plus ordered rows. Row order is preserved end to end.
type Table struct {
	Spec Spec
	Rows []Row
}

// NewTable validates spec and rows once and returns the table. Every row
// must carry exactly one value per column and each value's kind must match
// its column's kind.
func NewTable(spec Spec, rows []Row) (*Table, error) {
	t := &Table{Spec: spec, Rows: rows}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate re-checks the invariants NewTable enforces.
func (t *Table) Validate() error {
	if err := t.Spec.Validate(); err != nil {
		return err
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Spec.Columns) {
			return cpkerrors.NewValidationError(cpkerrors.CodeInvalidSchema,
				fmt.Sprintf("table %q: row %d has %d values, want %d", t.Spec.Name, i, len(row), len(t.Spec.Columns)))
		}
		for j, v := range row {
			if col := t.Spec.Columns[j]; v.Kind() != col.Kind {
				return cpkerrors.NewValidationError(cpkerrors.CodeInvalidSchema,
					fmt.Sprintf("table %q: row %d column %q holds %s, want %s", t.Spec.Name, i, col.Name, v.Kind(), col.Kind))
			}
		}
	}
	return nil
}

// Value returns the value of the named column in row i.
func (t *Table) Value(i int, column string) (Value, bool) {
	j := t.Spec.ColumnIndex(column)
	if j < 0 || i < 0 || i >= len(t.Rows) {
		return Value{}, false
	}
	return t.Rows[i][j], true
}

// Equal reports whether two tables have equal specs and equal rows in the
// same order.
func (t *Table) Equal(o *Table) bool {
	if !t.Spec.Equal(o.Spec) || len(t.Rows) != len(o.Rows) {
		return false
	}
	for i := range t.Rows {
		if len(t.Rows[i]) != len(o.Rows[i]) {
			return false
		}
		for j := range t.Rows[i] {
			if !t.Rows[i][j].Equal(o.Rows[i][j]) {
				return false
			}
		}
	}
	return true
}
