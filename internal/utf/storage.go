package utf

import (
	"fmt"

	"github.com/arkilian/cpkpack/pkg/types"
)

// storageMode says where a column's values live. It is stored in the high
// nibble of the column descriptor's packing byte.
type storageMode uint8

const (
	// storageDefault columns hold the kind default in every row and are
	// stored nowhere.
	storageDefault storageMode = 1
	// storageConstant columns hold one non-default value in every row; it is
	// stored once, inline in the column descriptor.
	storageConstant storageMode = 3
	// storageNormal columns are stored once per row.
	storageNormal storageMode = 5
)

func (m storageMode) valid() bool {
	return m == storageDefault || m == storageConstant || m == storageNormal
}

func (m storageMode) String() string {
	switch m {
	case storageDefault:
		return "default"
	case storageConstant:
		return "constant"
	case storageNormal:
		return "normal"
	}
	return fmt.Sprintf("storage(%d)", uint8(m))
}

// columnPlan is the storage decision for one column. constant is the value
// every row shares when mode is not storageNormal.
type columnPlan struct {
	mode     storageMode
	constant types.Value
}

// planColumns decides each column's storage mode from its values. It runs
// once per encode, before any byte is emitted. A table without rows stores
// every column as normal, which costs nothing since there are no rows.
func planColumns(t *types.Table) []columnPlan {
	plans := make([]columnPlan, len(t.Spec.Columns))
	for j := range t.Spec.Columns {
		if len(t.Rows) == 0 {
			plans[j] = columnPlan{mode: storageNormal}
			continue
		}

		first := t.Rows[0][j]
		constant := true
		for _, row := range t.Rows[1:] {
			if !row[j].Equal(first) {
				constant = false
				break
			}
		}

		switch {
		case !constant:
			plans[j] = columnPlan{mode: storageNormal}
		case first.IsDefault():
			plans[j] = columnPlan{mode: storageDefault, constant: first}
		default:
			plans[j] = columnPlan{mode: storageConstant, constant: first}
		}
	}
	return plans
}

// rowWidth is the byte width every row occupies: the sum of the widths of
// the normal columns, or 0 for a table without rows.
func rowWidth(t *types.Table, plans []columnPlan) int {
	if len(t.Rows) == 0 {
		return 0
	}
	width := 0
	for j, p := range plans {
		if p.mode == storageNormal {
			width += t.Spec.Columns[j].Kind.Width()
		}
	}
	return width
}
