// Package utf encodes and decodes @UTF tables: self-describing columnar
// binary tables with a shared text pool and blob pool.
//
// A table on the wire is the 4-byte magic "@UTF", a big-endian u32 body
// length and the body. The body is a 24-byte header, one descriptor per
// column, the fixed-width rows, the text pool and the blob pool. Offsets in
// the header are relative to the start of the body.
package utf

import (
	"bytes"
	"io"
	"math"

	"github.com/arkilian/cpkpack/internal/binio"
	cpkerrors "github.com/arkilian/cpkpack/internal/errors"
	"github.com/arkilian/cpkpack/pkg/types"
)

// Magic opens every encoded table.
const Magic = "@UTF"

// wrapperSize is the magic plus the u32 body length.
const wrapperSize = 8

const headerSize = 24

// encoder stages the variable parts of a table before anything is written.
// Emission only starts once every offset is known, so the output is
// produced in one forward pass.
type encoder struct {
	table *types.Table
	plans []columnPlan
	text  *textPool
	blobs blobPool

	nameOffset uint32
	columns    bytes.Buffer
	rows       bytes.Buffer
}

// Encode returns the full encoding of t, wrapper included.
func Encode(t *types.Table) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := Write(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes t to w and returns the layout it wrote. Nothing is written
// if the table is invalid or does not fit the format's field widths.
func Write(w io.Writer, t *types.Table) (Layout, error) {
	if err := t.Validate(); err != nil {
		return Layout{}, err
	}

	e := &encoder{table: t, plans: planColumns(t), text: newTextPool()}
	if err := e.stage(); err != nil {
		return Layout{}, err
	}
	layout, err := e.layout()
	if err != nil {
		return Layout{}, err
	}

	bw := binio.NewWriter(w)
	bw.Bytes([]byte(Magic))
	bw.Uint32(layout.BodySize)
	bw.Uint16(uint16(layout.Encoding))
	bw.Uint16(layout.RowsOffset)
	bw.Uint32(layout.StringsOffset)
	bw.Uint32(layout.BlobsOffset)
	bw.Uint32(layout.NameOffset)
	bw.Uint16(layout.ColumnCount)
	bw.Uint16(layout.RowWidth)
	bw.Uint32(layout.RowCount)
	bw.Bytes(e.columns.Bytes())
	bw.Bytes(e.rows.Bytes())
	bw.Bytes(e.text.buf)
	bw.Zeros(int(layout.BlobsOffset) - int(layout.StringsOffset) - e.text.len())
	bw.Bytes(e.blobs.buf)
	bw.Zeros(int(layout.BodySize) - int(layout.BlobsOffset) - e.blobs.len())
	if err := bw.Err(); err != nil {
		return Layout{}, err
	}
	return layout, nil
}

// stage interns the table name, then each column's name and constant, then
// the row values in row-major order, filling the descriptor and row buffers
// as it goes. Pool offsets depend on this order.
func (e *encoder) stage() error {
	var err error
	if e.nameOffset, err = e.text.add(e.table.Spec.Name); err != nil {
		return err
	}

	cw := binio.NewWriter(&e.columns)
	for j, col := range e.table.Spec.Columns {
		plan := e.plans[j]
		nameOffset, err := e.text.add(col.Name)
		if err != nil {
			return err
		}
		cw.Uint8(uint8(plan.mode)<<4 | uint8(col.Kind))
		cw.Uint32(nameOffset)
		if plan.mode == storageConstant {
			if err := e.writeValue(cw, plan.constant); err != nil {
				return err
			}
		}
	}

	rw := binio.NewWriter(&e.rows)
	for _, row := range e.table.Rows {
		for j, v := range row {
			if e.plans[j].mode != storageNormal {
				continue
			}
			if err := e.writeValue(rw, v); err != nil {
				return err
			}
		}
	}

	if err := cw.Err(); err != nil {
		return err
	}
	return rw.Err()
}

func (e *encoder) writeValue(w *binio.Writer, v types.Value) error {
	switch v.Kind() {
	case types.KindChars:
		off, err := e.text.add(v.Str())
		if err != nil {
			return err
		}
		w.Uint32(off)
	case types.KindBytes:
		blob := v.Blob()
		if uint64(len(blob)) > math.MaxUint32 {
			return cpkerrors.NewCapacityError("utf: bytes value of %d bytes exceeds u32 length", len(blob))
		}
		w.Uint32(e.blobs.add(blob))
		w.Uint32(uint32(len(blob)))
	default:
		w.UintN(v.Bits(), v.Kind().Width())
	}
	return nil
}

// layout computes the header fields from the staged buffers and rejects
// any value that overflows its field width.
func (e *encoder) layout() (Layout, error) {
	t := e.table
	width := rowWidth(t, e.plans)

	switch {
	case len(t.Spec.Columns) > math.MaxUint16:
		return Layout{}, cpkerrors.NewCapacityError("utf: table %q has %d columns, limit %d",
			t.Spec.Name, len(t.Spec.Columns), math.MaxUint16)
	case width > math.MaxUint16:
		return Layout{}, cpkerrors.NewCapacityError("utf: table %q row width %d exceeds u16", t.Spec.Name, width)
	case uint64(len(t.Rows)) > math.MaxUint32:
		return Layout{}, cpkerrors.NewCapacityError("utf: table %q has %d rows, limit %d",
			t.Spec.Name, len(t.Rows), uint64(math.MaxUint32))
	}

	rowsOffset := headerSize + e.columns.Len()
	if rowsOffset > math.MaxUint16 {
		return Layout{}, cpkerrors.NewCapacityError("utf: table %q row offset %d exceeds u16", t.Spec.Name, rowsOffset)
	}
	stringsOffset := uint64(rowsOffset) + uint64(e.rows.Len())
	blobsOffset := uint64(align8(int(stringsOffset) + e.text.len()))
	end := uint64(align8(int(blobsOffset) + e.blobs.len()))
	if end > math.MaxUint32 {
		return Layout{}, cpkerrors.NewCapacityError("utf: table %q body of %d bytes exceeds u32", t.Spec.Name, end)
	}

	return Layout{
		Encoding:        t.Spec.Encoding,
		RowsOffset:      uint16(rowsOffset),
		StringsOffset:   uint32(stringsOffset),
		BlobsOffset:     uint32(blobsOffset),
		NameOffset:      e.nameOffset,
		ColumnCount:     uint16(len(t.Spec.Columns)),
		RowWidth:        uint16(width),
		RowCount:        uint32(len(t.Rows)),
		BodySize:        uint32(end),
		DescriptorsEnd:  uint32(rowsOffset),
		RowsEnd:         uint32(stringsOffset),
		DefaultColumns:  e.countMode(storageDefault),
		ConstantColumns: e.countMode(storageConstant),
		NormalColumns:   e.countMode(storageNormal),
	}, nil
}

func (e *encoder) countMode(m storageMode) int {
	n := 0
	for _, p := range e.plans {
		if p.mode == m {
			n++
		}
	}
	return n
}
