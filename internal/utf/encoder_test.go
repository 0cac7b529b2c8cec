package utf

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	cpkerrors "github.com/arkilian/cpkpack/internal/errors"
	"github.com/arkilian/cpkpack/pkg/types"
)

func mustTable(t *testing.T, spec types.Spec, rows []types.Row) *types.Table {
	t.Helper()
	table, err := types.NewTable(spec, rows)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return table
}

func TestEncode_KnownBytes(t *testing.T) {
	table := mustTable(t, types.Spec{
		Name:     "T",
		Encoding: types.EncodingUTF8,
		Columns: []types.Column{
			{Name: "a", Kind: types.KindU1},
			{Name: "b", Kind: types.KindChars},
		},
	}, []types.Row{
		{types.Uint8(1), types.Chars("x")},
		{types.Uint8(2), types.Chars("x")},
	})

	got, err := Encode(table)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	want := []byte{
		'@', 'U', 'T', 'F', 0x00, 0x00, 0x00, 0x38,
		// header
		0x00, 0x01, // encoding
		0x00, 0x26, // rows offset
		0x00, 0x00, 0x00, 0x28, // strings offset
		0x00, 0x00, 0x00, 0x38, // blobs offset
		0x00, 0x00, 0x00, 0x07, // name offset
		0x00, 0x02, // columns
		0x00, 0x01, // row width
		0x00, 0x00, 0x00, 0x02, // rows
		// a: normal u1
		0x50, 0x00, 0x00, 0x00, 0x09,
		// b: constant chars "x"
		0x3A, 0x00, 0x00, 0x00, 0x0B, 0x00, 0x00, 0x00, 0x0D,
		// rows
		0x01, 0x02,
		// text pool
		'<', 'N', 'U', 'L', 'L', '>', 0x00, 'T', 0x00, 'a', 0x00, 'b', 0x00, 'x', 0x00,
		0x00, // pad to 8
	}
	if !bytes.Equal(got, want) {
		t.Errorf("encoding mismatch\n got % x\nwant % x", got, want)
	}
}

func TestEncode_StorageModes(t *testing.T) {
	spec := types.Spec{
		Name:     "modes",
		Encoding: types.EncodingUTF8,
		Columns: []types.Column{
			{Name: "zero", Kind: types.KindU4},
			{Name: "same", Kind: types.KindS2},
			{Name: "varies", Kind: types.KindF8},
			{Name: "empty", Kind: types.KindBytes},
		},
	}
	table := mustTable(t, spec, []types.Row{
		{types.Uint32(0), types.Int16(-7), types.Float64(1.5), types.Bytes(nil)},
		{types.Uint32(0), types.Int16(-7), types.Float64(2.5), types.Bytes([]byte{})},
	})

	var buf bytes.Buffer
	layout, err := Write(&buf, table)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if layout.DefaultColumns != 2 || layout.ConstantColumns != 1 || layout.NormalColumns != 1 {
		t.Errorf("unexpected modes: %s", layout)
	}
	if layout.RowWidth != 8 {
		t.Errorf("RowWidth = %d, want 8", layout.RowWidth)
	}

	body := buf.Bytes()[8:]
	descriptors := body[headerSize:layout.RowsOffset]
	wantPacking := []byte{0x14, 0x33, 0x59, 0x1B}
	// zero(5) same(5+2) varies(5) empty(5)
	offsets := []int{0, 5, 12, 17}
	for i, off := range offsets {
		if descriptors[off] != wantPacking[i] {
			t.Errorf("column %d packing = %#x, want %#x", i, descriptors[off], wantPacking[i])
		}
	}
}

func TestEncode_ZeroRows(t *testing.T) {
	table := mustTable(t, types.Spec{
		Name:     "empty",
		Encoding: types.EncodingUTF8,
		Columns: []types.Column{
			{Name: "a", Kind: types.KindU8},
			{Name: "b", Kind: types.KindChars},
		},
	}, nil)

	var buf bytes.Buffer
	layout, err := Write(&buf, table)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if layout.NormalColumns != 2 {
		t.Errorf("expected all columns normal, got %s", layout)
	}
	if layout.RowWidth != 0 || layout.RowCount != 0 {
		t.Errorf("RowWidth = %d RowCount = %d, want 0 0", layout.RowWidth, layout.RowCount)
	}
	if layout.StringsOffset != uint32(layout.RowsOffset) {
		t.Errorf("strings offset %d, want %d", layout.StringsOffset, layout.RowsOffset)
	}

	decoded, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !decoded.Equal(table) {
		t.Errorf("round trip mismatch")
	}
}

func TestEncode_TextPoolDoesNotDeduplicate(t *testing.T) {
	table := mustTable(t, types.Spec{
		Name:     "dup",
		Encoding: types.EncodingUTF8,
		Columns:  []types.Column{{Name: "dup", Kind: types.KindChars}},
	}, []types.Row{
		{types.Chars("dup")},
		{types.Chars("")},
		{types.Chars("dup")},
	})

	out, err := Encode(table)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if n := bytes.Count(out, []byte("dup\x00")); n != 4 {
		t.Errorf("expected 4 copies of \"dup\", got %d", n)
	}
	if n := bytes.Count(out, []byte(nullSentinel)); n != 1 {
		t.Errorf("expected one sentinel, got %d", n)
	}
}

func TestEncode_PoolsAreAligned(t *testing.T) {
	table := mustTable(t, types.Spec{
		Name:     "blobs",
		Encoding: types.EncodingUTF8,
		Columns: []types.Column{
			{Name: "data", Kind: types.KindBytes},
		},
	}, []types.Row{
		{types.Bytes([]byte{1, 2, 3})},
		{types.Bytes([]byte{4})},
	})

	var buf bytes.Buffer
	layout, err := Write(&buf, table)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if layout.BlobsOffset%8 != 0 || layout.BodySize%8 != 0 {
		t.Errorf("pools not aligned: %s", layout)
	}
	if int(layout.BodySize)+8 != buf.Len() {
		t.Errorf("wrapper size %d, body %d", buf.Len(), layout.BodySize)
	}
	blob := buf.Bytes()[8+layout.BlobsOffset:]
	if !bytes.HasPrefix(blob, []byte{1, 2, 3, 4}) {
		t.Errorf("blob pool = % x", blob[:8])
	}
}

func TestEncode_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		table *types.Table
		code  string
	}{
		{
			name: "kind mismatch",
			table: &types.Table{
				Spec: types.Spec{Name: "t", Columns: []types.Column{{Name: "a", Kind: types.KindU2}}},
				Rows: []types.Row{{types.Uint8(1)}},
			},
			code: cpkerrors.CodeInvalidSchema,
		},
		{
			name: "short row",
			table: &types.Table{
				Spec: types.Spec{Name: "t", Columns: []types.Column{{Name: "a", Kind: types.KindU2}}},
				Rows: []types.Row{{}},
			},
			code: cpkerrors.CodeInvalidSchema,
		},
		{
			name: "nul in text",
			table: &types.Table{
				Spec: types.Spec{Name: "t", Columns: []types.Column{{Name: "a", Kind: types.KindChars}}},
				Rows: []types.Row{{types.Chars("a\x00b")}},
			},
			code: cpkerrors.CodeInvalidSchema,
		},
		{
			name: "invalid utf-8 name",
			table: &types.Table{
				Spec: types.Spec{Name: "\xff"},
			},
			code: cpkerrors.CodeInvalidSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			_, err := Write(&buf, tt.table)
			if err == nil {
				t.Fatal("expected error")
			}
			if cpkerrors.GetCode(err) != tt.code {
				t.Errorf("code = %s, want %s", cpkerrors.GetCode(err), tt.code)
			}
			if buf.Len() != 0 {
				t.Errorf("wrote %d bytes on failure", buf.Len())
			}
		})
	}
}

func TestEncode_CapacityExceeded(t *testing.T) {
	// 8192 u8 columns give a row width of 65536.
	cols := make([]types.Column, 8192)
	row := make(types.Row, len(cols))
	for i := range cols {
		cols[i] = types.Column{Kind: types.KindU8}
		row[i] = types.Uint64(uint64(i))
	}
	other := make(types.Row, len(cols))
	for i := range other {
		other[i] = types.Uint64(uint64(i) + 1)
	}
	table := mustTable(t, types.Spec{Name: "wide", Columns: cols}, []types.Row{row, other})

	_, err := Encode(table)
	if !errors.Is(err, cpkerrors.ErrCapacityExceeded) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if !strings.Contains(err.Error(), "row width") {
		t.Errorf("unexpected message: %v", err)
	}
}
