package utf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"

	"github.com/arkilian/cpkpack/internal/binio"
	cpkerrors "github.com/arkilian/cpkpack/internal/errors"
	"github.com/arkilian/cpkpack/pkg/types"
)

// maxRowsHint caps the row slice preallocation so a corrupt row count
// cannot force a huge allocation up front.
const maxRowsHint = 1 << 16

// Decode parses a table from data, which must start with the magic. Bytes
// after the declared body are ignored.
//
// Row data must fit in the body, but a table whose columns are all default
// or constant occupies no row bytes, so its row count is bounded only by
// the u32 header field and every one of those rows is materialized.
func Decode(data []byte) (*types.Table, error) {
	t, _, err := DecodeLayout(data)
	return t, err
}

// DecodeLayout is Decode plus the header and observed layout, for callers
// that want to check Layout.Consistent.
func DecodeLayout(data []byte) (*types.Table, Layout, error) {
	if len(data) < wrapperSize || !bytes.HasPrefix(data, []byte(Magic)) {
		return ReadLayout(bytes.NewReader(data))
	}
	size := binary.BigEndian.Uint32(data[len(Magic):wrapperSize])
	if uint64(size) > uint64(len(data)-wrapperSize) {
		return nil, Layout{}, cpkerrors.NewTruncatedError(
			fmt.Sprintf("utf: body of %d bytes declared, %d present", size, len(data)-wrapperSize),
			io.ErrUnexpectedEOF)
	}
	return decodeBody(data[wrapperSize : wrapperSize+int(size)])
}

// Read parses one table from r, consuming exactly the wrapper and body.
func Read(r io.Reader) (*types.Table, error) {
	t, _, err := ReadLayout(r)
	return t, err
}

// ReadLayout is Read plus the layout.
func ReadLayout(r io.Reader) (*types.Table, Layout, error) {
	if err := binio.Expect(r, []byte(Magic)); err != nil {
		return nil, Layout{}, err
	}
	size, err := binio.ReadUint32(r)
	if err != nil {
		return nil, Layout{}, err
	}
	body, err := binio.ReadFull(r, int(size))
	if err != nil {
		return nil, Layout{}, err
	}
	return decodeBody(body)
}

// decoder resolves pool references against the raw body. Rows are read
// sequentially after the descriptors; only pool lookups use the header
// offsets.
type decoder struct {
	body     []byte
	encoding types.CharsEncoding
	strings  uint32
	blobs    uint32
}

func decodeBody(body []byte) (*types.Table, Layout, error) {
	var l Layout
	l.BodySize = uint32(len(body))
	r := bytes.NewReader(body)

	enc, err := binio.ReadUint16(r)
	if err != nil {
		return nil, l, err
	}
	l.Encoding = types.CharsEncoding(enc)
	if !l.Encoding.Valid() {
		return nil, l, cpkerrors.NewFormatError("utf: unknown text encoding %d", enc)
	}
	if l.RowsOffset, err = binio.ReadUint16(r); err != nil {
		return nil, l, err
	}
	if l.StringsOffset, err = binio.ReadUint32(r); err != nil {
		return nil, l, err
	}
	if l.BlobsOffset, err = binio.ReadUint32(r); err != nil {
		return nil, l, err
	}
	if l.NameOffset, err = binio.ReadUint32(r); err != nil {
		return nil, l, err
	}
	if l.ColumnCount, err = binio.ReadUint16(r); err != nil {
		return nil, l, err
	}
	if l.RowWidth, err = binio.ReadUint16(r); err != nil {
		return nil, l, err
	}
	if l.RowCount, err = binio.ReadUint32(r); err != nil {
		return nil, l, err
	}

	d := &decoder{body: body, encoding: l.Encoding, strings: l.StringsOffset, blobs: l.BlobsOffset}

	spec := types.Spec{Encoding: l.Encoding, Columns: make([]types.Column, l.ColumnCount)}
	if spec.Name, err = d.text(l.NameOffset); err != nil {
		return nil, l, err
	}

	plans := make([]columnPlan, l.ColumnCount)
	for j := range spec.Columns {
		packing, err := binio.ReadUint8(r)
		if err != nil {
			return nil, l, err
		}
		kind := types.Kind(packing & 0x0F)
		mode := storageMode(packing >> 4)
		if !kind.Valid() {
			return nil, l, cpkerrors.NewFormatError("utf: column %d has unknown kind %d", j, uint8(kind))
		}
		if !mode.valid() {
			return nil, l, cpkerrors.NewFormatError("utf: column %d has unknown storage %d", j, uint8(mode))
		}

		nameOffset, err := binio.ReadUint32(r)
		if err != nil {
			return nil, l, err
		}
		name, err := d.text(nameOffset)
		if err != nil {
			return nil, l, err
		}
		spec.Columns[j] = types.Column{Name: name, Kind: kind}

		plan := columnPlan{mode: mode}
		switch mode {
		case storageDefault:
			plan.constant = types.DefaultValue(kind)
			l.DefaultColumns++
		case storageConstant:
			if plan.constant, err = d.value(r, kind); err != nil {
				return nil, l, err
			}
			l.ConstantColumns++
		default:
			l.NormalColumns++
		}
		plans[j] = plan
	}
	l.DescriptorsEnd = uint32(len(body) - r.Len())

	width := 0
	for j, plan := range plans {
		if plan.mode == storageNormal {
			width += spec.Columns[j].Kind.Width()
		}
	}
	if width > 0 && uint64(l.RowCount)*uint64(width) > uint64(r.Len()) {
		return nil, l, cpkerrors.NewTruncatedError(
			fmt.Sprintf("utf: %d rows of %d bytes do not fit in %d remaining bytes", l.RowCount, width, r.Len()),
			io.ErrUnexpectedEOF)
	}

	hint := int(l.RowCount)
	if hint > maxRowsHint {
		hint = maxRowsHint
	}
	rows := make([]types.Row, 0, hint)
	for i := uint32(0); i < l.RowCount; i++ {
		row := make(types.Row, len(plans))
		for j, plan := range plans {
			if plan.mode != storageNormal {
				row[j] = plan.constant
				continue
			}
			if row[j], err = d.value(r, spec.Columns[j].Kind); err != nil {
				return nil, l, err
			}
		}
		rows = append(rows, row)
	}
	l.RowsEnd = uint32(len(body) - r.Len())

	return &types.Table{Spec: spec, Rows: rows}, l, nil
}

func (d *decoder) value(r io.Reader, kind types.Kind) (types.Value, error) {
	switch kind {
	case types.KindChars:
		off, err := binio.ReadUint32(r)
		if err != nil {
			return types.Value{}, err
		}
		s, err := d.text(off)
		if err != nil {
			return types.Value{}, err
		}
		return types.Chars(s), nil
	case types.KindBytes:
		off, err := binio.ReadUint32(r)
		if err != nil {
			return types.Value{}, err
		}
		n, err := binio.ReadUint32(r)
		if err != nil {
			return types.Value{}, err
		}
		b, err := d.blob(off, n)
		if err != nil {
			return types.Value{}, err
		}
		return types.Bytes(b), nil
	}
	raw, err := binio.ReadUintN(r, kind.Width())
	if err != nil {
		return types.Value{}, err
	}
	return types.UintValue(kind, raw), nil
}

// text resolves a text pool offset. Offset 0 is the empty string.
func (d *decoder) text(off uint32) (string, error) {
	if off == 0 {
		return "", nil
	}
	start := uint64(d.strings) + uint64(off)
	if start >= uint64(len(d.body)) {
		return "", cpkerrors.NewTruncatedError("utf: text offset past end of body", io.ErrUnexpectedEOF)
	}
	raw := d.body[start:]
	end := bytes.IndexByte(raw, 0)
	if end < 0 {
		return "", cpkerrors.NewTruncatedError("utf: unterminated text value", io.ErrUnexpectedEOF)
	}
	s, err := DecodeText(d.encoding, raw[:end])
	if err != nil {
		return "", cpkerrors.NewFormatError("utf: text at offset %d: %v", off, err)
	}
	return s, nil
}

// DecodeText converts a pooled text value to a string using the table's
// declared encoding. Writers always store UTF-8, so text declared CP932
// only reads back unchanged when it is ASCII.
func DecodeText(enc types.CharsEncoding, raw []byte) (string, error) {
	if enc == types.EncodingCP932 {
		decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("not cp932: %w", err)
		}
		return string(decoded), nil
	}
	if !utf8.Valid(raw) {
		return "", errors.New("not valid UTF-8")
	}
	return string(raw), nil
}

// blob resolves a blob pool reference, copying the bytes out of the body.
func (d *decoder) blob(off, n uint32) ([]byte, error) {
	start := uint64(d.blobs) + uint64(off)
	end := start + uint64(n)
	if end > uint64(len(d.body)) {
		return nil, cpkerrors.NewTruncatedError("utf: blob past end of body", io.ErrUnexpectedEOF)
	}
	out := make([]byte, n)
	copy(out, d.body[start:end])
	return out, nil
}
