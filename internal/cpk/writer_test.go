package cpk

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	cpkerrors "github.com/arkilian/cpkpack/internal/errors"
	"github.com/arkilian/cpkpack/pkg/types"
)

// memFile is an in-memory io.WriteSeeker that grows on write, like a file.
type memFile struct {
	buf []byte
	pos int64
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		m.buf = append(m.buf, make([]byte, end-int64(len(m.buf)))...)
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		m.pos = offset
	case io.SeekCurrent:
		m.pos += offset
	case io.SeekEnd:
		m.pos = int64(len(m.buf)) + offset
	}
	return m.pos, nil
}

func (m *memFile) reader() *bytes.Reader { return bytes.NewReader(m.buf) }

func newTestWriter(t *testing.T, cfg Config) (*Writer, *memFile) {
	t.Helper()
	f := &memFile{}
	w, err := NewWriter(f, cfg)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	return w, f
}

func TestWriter_ArchiveIdentity(t *testing.T) {
	w, f := newTestWriter(t, Config{Alignment: 16, ToolVersion: "cpkpack-test"})

	// Accepted out of name order; the file table must still be sorted.
	if err := w.Accept(2, "b.bin", strings.NewReader("BB")); err != nil {
		t.Fatalf("Accept b.bin failed: %v", err)
	}
	if err := w.Accept(1, "a.bin", strings.NewReader("AAAA")); err != nil {
		t.Fatalf("Accept a.bin failed: %v", err)
	}
	layout, err := w.Close()
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if layout.ContentOffset != BodyOffset {
		t.Errorf("ContentOffset = %d, want %d", layout.ContentOffset, BodyOffset)
	}
	if layout.ContentSize != 20 || layout.TotalSize != 6 {
		t.Errorf("ContentSize = %d TotalSize = %d, want 20 6", layout.ContentSize, layout.TotalSize)
	}
	if layout.End != int64(len(f.buf)) || f.pos != layout.End {
		t.Errorf("stream end %d, position %d, layout end %d", len(f.buf), f.pos, layout.End)
	}
	if got := string(f.buf[2048:2050]); got != "BB" {
		t.Errorf("payload at 2048 = %q", got)
	}
	if got := string(f.buf[2064:2068]); got != "AAAA" {
		t.Errorf("payload at 2064 = %q", got)
	}

	archive, err := Inspect(f.reader())
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if archive.Ciphered {
		t.Error("expected plain tables")
	}

	wantTOC := []types.Row{
		{types.Chars(""), types.Chars("a.bin"), types.Uint32(4), types.Uint32(4), types.Uint64(16), types.Uint32(1), types.Chars("")},
		{types.Chars(""), types.Chars("b.bin"), types.Uint32(2), types.Uint32(2), types.Uint64(0), types.Uint32(2), types.Chars("")},
	}
	if !archive.TOC.Equal(&types.Table{Spec: TOCSpec, Rows: wantTOC}) {
		t.Errorf("file table mismatch: %+v", archive.TOC.Rows)
	}

	wantITOC := []types.Row{
		{types.Int32(1), types.Int32(0)},
		{types.Int32(2), types.Int32(1)},
	}
	if !archive.ITOC.Equal(&types.Table{Spec: ITOCSpec, Rows: wantITOC}) {
		t.Errorf("id index mismatch: %+v", archive.ITOC.Rows)
	}

	checks := map[string]types.Value{
		"ContentOffset":   types.Uint64(2048),
		"ContentSize":     types.Uint64(20),
		"TocOffset":       types.Uint64(uint64(layout.TocOffset)),
		"ItocOffset":      types.Uint64(uint64(layout.ItocOffset)),
		"EnabledDataSize": types.Uint64(6),
		"Files":           types.Uint32(2),
		"Version":         types.Uint16(FormatVersion),
		"Revision":        types.Uint16(FormatRevision),
		"Align":           types.Uint16(16),
		"Sorted":          types.Uint16(1),
		"CpkMode":         types.Uint32(CpkMode),
		"Tvers":           types.Chars("cpkpack-test"),
		"CrcTable":        types.Bytes(nil),
	}
	for column, want := range checks {
		got, ok := archive.HeaderValue(column)
		if !ok || !got.Equal(want) {
			t.Errorf("header %s = %v, want %v", column, got, want)
		}
	}

	if len(archive.Files) != 2 || archive.Files[0].Offset != 2064 || archive.Files[1].Offset != 2048 {
		t.Errorf("unexpected files: %+v", archive.Files)
	}
}

func TestWriter_IDIndexOrder(t *testing.T) {
	w, f := newTestWriter(t, Config{Alignment: 8})
	for _, file := range []struct {
		id   int64
		name string
	}{{9, "a"}, {3, "c"}, {5, "b"}} {
		if err := w.Accept(file.id, file.name, strings.NewReader(file.name)); err != nil {
			t.Fatalf("Accept %s failed: %v", file.name, err)
		}
	}
	if _, err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	archive, err := Inspect(f.reader())
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}

	wantITOC := []types.Row{
		{types.Int32(3), types.Int32(2)},
		{types.Int32(5), types.Int32(1)},
		{types.Int32(9), types.Int32(0)},
	}
	if !archive.ITOC.Equal(&types.Table{Spec: ITOCSpec, Rows: wantITOC}) {
		t.Errorf("id index mismatch: %+v", archive.ITOC.Rows)
	}

	idCol := TOCSpec.ColumnIndex("ID")
	for _, row := range archive.ITOC.Rows {
		tocRow := archive.TOC.Rows[row[1].Int()]
		if tocRow[idCol].Uint() != uint64(row[0].Int()) {
			t.Errorf("id %d points at file table row with id %d", row[0].Int(), tocRow[idCol].Uint())
		}
	}
}

func TestWriter_CipheredTables(t *testing.T) {
	w, f := newTestWriter(t, Config{Alignment: 32, CipherTables: true})
	if err := w.Accept(7, "x.dat", strings.NewReader("payload")); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	layout, err := w.Close()
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if bytes.Contains(f.buf[layout.TocOffset:layout.TocOffset+layout.TocSize], []byte("@UTF")) {
		t.Error("file table stored in the clear")
	}
	if f.buf[4] != byte(flagCiphered) || f.buf[layout.TocOffset+4] != byte(flagCiphered) {
		t.Error("expected ciphered chunk flags")
	}

	archive, err := Inspect(f.reader())
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if !archive.Ciphered || len(archive.Files) != 1 || archive.Files[0].Name != "x.dat" {
		t.Errorf("unexpected archive: %+v", archive.Files)
	}
}

func TestWriter_DuplicateRejection(t *testing.T) {
	w, f := newTestWriter(t, Config{Alignment: 8})
	if err := w.Accept(1, "a.bin", strings.NewReader("first")); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	size := len(f.buf)

	err := w.Accept(1, "c.bin", strings.NewReader("dup id"))
	if !errors.Is(err, cpkerrors.ErrDuplicateKey) {
		t.Errorf("expected duplicate id error, got %v", err)
	}
	err = w.Accept(2, "a.bin", strings.NewReader("dup name"))
	if !errors.Is(err, cpkerrors.ErrDuplicateKey) {
		t.Errorf("expected duplicate name error, got %v", err)
	}
	if len(f.buf) != size {
		t.Errorf("rejected files changed the stream: %d -> %d bytes", size, len(f.buf))
	}

	// Neither rejected call may have claimed its other key.
	if err := w.Accept(2, "c.bin", strings.NewReader("second")); err != nil {
		t.Fatalf("Accept after rejections failed: %v", err)
	}

	layout, err := w.Close()
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if len(layout.Entries) != 2 || layout.Entries[0].Name != "a.bin" || layout.Entries[0].Size != 5 {
		t.Errorf("unexpected entries: %+v", layout.Entries)
	}
}

func TestWriter_IDRange(t *testing.T) {
	w, _ := newTestWriter(t, Config{Alignment: 1})
	for _, id := range []int64{-1, MaxFileID + 1} {
		err := w.Accept(id, "f", strings.NewReader(""))
		if cpkerrors.GetCategory(err) != cpkerrors.ErrCategoryValidation {
			t.Errorf("id %d: expected validation error, got %v", id, err)
		}
	}
	if err := w.Accept(MaxFileID, "f", strings.NewReader("")); err != nil {
		t.Errorf("largest id rejected: %v", err)
	}
}

func TestWriter_HeaderCapacity(t *testing.T) {
	w, f := newTestWriter(t, Config{Alignment: 4, Comment: strings.Repeat("c", 4096)})
	if err := w.Accept(1, "a.bin", strings.NewReader("AAAA")); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	_, err := w.Close()
	if !errors.Is(err, cpkerrors.ErrCapacityExceeded) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if !bytes.Equal(f.buf[:BodyOffset], make([]byte, BodyOffset)) {
		t.Error("header region was written despite the failure")
	}
}

func TestWriter_Lifecycle(t *testing.T) {
	w, _ := newTestWriter(t, DefaultConfig())
	if _, err := w.Close(); err != nil {
		t.Fatalf("Close of empty archive failed: %v", err)
	}
	if err := w.Accept(1, "late", strings.NewReader("x")); !errors.Is(err, cpkerrors.ErrWriterClosed) {
		t.Errorf("Accept after Close: got %v", err)
	}
	if _, err := w.Close(); !errors.Is(err, cpkerrors.ErrWriterClosed) {
		t.Errorf("second Close: got %v", err)
	}
}

func TestWriter_EmptyArchive(t *testing.T) {
	w, f := newTestWriter(t, Config{Alignment: 2048})
	layout, err := w.Close()
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if layout.ContentSize != 0 || layout.TocOffset != BodyOffset {
		t.Errorf("unexpected layout: %+v", layout)
	}

	archive, err := Inspect(f.reader())
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if len(archive.TOC.Rows) != 0 || len(archive.ITOC.Rows) != 0 || len(archive.Files) != 0 {
		t.Errorf("expected empty tables")
	}
}

func TestWriter_RandomPadding(t *testing.T) {
	w, f := newTestWriter(t, Config{Alignment: 512, RandomizePadding: true})
	if err := w.Accept(1, "a", strings.NewReader("A")); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	layout, err := w.Close()
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	gap := f.buf[BodyOffset+1 : layout.TocOffset]
	if bytes.Equal(gap, make([]byte, len(gap))) {
		t.Error("expected random padding bytes")
	}
	if _, err := Inspect(f.reader()); err != nil {
		t.Errorf("Inspect failed: %v", err)
	}
}

func TestNewWriter_InvalidConfig(t *testing.T) {
	for _, alignment := range []int{0, -4, 1 << 16} {
		_, err := NewWriter(&memFile{}, Config{Alignment: alignment})
		if cpkerrors.GetCode(err) != cpkerrors.CodeInvalidConfig {
			t.Errorf("alignment %d: got %v", alignment, err)
		}
	}
}

func TestWriter_FileOffsetRelativeToContent(t *testing.T) {
	w, f := newTestWriter(t, Config{Alignment: 4096})
	if err := w.Accept(1, "a.bin", strings.NewReader("A")); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if err := w.Accept(2, "b.bin", strings.NewReader("B")); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	layout, err := w.Close()
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if layout.ContentOffset != 4096 {
		t.Fatalf("ContentOffset = %d, want 4096", layout.ContentOffset)
	}

	archive, err := Inspect(f.reader())
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	col := TOCSpec.ColumnIndex("FileOffset")
	for i, want := range []uint64{0, 4096} {
		if got := archive.TOC.Rows[i][col].Uint(); got != want {
			t.Errorf("row %d FileOffset = %d, want %d", i, got, want)
		}
	}
	if archive.Files[0].Offset != 4096 || archive.Files[1].Offset != 8192 {
		t.Errorf("unexpected absolute offsets: %+v", archive.Files)
	}
	if string(f.buf[4096]) != "A" || string(f.buf[8192]) != "B" {
		t.Error("payloads not at their absolute offsets")
	}
}
