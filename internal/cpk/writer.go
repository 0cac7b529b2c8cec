package cpk

import (
	"crypto/rand"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	cpkerrors "github.com/arkilian/cpkpack/internal/errors"
	"github.com/arkilian/cpkpack/internal/utf"
	"github.com/arkilian/cpkpack/pkg/types"
)

// MaxFileID is the largest id a file may carry. Ids are stored as u4 in
// the file table and as s4 in the id index.
const MaxFileID = math.MaxInt32

// MaxFileSize is the largest payload the file table can describe.
const MaxFileSize = math.MaxUint32

// Entry is a file accepted into the archive.
type Entry struct {
	ID   uint32
	Name string
	// Offset is the absolute position of the payload in the archive.
	Offset int64
	Size   int64
}

// Layout summarizes a finished archive.
type Layout struct {
	ContentOffset int64
	ContentSize   int64
	TocOffset     int64
	TocSize       int64
	ItocOffset    int64
	ItocSize      int64
	HeaderSize    int64
	End           int64

	// TotalSize is the sum of all payload sizes.
	TotalSize int64

	// Entries are sorted by name, in file table order.
	Entries []Entry

	// TOC is the encoded file table before framing and cipher.
	TOC []byte
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the entry the writer logs through.
func WithLogger(log *logrus.Entry) Option {
	return func(w *Writer) {
		w.log = log
	}
}

// Writer builds an archive on a seekable stream. Files are copied in as
// they are accepted; the tables are written on Close, and the header last,
// at offset 0.
//
// A Writer is not safe for concurrent use. After any I/O error the stream
// contents are undefined and the caller should discard them.
type Writer struct {
	ws  io.WriteSeeker
	cfg Config
	log *logrus.Entry

	pos          int64
	contentStart int64
	entries      []Entry
	ids          map[uint32]struct{}
	names        map[string]struct{}
	closed       bool
	err          error
}

// NewWriter validates cfg, positions ws at the start of the content region
// and returns a writer ready to accept files.
func NewWriter(ws io.WriteSeeker, cfg Config, opts ...Option) (*Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &Writer{
		ws:    ws,
		cfg:   cfg,
		ids:   make(map[uint32]struct{}),
		names: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		w.log = logrus.NewEntry(l)
	}

	if err := w.seek(BodyOffset); err != nil {
		return nil, err
	}
	if err := w.align(); err != nil {
		return nil, err
	}
	w.contentStart = w.pos
	return w, nil
}

// ContentOffset returns where the content region starts.
func (w *Writer) ContentOffset() int64 { return w.contentStart }

// Accept copies the contents of r into the archive under id and name. A
// duplicate id or name is rejected before anything is written.
func (w *Writer) Accept(id int64, name string, r io.Reader) error {
	if w.closed {
		return cpkerrors.ErrWriterClosed
	}
	if w.err != nil {
		return w.err
	}
	if id < 0 || id > MaxFileID {
		return cpkerrors.NewValidationError(cpkerrors.CodeInvalidManifest,
			fmt.Sprintf("cpk: file id %d out of range 0..%d", id, MaxFileID))
	}
	if _, ok := w.ids[uint32(id)]; ok {
		return cpkerrors.NewDuplicateKeyError("cpk: duplicate id: %d", id)
	}
	if _, ok := w.names[name]; ok {
		return cpkerrors.NewDuplicateKeyError("cpk: duplicate name: %q", name)
	}

	if err := w.align(); err != nil {
		return err
	}
	offset := w.pos
	n, err := io.Copy(w.ws, io.LimitReader(r, MaxFileSize+1))
	w.pos += n
	if err != nil {
		return w.fail(fmt.Errorf("cpk: copy %q: %w", name, err))
	}
	if n > MaxFileSize {
		return w.fail(cpkerrors.NewCapacityError("cpk: file %q exceeds %d bytes", name, int64(MaxFileSize)))
	}

	w.ids[uint32(id)] = struct{}{}
	w.names[name] = struct{}{}
	w.entries = append(w.entries, Entry{ID: uint32(id), Name: name, Offset: offset, Size: n})

	w.log.WithFields(logrus.Fields{
		"id":     id,
		"name":   name,
		"offset": offset,
		"size":   n,
	}).Debug("file accepted")
	return nil
}

// Close writes the file table, the id index and the header, and leaves the
// stream positioned at its end. The writer cannot be used afterwards, even
// if Close fails.
func (w *Writer) Close() (*Layout, error) {
	if w.closed {
		return nil, cpkerrors.ErrWriterClosed
	}
	w.closed = true
	if w.err != nil {
		return nil, w.err
	}

	l := &Layout{
		ContentOffset: w.contentStart,
		ContentSize:   w.pos - w.contentStart,
	}

	sort.Slice(w.entries, func(i, j int) bool { return w.entries[i].Name < w.entries[j].Name })
	l.Entries = w.entries

	toc, itoc := w.buildTables()
	var tocData, itocData []byte
	var g errgroup.Group
	g.Go(func() error {
		var err error
		tocData, err = utf.Encode(toc)
		return err
	})
	g.Go(func() error {
		var err error
		itocData, err = utf.Encode(itoc)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("cpk: encode tables: %w", err)
	}
	l.TOC = tocData

	var err error
	if l.TocOffset, l.TocSize, err = w.writeTableChunk(TagTOC, tocData); err != nil {
		return nil, err
	}
	if l.ItocOffset, l.ItocSize, err = w.writeTableChunk(TagITOC, itocData); err != nil {
		return nil, err
	}
	l.End = w.pos
	for _, e := range l.Entries {
		l.TotalSize += e.Size
	}

	header, err := w.buildHeader(l)
	if err != nil {
		return nil, err
	}
	l.HeaderSize = int64(len(header))

	if err := w.seek(0); err != nil {
		return nil, err
	}
	if err := w.write(header); err != nil {
		return nil, err
	}
	if err := w.pad(BodyOffset - w.pos); err != nil {
		return nil, err
	}
	if err := w.seek(l.End); err != nil {
		return nil, err
	}

	w.log.WithFields(logrus.Fields{
		"files":        len(l.Entries),
		"content_size": l.ContentSize,
		"toc_offset":   l.TocOffset,
		"itoc_offset":  l.ItocOffset,
		"size":         l.End,
	}).Debug("archive closed")
	return l, nil
}

// buildTables returns the file table, with rows in the current entry order,
// and the id index sorted by id.
func (w *Writer) buildTables() (*types.Table, *types.Table) {
	toc := &types.Table{Spec: TOCSpec, Rows: make([]types.Row, len(w.entries))}
	itoc := &types.Table{Spec: ITOCSpec, Rows: make([]types.Row, len(w.entries))}

	order := make([]int, len(w.entries))
	for i, e := range w.entries {
		toc.Rows[i] = types.Row{
			types.Chars(""),
			types.Chars(e.Name),
			types.Uint32(uint32(e.Size)),
			types.Uint32(uint32(e.Size)),
			types.Uint64(uint64(e.Offset - w.contentStart)),
			types.Uint32(e.ID),
			types.Chars(""),
		}
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return w.entries[order[a]].ID < w.entries[order[b]].ID })
	for i, idx := range order {
		itoc.Rows[i] = types.Row{types.Int32(int32(w.entries[idx].ID)), types.Int32(int32(idx))}
	}
	return toc, itoc
}

// buildHeader encodes and frames the header table. It fails without
// touching the stream if the result does not fit before BodyOffset.
func (w *Writer) buildHeader(l *Layout) ([]byte, error) {
	row := headerRow(map[string]types.Value{
		"ContentOffset":     types.Uint64(uint64(l.ContentOffset)),
		"ContentSize":       types.Uint64(uint64(l.ContentSize)),
		"TocOffset":         types.Uint64(uint64(l.TocOffset)),
		"TocSize":           types.Uint64(uint64(l.TocSize)),
		"ItocOffset":        types.Uint64(uint64(l.ItocOffset)),
		"ItocSize":          types.Uint64(uint64(l.ItocSize)),
		"EnabledPackedSize": types.Uint64(uint64(l.TotalSize)),
		"EnabledDataSize":   types.Uint64(uint64(l.TotalSize)),
		"Files":             types.Uint32(uint32(len(l.Entries))),
		"Version":           types.Uint16(FormatVersion),
		"Revision":          types.Uint16(FormatRevision),
		"Align":             types.Uint16(uint16(w.cfg.Alignment)),
		"Sorted":            types.Uint16(1),
		"EnableFileName":    types.Uint16(1),
		"EID":               types.Uint16(1),
		"CpkMode":           types.Uint32(CpkMode),
		"Tvers":             types.Chars(w.cfg.ToolVersion),
		"Comment":           types.Chars(w.cfg.Comment),
	})

	data, err := utf.Encode(&types.Table{Spec: HeaderSpec, Rows: []types.Row{row}})
	if err != nil {
		return nil, fmt.Errorf("cpk: encode header: %w", err)
	}
	framed, err := FrameChunk(TagHeader, data, w.cfg.CipherTables)
	if err != nil {
		return nil, err
	}
	if len(framed) > BodyOffset {
		return nil, cpkerrors.NewCapacityError("cpk: header chunk is %d bytes, limit %d", len(framed), BodyOffset)
	}
	return framed, nil
}

func (w *Writer) writeTableChunk(tag string, data []byte) (offset, size int64, err error) {
	if err := w.align(); err != nil {
		return 0, 0, err
	}
	framed, err := FrameChunk(tag, data, w.cfg.CipherTables)
	if err != nil {
		return 0, 0, err
	}
	offset = w.pos
	if err := w.write(framed); err != nil {
		return 0, 0, err
	}
	return offset, w.pos - offset, nil
}

func (w *Writer) fail(err error) error {
	w.err = err
	return err
}

func (w *Writer) seek(off int64) error {
	pos, err := w.ws.Seek(off, io.SeekStart)
	if err != nil {
		return w.fail(fmt.Errorf("cpk: seek to %d: %w", off, err))
	}
	w.pos = pos
	return nil
}

func (w *Writer) write(p []byte) error {
	n, err := w.ws.Write(p)
	w.pos += int64(n)
	if err == nil && n != len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return w.fail(fmt.Errorf("cpk: write: %w", err))
	}
	return nil
}

// align pads up to the next multiple of the configured alignment.
func (w *Writer) align() error {
	rem := w.pos % int64(w.cfg.Alignment)
	if rem == 0 {
		return nil
	}
	return w.pad(int64(w.cfg.Alignment) - rem)
}

// pad writes n filler bytes, random or zero depending on the config.
func (w *Writer) pad(n int64) error {
	if n <= 0 {
		return nil
	}
	src := io.Reader(zeroReader{})
	if w.cfg.RandomizePadding {
		src = rand.Reader
	}
	written, err := io.CopyN(w.ws, src, n)
	w.pos += written
	if err != nil {
		return w.fail(fmt.Errorf("cpk: pad %d bytes: %w", n, err))
	}
	return nil
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
