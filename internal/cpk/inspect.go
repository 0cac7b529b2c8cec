package cpk

import (
	"fmt"
	"io"

	cpkerrors "github.com/arkilian/cpkpack/internal/errors"
	"github.com/arkilian/cpkpack/pkg/types"
)

// Archive is the decoded metadata of an archive. File payloads are not
// read.
type Archive struct {
	Header *types.Table
	TOC    *types.Table
	ITOC   *types.Table

	Ciphered bool
	Files    []Entry
}

// HeaderValue returns a column of the header row.
func (a *Archive) HeaderValue(column string) (types.Value, bool) {
	return a.Header.Value(0, column)
}

// Inspect reads the header chunk at offset 0, then the file table and id
// index at the offsets the header records.
func Inspect(rs io.ReadSeeker) (*Archive, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("cpk: seek header: %w", err)
	}
	header, chunk, err := ReadTableChunk(rs, TagHeader)
	if err != nil {
		return nil, fmt.Errorf("cpk: read header: %w", err)
	}
	if len(header.Rows) != 1 {
		return nil, cpkerrors.NewFormatError("cpk: header table has %d rows, want 1", len(header.Rows))
	}
	a := &Archive{Header: header, Ciphered: chunk.Ciphered}

	contentOffset, err := a.headerUint("ContentOffset")
	if err != nil {
		return nil, err
	}
	tocOffset, err := a.headerUint("TocOffset")
	if err != nil {
		return nil, err
	}
	itocOffset, err := a.headerUint("ItocOffset")
	if err != nil {
		return nil, err
	}

	if a.TOC, err = readTableAt(rs, int64(tocOffset), TagTOC); err != nil {
		return nil, err
	}
	if a.ITOC, err = readTableAt(rs, int64(itocOffset), TagITOC); err != nil {
		return nil, err
	}

	a.Files, err = entriesFromTOC(a.TOC, int64(contentOffset))
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Archive) headerUint(column string) (uint64, error) {
	v, ok := a.HeaderValue(column)
	if !ok || !v.Kind().IsUnsigned() {
		return 0, cpkerrors.NewFormatError("cpk: header has no unsigned column %q", column)
	}
	return v.Uint(), nil
}

func readTableAt(rs io.ReadSeeker, offset int64, tag string) (*types.Table, error) {
	if _, err := rs.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("cpk: seek %q at %d: %w", tag, offset, err)
	}
	t, _, err := ReadTableChunk(rs, tag)
	if err != nil {
		return nil, fmt.Errorf("cpk: read %q at %d: %w", tag, offset, err)
	}
	return t, nil
}

// entriesFromTOC lists the files a decoded file table describes, with
// absolute offsets.
func entriesFromTOC(toc *types.Table, contentOffset int64) ([]Entry, error) {
	cols := make(map[string]int, len(TOCSpec.Columns))
	for _, c := range TOCSpec.Columns {
		j := toc.Spec.ColumnIndex(c.Name)
		if j < 0 || toc.Spec.Columns[j].Kind != c.Kind {
			return nil, cpkerrors.NewFormatError("cpk: file table column %q missing or mistyped", c.Name)
		}
		cols[c.Name] = j
	}

	entries := make([]Entry, len(toc.Rows))
	for i, row := range toc.Rows {
		entries[i] = Entry{
			ID:     uint32(row[cols["ID"]].Uint()),
			Name:   row[cols["FileName"]].Str(),
			Offset: contentOffset + int64(row[cols["FileOffset"]].Uint()),
			Size:   int64(row[cols["FileSize"]].Uint()),
		}
	}
	return entries, nil
}
