package utf

import (
	"fmt"

	"github.com/arkilian/cpkpack/pkg/types"
)

// Layout is the header of an encoded table plus the positions a reader
// actually observed. All offsets are relative to the start of the body.
type Layout struct {
	Encoding      types.CharsEncoding
	RowsOffset    uint16
	StringsOffset uint32
	BlobsOffset   uint32
	NameOffset    uint32
	ColumnCount   uint16
	RowWidth      uint16
	RowCount      uint32
	BodySize      uint32

	// DescriptorsEnd is where the column descriptors ended and RowsEnd
	// where the last row ended.
	DescriptorsEnd uint32
	RowsEnd        uint32

	DefaultColumns  int
	ConstantColumns int
	NormalColumns   int
}

// Consistent reports whether the header offsets agree with the positions
// the descriptors and rows actually occupied, and whether the pools are
// ordered within the body. Decoding never relies on the header offsets for
// rows, so an inconsistent layout is not an error.
func (l Layout) Consistent() bool {
	return uint32(l.RowsOffset) == l.DescriptorsEnd &&
		l.StringsOffset == l.RowsEnd &&
		l.StringsOffset <= l.BlobsOffset &&
		l.BlobsOffset <= l.BodySize &&
		uint64(l.StringsOffset) == uint64(l.RowsOffset)+uint64(l.RowWidth)*uint64(l.RowCount)
}

func (l Layout) String() string {
	return fmt.Sprintf("encoding=%s rows@%d strings@%d blobs@%d body=%d columns=%d (default=%d constant=%d normal=%d) rows=%d width=%d",
		l.Encoding, l.RowsOffset, l.StringsOffset, l.BlobsOffset, l.BodySize,
		l.ColumnCount, l.DefaultColumns, l.ConstantColumns, l.NormalColumns, l.RowCount, l.RowWidth)
}
