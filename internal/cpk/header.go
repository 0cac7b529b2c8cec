// Package cpk writes CPK archives: a header table at offset 0, aligned raw
// file payloads from offset 2048 onward, then a file table and an id index
// table, each framed as a chunk.
package cpk

import "github.com/arkilian/cpkpack/pkg/types"

const (
	// BodyOffset is the size of the header region. File payloads never
	// start before it.
	BodyOffset = 2048

	FormatVersion  = 7
	FormatRevision = 14
	CpkMode        = 2
)

// Chunk tags.
const (
	TagHeader = "CPK "
	TagTOC    = "TOC "
	TagITOC   = "ITOC"
)

// HeaderSpec describes the single-row archive header table. Only the
// offsets, sizes, counts and version fields are populated; the hash, group,
// attribute and CRC fields are always zero.
var HeaderSpec = types.Spec{
	Name:     "CpkHeader",
	Encoding: types.EncodingCP932,
	Columns: []types.Column{
		{Name: "UpdateDateTime", Kind: types.KindU8},
		{Name: "FileSize", Kind: types.KindU8},
		{Name: "ContentOffset", Kind: types.KindU8},
		{Name: "ContentSize", Kind: types.KindU8},
		{Name: "TocOffset", Kind: types.KindU8},
		{Name: "TocSize", Kind: types.KindU8},
		{Name: "TocCrc", Kind: types.KindU4},
		{Name: "HtocOffset", Kind: types.KindU8},
		{Name: "HtocSize", Kind: types.KindU8},
		{Name: "EtocOffset", Kind: types.KindU8},
		{Name: "EtocSize", Kind: types.KindU8},
		{Name: "ItocOffset", Kind: types.KindU8},
		{Name: "ItocSize", Kind: types.KindU8},
		{Name: "ItocCrc", Kind: types.KindU4},
		{Name: "GtocOffset", Kind: types.KindU8},
		{Name: "GtocSize", Kind: types.KindU8},
		{Name: "GtocCrc", Kind: types.KindU4},
		{Name: "HgtocOffset", Kind: types.KindU8},
		{Name: "HgtocSize", Kind: types.KindU8},
		{Name: "EnabledPackedSize", Kind: types.KindU8},
		{Name: "EnabledDataSize", Kind: types.KindU8},
		{Name: "TotalDataSize", Kind: types.KindU8},
		{Name: "Tocs", Kind: types.KindU4},
		{Name: "Files", Kind: types.KindU4},
		{Name: "Groups", Kind: types.KindU4},
		{Name: "Attrs", Kind: types.KindU4},
		{Name: "TotalFiles", Kind: types.KindU4},
		{Name: "Directories", Kind: types.KindU4},
		{Name: "Updates", Kind: types.KindU4},
		{Name: "Version", Kind: types.KindU2},
		{Name: "Revision", Kind: types.KindU2},
		{Name: "Align", Kind: types.KindU2},
		{Name: "Sorted", Kind: types.KindU2},
		{Name: "EnableFileName", Kind: types.KindU2},
		{Name: "EID", Kind: types.KindU2},
		{Name: "CpkMode", Kind: types.KindU4},
		{Name: "Tvers", Kind: types.KindChars},
		{Name: "Comment", Kind: types.KindChars},
		{Name: "Codec", Kind: types.KindU4},
		{Name: "DpkItoc", Kind: types.KindU4},
		{Name: "EnableTocCrc", Kind: types.KindU2},
		{Name: "EnableFileCrc", Kind: types.KindU2},
		{Name: "CrcMode", Kind: types.KindU4},
		{Name: "CrcTable", Kind: types.KindBytes},
	},
}

// TOCSpec describes the file table. Rows are sorted by file name.
// FileOffset is relative to the start of the content region, the first
// alignment boundary at or after BodyOffset, not to BodyOffset itself. The
// two agree whenever the alignment divides 2048.
var TOCSpec = types.Spec{
	Name:     "CpkTocInfo",
	Encoding: types.EncodingCP932,
	Columns: []types.Column{
		{Name: "DirName", Kind: types.KindChars},
		{Name: "FileName", Kind: types.KindChars},
		{Name: "FileSize", Kind: types.KindU4},
		{Name: "ExtractSize", Kind: types.KindU4},
		{Name: "FileOffset", Kind: types.KindU8},
		{Name: "ID", Kind: types.KindU4},
		{Name: "UserString", Kind: types.KindChars},
	},
}

// ITOCSpec describes the id index table. Rows are sorted by id and point
// back into the file table by row index.
var ITOCSpec = types.Spec{
	Name:     "CpkExtendId",
	Encoding: types.EncodingCP932,
	Columns: []types.Column{
		{Name: "ID", Kind: types.KindS4},
		{Name: "TocIndex", Kind: types.KindS4},
	},
}

// headerRow builds the header row from the given fields. Columns not named
// in fields hold their default value.
func headerRow(fields map[string]types.Value) types.Row {
	row := make(types.Row, len(HeaderSpec.Columns))
	for i, col := range HeaderSpec.Columns {
		if v, ok := fields[col.Name]; ok {
			row[i] = v
			continue
		}
		row[i] = types.DefaultValue(col.Kind)
	}
	return row
}
