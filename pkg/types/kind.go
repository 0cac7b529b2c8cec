// Package types provides the table data model shared by the @UTF codec and
// the archive writer.
package types

import "fmt"

// Kind is the value type of a table column. The numeric value is the wire
// tag stored in the low nibble of a column descriptor.
type Kind uint8

const (
	KindU1 Kind = iota
	KindS1
	KindU2
	KindS2
	KindU4
	KindS4
	KindU8
	KindS8
	KindF4
	KindF8
	KindChars
	KindBytes
)

var kindNames = [...]string{
	KindU1:    "u1",
	KindS1:    "s1",
	KindU2:    "u2",
	KindS2:    "s2",
	KindU4:    "u4",
	KindS4:    "s4",
	KindU8:    "u8",
	KindS8:    "s8",
	KindF4:    "f4",
	KindF8:    "f8",
	KindChars: "chars",
	KindBytes: "bytes",
}

// kindWidths is the inline width of each kind in a row or a column
// descriptor. Chars store a 4-byte pool offset, bytes an offset and a length.
var kindWidths = [...]int{
	KindU1:    1,
	KindS1:    1,
	KindU2:    2,
	KindS2:    2,
	KindU4:    4,
	KindS4:    4,
	KindU8:    8,
	KindS8:    8,
	KindF4:    4,
	KindF8:    8,
	KindChars: 4,
	KindBytes: 8,
}

// Valid reports whether k is one of the twelve known kinds.
func (k Kind) Valid() bool {
	return k <= KindBytes
}

// Width returns the number of bytes a value of this kind occupies inline.
func (k Kind) Width() int {
	if !k.Valid() {
		return 0
	}
	return kindWidths[k]
}

// IsSigned reports whether k is a signed integer kind.
func (k Kind) IsSigned() bool {
	switch k {
	case KindS1, KindS2, KindS4, KindS8:
		return true
	}
	return false
}

// IsUnsigned reports whether k is an unsigned integer kind.
func (k Kind) IsUnsigned() bool {
	switch k {
	case KindU1, KindU2, KindU4, KindU8:
		return true
	}
	return false
}

// IsFloat reports whether k is an IEEE754 kind.
func (k Kind) IsFloat() bool {
	return k == KindF4 || k == KindF8
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// CharsEncoding is the code page a table declares for its text values. It
// only affects decoding; text is always written as UTF-8.
type CharsEncoding uint16

const (
	EncodingCP932 CharsEncoding = 0
	EncodingUTF8  CharsEncoding = 1
)

// Valid reports whether e is a known encoding.
func (e CharsEncoding) Valid() bool {
	return e == EncodingCP932 || e == EncodingUTF8
}

func (e CharsEncoding) String() string {
	switch e {
	case EncodingCP932:
		return "cp932"
	case EncodingUTF8:
		return "utf-8"
	}
	return fmt.Sprintf("CharsEncoding(%d)", uint16(e))
}
