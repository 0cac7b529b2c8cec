package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
)

// Value is a single table cell. It is a tagged union over the twelve kinds:
// integers and floats live in bits (floats as their IEEE754 bit pattern,
// signed integers sign-extended), text in str and raw bytes in blob.
//
// The zero Value is the default value of KindU1.
type Value struct {
	kind Kind
	bits uint64
	str  string
	blob []byte
}

func Uint8(v uint8) Value   { return Value{kind: KindU1, bits: uint64(v)} }
func Int8(v int8) Value     { return Value{kind: KindS1, bits: uint64(int64(v))} }
func Uint16(v uint16) Value { return Value{kind: KindU2, bits: uint64(v)} }
func Int16(v int16) Value   { return Value{kind: KindS2, bits: uint64(int64(v))} }
func Uint32(v uint32) Value { return Value{kind: KindU4, bits: uint64(v)} }
func Int32(v int32) Value   { return Value{kind: KindS4, bits: uint64(int64(v))} }
func Uint64(v uint64) Value { return Value{kind: KindU8, bits: v} }
func Int64(v int64) Value   { return Value{kind: KindS8, bits: uint64(v)} }

func Float32(v float32) Value {
	return Value{kind: KindF4, bits: uint64(math.Float32bits(v))}
}

func Float64(v float64) Value {
	return Value{kind: KindF8, bits: math.Float64bits(v)}
}

// Chars returns a text value.
func Chars(v string) Value { return Value{kind: KindChars, str: v} }

// Bytes returns a raw bytes value. The slice is retained, not copied.
func Bytes(v []byte) Value { return Value{kind: KindBytes, blob: v} }

// DefaultValue returns the default value for kind: zero for numbers, empty
// text or empty bytes.
func DefaultValue(kind Kind) Value {
	return Value{kind: kind}
}

// UintValue builds an unsigned or signed integer value of the given kind
// from its raw bit pattern, truncated to the kind's width. Decoders use it
// to avoid a switch per call site.
func UintValue(kind Kind, raw uint64) Value {
	switch kind {
	case KindU1:
		return Uint8(uint8(raw))
	case KindS1:
		return Int8(int8(raw))
	case KindU2:
		return Uint16(uint16(raw))
	case KindS2:
		return Int16(int16(raw))
	case KindU4:
		return Uint32(uint32(raw))
	case KindS4:
		return Int32(int32(raw))
	case KindU8:
		return Uint64(raw)
	case KindS8:
		return Int64(int64(raw))
	case KindF4:
		return Value{kind: KindF4, bits: uint64(uint32(raw))}
	case KindF8:
		return Value{kind: KindF8, bits: raw}
	}
	return Value{kind: kind}
}

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// Uint returns the value of an unsigned integer kind.
func (v Value) Uint() uint64 { return v.bits }

// Int returns the value of a signed integer kind.
func (v Value) Int() int64 { return int64(v.bits) }

// Bits returns the raw bit pattern of a numeric value truncated to the
// kind's width, i.e. exactly what goes on the wire.
func (v Value) Bits() uint64 {
	switch v.kind.Width() {
	case 1:
		return v.bits & 0xFF
	case 2:
		return v.bits & 0xFFFF
	case 4:
		return v.bits & 0xFFFFFFFF
	}
	return v.bits
}

// Float returns the value of a float kind widened to float64.
func (v Value) Float() float64 {
	if v.kind == KindF4 {
		return float64(math.Float32frombits(uint32(v.bits)))
	}
	return math.Float64frombits(v.bits)
}

// Str returns the value of a chars kind.
func (v Value) Str() string { return v.str }

// Blob returns the value of a bytes kind.
func (v Value) Blob() []byte { return v.blob }

// IsDefault reports whether v equals its kind's default value.
func (v Value) IsDefault() bool {
	return v.Equal(DefaultValue(v.kind))
}

// Equal reports whether two values have the same kind and content. Floats
// compare by bit pattern, so -0.0 differs from 0.0 and a NaN equals itself.
// A nil and an empty byte slice are equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindChars:
		return v.str == o.str
	case KindBytes:
		return bytes.Equal(v.blob, o.blob)
	}
	return v.bits == o.bits
}

func (v Value) String() string {
	switch {
	case v.kind.IsUnsigned():
		return strconv.FormatUint(v.bits, 10)
	case v.kind.IsSigned():
		return strconv.FormatInt(int64(v.bits), 10)
	case v.kind == KindF4:
		return strconv.FormatFloat(v.Float(), 'g', -1, 32)
	case v.kind == KindF8:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case v.kind == KindChars:
		return strconv.Quote(v.str)
	case v.kind == KindBytes:
		if len(v.blob) > 32 {
			return fmt.Sprintf("0x%s... (%d bytes)", hex.EncodeToString(v.blob[:32]), len(v.blob))
		}
		return "0x" + hex.EncodeToString(v.blob)
	}
	return fmt.Sprintf("<%s>", v.kind)
}
