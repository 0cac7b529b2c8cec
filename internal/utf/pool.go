package utf

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	cpkerrors "github.com/arkilian/cpkpack/internal/errors"
)

// nullSentinel seeds every text pool so that offset 0 can mean "empty
// string" without colliding with an interned value.
const nullSentinel = "<NULL>\x00"

// textPool is an append-only buffer of NUL-terminated UTF-8 strings. It does
// not deduplicate: interning the same string twice stores it twice.
type textPool struct {
	buf []byte
}

func newTextPool() *textPool {
	return &textPool{buf: []byte(nullSentinel)}
}

// add appends s and returns its offset. The empty string is never stored
// and always maps to offset 0.
func (p *textPool) add(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	if !utf8.ValidString(s) {
		return 0, cpkerrors.NewValidationError(cpkerrors.CodeInvalidSchema,
			fmt.Sprintf("utf: text value %q is not valid UTF-8", s))
	}
	if bytes.IndexByte([]byte(s), 0) >= 0 {
		return 0, cpkerrors.NewValidationError(cpkerrors.CodeInvalidSchema,
			fmt.Sprintf("utf: text value %q contains a NUL byte", s))
	}
	off := len(p.buf)
	p.buf = append(p.buf, s...)
	p.buf = append(p.buf, 0)
	return uint32(off), nil
}

func (p *textPool) len() int { return len(p.buf) }

// blobPool is an append-only buffer of raw byte values, addressed by offset
// and length. It starts empty; offset 0 with length 0 is the empty value.
type blobPool struct {
	buf []byte
}

// add appends b and returns its offset. Empty values are never stored.
func (p *blobPool) add(b []byte) uint32 {
	if len(b) == 0 {
		return 0
	}
	off := len(p.buf)
	p.buf = append(p.buf, b...)
	return uint32(off)
}

func (p *blobPool) len() int { return len(p.buf) }

// align8 rounds n up to the next multiple of 8.
func align8(n int) int {
	return (n + 7) &^ 7
}
