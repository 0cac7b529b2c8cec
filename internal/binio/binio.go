// Package binio provides fixed-width integer and float I/O over byte
// streams. Table bodies are big-endian; only archive chunk framing uses
// little-endian.
package binio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"

	cpkerrors "github.com/arkilian/cpkpack/internal/errors"
)

// preallocLimit is the largest read ReadFull allocates for up front.
// Longer reads grow their buffer as bytes arrive, so a corrupt length field
// costs at most about twice what the stream actually holds.
const preallocLimit = 64 << 10

// ReadFull reads exactly n bytes from r. A short stream is reported as a
// TRUNCATED error wrapping io.ErrUnexpectedEOF or io.EOF.
func ReadFull(r io.Reader, n int) ([]byte, error) {
	if n < 0 {
		return nil, cpkerrors.NewFormatError("binio: negative read length %d", n)
	}
	if n <= preallocLimit {
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, shortRead(err)
		}
		return buf, nil
	}

	var buf bytes.Buffer
	buf.Grow(preallocLimit)
	got, err := io.Copy(&buf, io.LimitReader(r, int64(n)))
	if err != nil {
		return nil, err
	}
	if got < int64(n) {
		if got == 0 {
			return nil, shortRead(io.EOF)
		}
		return nil, shortRead(io.ErrUnexpectedEOF)
	}
	return buf.Bytes(), nil
}

func shortRead(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return cpkerrors.NewTruncatedError("binio: short read", err)
	}
	return err
}

// Expect reads len(want) bytes and fails with FORMAT_MISMATCH if they differ.
func Expect(r io.Reader, want []byte) error {
	got, err := ReadFull(r, len(want))
	if err != nil {
		return err
	}
	if !bytes.Equal(got, want) {
		return cpkerrors.NewFormatError("expected %q, got %q", want, got)
	}
	return nil
}

// ExpectUint32 reads a big-endian uint32 and fails with FORMAT_MISMATCH if it
// differs from want.
func ExpectUint32(r io.Reader, want uint32) error {
	got, err := ReadUint32(r)
	if err != nil {
		return err
	}
	if got != want {
		return cpkerrors.NewFormatError("expected %d, got %d", want, got)
	}
	return nil
}

// ReadUint8 reads one byte.
func ReadUint8(r io.Reader) (uint8, error) {
	b, err := ReadFull(r, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint16 reads a big-endian uint16.
func ReadUint16(r io.Reader) (uint16, error) {
	b, err := ReadFull(r, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadUint32 reads a big-endian uint32.
func ReadUint32(r io.Reader) (uint32, error) {
	b, err := ReadFull(r, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadUint64 reads a big-endian uint64.
func ReadUint64(r io.Reader) (uint64, error) {
	b, err := ReadFull(r, 8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadInt8 reads one two's-complement byte.
func ReadInt8(r io.Reader) (int8, error) {
	v, err := ReadUint8(r)
	return int8(v), err
}

// ReadInt16 reads a big-endian int16.
func ReadInt16(r io.Reader) (int16, error) {
	v, err := ReadUint16(r)
	return int16(v), err
}

// ReadInt32 reads a big-endian int32.
func ReadInt32(r io.Reader) (int32, error) {
	v, err := ReadUint32(r)
	return int32(v), err
}

// ReadInt64 reads a big-endian int64.
func ReadInt64(r io.Reader) (int64, error) {
	v, err := ReadUint64(r)
	return int64(v), err
}

// ReadFloat32 reads a big-endian IEEE 754 single.
func ReadFloat32(r io.Reader) (float32, error) {
	v, err := ReadUint32(r)
	return math.Float32frombits(v), err
}

// ReadFloat64 reads a big-endian IEEE 754 double.
func ReadFloat64(r io.Reader) (float64, error) {
	v, err := ReadUint64(r)
	return math.Float64frombits(v), err
}

// ReadUintN reads a big-endian unsigned integer of width 1, 2, 4 or 8.
func ReadUintN(r io.Reader, width int) (uint64, error) {
	switch width {
	case 1:
		v, err := ReadUint8(r)
		return uint64(v), err
	case 2:
		v, err := ReadUint16(r)
		return uint64(v), err
	case 4:
		v, err := ReadUint32(r)
		return uint64(v), err
	case 8:
		return ReadUint64(r)
	}
	return 0, cpkerrors.NewInternalError("binio: unsupported width", nil)
}

// ReadUint32LE reads a little-endian uint32.
func ReadUint32LE(r io.Reader) (uint32, error) {
	b, err := ReadFull(r, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadUint64LE reads a little-endian uint64.
func ReadUint64LE(r io.Reader) (uint64, error) {
	b, err := ReadFull(r, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}
