package binio

import (
	"encoding/binary"
	"io"
	"math"
)

// Writer emits fixed-width values to an underlying io.Writer. The first
// write error sticks: later calls are no-ops and Err reports it, so a long
// sequence of writes is checked once.
type Writer struct {
	w   io.Writer
	n   int64
	err error
	buf [8]byte
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered.
func (w *Writer) Err() error { return w.err }

// Count returns the number of bytes written so far.
func (w *Writer) Count() int64 { return w.n }

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.w.Write(p)
	w.n += int64(n)
	if err == nil && n != len(p) {
		err = io.ErrShortWrite
	}
	w.err = err
	return n, err
}

// Bytes writes p verbatim.
func (w *Writer) Bytes(p []byte) {
	_, _ = w.Write(p)
}

// Zeros writes n zero bytes.
func (w *Writer) Zeros(n int) {
	for n > 0 {
		chunk := n
		if chunk > len(zeroBlock) {
			chunk = len(zeroBlock)
		}
		w.Bytes(zeroBlock[:chunk])
		n -= chunk
	}
}

var zeroBlock [512]byte

func (w *Writer) Uint8(v uint8) {
	w.buf[0] = v
	w.Bytes(w.buf[:1])
}

func (w *Writer) Uint16(v uint16) {
	binary.BigEndian.PutUint16(w.buf[:2], v)
	w.Bytes(w.buf[:2])
}

func (w *Writer) Uint32(v uint32) {
	binary.BigEndian.PutUint32(w.buf[:4], v)
	w.Bytes(w.buf[:4])
}

func (w *Writer) Uint64(v uint64) {
	binary.BigEndian.PutUint64(w.buf[:8], v)
	w.Bytes(w.buf[:8])
}

func (w *Writer) Int8(v int8)   { w.Uint8(uint8(v)) }
func (w *Writer) Int16(v int16) { w.Uint16(uint16(v)) }
func (w *Writer) Int32(v int32) { w.Uint32(uint32(v)) }
func (w *Writer) Int64(v int64) { w.Uint64(uint64(v)) }

func (w *Writer) Float32(v float32) { w.Uint32(math.Float32bits(v)) }
func (w *Writer) Float64(v float64) { w.Uint64(math.Float64bits(v)) }

// UintN writes the low width bytes of v big-endian. Width is 1, 2, 4 or 8.
func (w *Writer) UintN(v uint64, width int) {
	switch width {
	case 1:
		w.Uint8(uint8(v))
	case 2:
		w.Uint16(uint16(v))
	case 4:
		w.Uint32(uint32(v))
	case 8:
		w.Uint64(v)
	}
}

func (w *Writer) Uint32LE(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	w.Bytes(w.buf[:4])
}

func (w *Writer) Uint64LE(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[:8], v)
	w.Bytes(w.buf[:8])
}
