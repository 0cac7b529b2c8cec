package cpk

import (
	"bytes"
	"io"

	"github.com/arkilian/cpkpack/internal/binio"
	cpkerrors "github.com/arkilian/cpkpack/internal/errors"
	"github.com/arkilian/cpkpack/internal/utf"
	"github.com/arkilian/cpkpack/pkg/types"
)

const (
	flagCiphered uint32 = 0x00
	flagPlain    uint32 = 0xFF

	chunkHeaderSize = 16

	// maxChunkPayload bounds what ReadChunk will allocate. A table body
	// length is a u32, plus its 8-byte wrapper.
	maxChunkPayload = 1<<32 + 8
)

// Chunk is one framed payload: a 4-byte tag, a cipher flag and the payload
// with the cipher already removed.
type Chunk struct {
	Tag      string
	Ciphered bool
	Payload  []byte
}

// Size is the number of bytes the chunk occupies on the wire.
func (c *Chunk) Size() int64 {
	return chunkHeaderSize + int64(len(c.Payload))
}

// FrameChunk returns the wire form of a chunk. The tag must be exactly 4
// bytes.
func FrameChunk(tag string, payload []byte, ciphered bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(chunkHeaderSize + len(payload))
	if err := WriteChunk(&buf, tag, payload, ciphered); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteChunk frames payload and writes it to w. The payload slice is not
// modified.
func WriteChunk(w io.Writer, tag string, payload []byte, ciphered bool) error {
	if len(tag) != 4 {
		return cpkerrors.NewFormatError("cpk: chunk tag %q is not 4 bytes", tag)
	}
	flag := flagPlain
	if ciphered {
		flag = flagCiphered
		payload = Crypt(payload)
	}

	bw := binio.NewWriter(w)
	bw.Bytes([]byte(tag))
	bw.Uint32LE(flag)
	bw.Uint64LE(uint64(len(payload)))
	bw.Bytes(payload)
	return bw.Err()
}

// ReadChunk reads one chunk from r and removes the cipher if the flag says
// it is present.
func ReadChunk(r io.Reader) (*Chunk, error) {
	tag, err := binio.ReadFull(r, 4)
	if err != nil {
		return nil, err
	}
	flag, err := binio.ReadUint32LE(r)
	if err != nil {
		return nil, err
	}
	if flag != flagCiphered && flag != flagPlain {
		return nil, cpkerrors.NewFormatError("cpk: chunk %q has unknown flag %#x", tag, flag)
	}
	size, err := binio.ReadUint64LE(r)
	if err != nil {
		return nil, err
	}
	if size > maxChunkPayload {
		return nil, cpkerrors.NewFormatError("cpk: chunk %q declares %d payload bytes", tag, size)
	}
	payload, err := binio.ReadFull(r, int(size))
	if err != nil {
		return nil, err
	}

	c := &Chunk{Tag: string(tag), Ciphered: flag == flagCiphered, Payload: payload}
	if c.Ciphered {
		cryptInPlace(c.Payload)
	}
	return c, nil
}

// ReadTableChunk reads a chunk, checks its tag and decodes its payload as a
// table.
func ReadTableChunk(r io.Reader, tag string) (*types.Table, *Chunk, error) {
	c, err := ReadChunk(r)
	if err != nil {
		return nil, nil, err
	}
	if c.Tag != tag {
		return nil, c, cpkerrors.NewFormatError("cpk: expected chunk %q, got %q", tag, c.Tag)
	}
	t, err := utf.Decode(c.Payload)
	if err != nil {
		return nil, c, err
	}
	return t, c, nil
}
