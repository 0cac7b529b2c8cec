package bloom

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/golang/snappy"
)

const serializedHeaderSize = 24

// Serialize returns the filter as:
//   - 8 bytes: numBits (uint64, little-endian)
//   - 8 bytes: numHashes (uint64, little-endian)
//   - 8 bytes: count (uint64, little-endian)
//   - remaining: bit array ([]uint64, little-endian)
func (f *Filter) Serialize() []byte {
	f.mu.RLock()
	defer f.mu.RUnlock()

	buf := make([]byte, serializedHeaderSize+len(f.bits)*8)
	f.putHeader(buf)
	putWords(buf[serializedHeaderSize:], f.bits)
	return buf
}

// Deserialize reconstructs a filter from Serialize output.
func Deserialize(data []byte) (*Filter, error) {
	numBits, numHashes, count, err := readHeader(data)
	if err != nil {
		return nil, err
	}
	bits, err := readWords(data[serializedHeaderSize:], numBits)
	if err != nil {
		return nil, err
	}
	return &Filter{bits: bits, numBits: numBits, numHashes: numHashes, count: count}, nil
}

// SerializeCompressed is Serialize with the bit array snappy-compressed.
// Name filters are sparse, so this is the form the catalog stores.
func (f *Filter) SerializeCompressed() []byte {
	f.mu.RLock()
	defer f.mu.RUnlock()

	raw := make([]byte, len(f.bits)*8)
	putWords(raw, f.bits)
	compressed := snappy.Encode(nil, raw)

	buf := make([]byte, serializedHeaderSize+len(compressed))
	f.putHeader(buf)
	copy(buf[serializedHeaderSize:], compressed)
	return buf
}

// DeserializeCompressed reconstructs a filter from SerializeCompressed
// output.
func DeserializeCompressed(data []byte) (*Filter, error) {
	numBits, numHashes, count, err := readHeader(data)
	if err != nil {
		return nil, err
	}
	raw, err := snappy.Decode(nil, data[serializedHeaderSize:])
	if err != nil {
		return nil, fmt.Errorf("bloom: snappy decompress failed: %w", err)
	}
	bits, err := readWords(raw, numBits)
	if err != nil {
		return nil, err
	}
	return &Filter{bits: bits, numBits: numBits, numHashes: numHashes, count: count}, nil
}

func (f *Filter) putHeader(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], f.numBits)
	binary.LittleEndian.PutUint64(buf[8:16], f.numHashes)
	binary.LittleEndian.PutUint64(buf[16:24], f.count)
}

func readHeader(data []byte) (numBits, numHashes, count uint64, err error) {
	if len(data) < serializedHeaderSize {
		return 0, 0, 0, errors.New("bloom: serialized data too short")
	}
	numBits = binary.LittleEndian.Uint64(data[0:8])
	numHashes = binary.LittleEndian.Uint64(data[8:16])
	count = binary.LittleEndian.Uint64(data[16:24])
	if numBits == 0 || numBits%64 != 0 {
		return 0, 0, 0, fmt.Errorf("bloom: invalid bit count %d", numBits)
	}
	if numHashes == 0 {
		return 0, 0, 0, errors.New("bloom: numHashes cannot be zero")
	}
	return numBits, numHashes, count, nil
}

func putWords(buf []byte, words []uint64) {
	for i, w := range words {
		binary.LittleEndian.PutUint64(buf[i*8:], w)
	}
}

func readWords(data []byte, numBits uint64) ([]uint64, error) {
	numWords := numBits / 64
	if uint64(len(data)) < numWords*8 {
		return nil, fmt.Errorf("bloom: expected %d bytes of bits, got %d", numWords*8, len(data))
	}
	words := make([]uint64, numWords)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	return words, nil
}
