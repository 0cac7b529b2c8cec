// Package bloom provides the file-name filter stored with each catalogued
// archive. It answers "might this archive contain name X" without reading
// the archive's file table.
package bloom

import (
	"math"
	"sync"

	"github.com/spaolacci/murmur3"
)

// DefaultFPR is the false positive rate used for name filters.
const DefaultFPR = 0.01

// Filter is a bloom filter over byte strings. It never reports a false
// negative: once an item is added, Contains returns true for it.
type Filter struct {
	mu        sync.RWMutex
	bits      []uint64
	numBits   uint64
	numHashes uint64
	count     uint64
}

// New creates a filter with at least numBits bits and numHashes hash
// functions.
func New(numBits, numHashes int) *Filter {
	if numBits <= 0 {
		numBits = 1024
	}
	if numHashes <= 0 {
		numHashes = 7
	}

	// Round up to whole words
	numWords := (numBits + 63) / 64

	return &Filter{
		bits:      make([]uint64, numWords),
		numBits:   uint64(numWords * 64),
		numHashes: uint64(numHashes),
	}
}

// NewWithEstimates creates a filter sized for expectedItems at targetFPR.
func NewWithEstimates(expectedItems int, targetFPR float64) *Filter {
	numBits, numHashes := OptimalParameters(expectedItems, targetFPR)
	return New(numBits, numHashes)
}

// NewNameFilter builds a filter holding every name in names.
func NewNameFilter(names []string) *Filter {
	f := NewWithEstimates(len(names), DefaultFPR)
	for _, name := range names {
		f.AddString(name)
	}
	return f
}

// OptimalParameters returns the bit and hash counts for expectedItems at
// targetFPR:
//   - m = -n * ln(p) / (ln(2)^2)
//   - k = (m/n) * ln(2)
//
// Out-of-range inputs fall back to 1000 items and a 1% rate.
func OptimalParameters(expectedItems int, targetFPR float64) (numBits, numHashes int) {
	if expectedItems <= 0 {
		expectedItems = 1000
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = DefaultFPR
	}

	n := float64(expectedItems)
	m := -n * math.Log(targetFPR) / (math.Ln2 * math.Ln2)
	numBits = int(math.Ceil(m))
	numHashes = int(math.Ceil((m / n) * math.Ln2))

	if numBits < 64 {
		numBits = 64
	}
	if numHashes < 1 {
		numHashes = 1
	}
	return numBits, numHashes
}

// Add adds an item to the filter.
func (f *Filter) Add(item []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h1, h2 := hash128(item)
	for i := uint64(0); i < f.numHashes; i++ {
		// Double hashing: h(i) = h1 + i*h2
		f.setBit((h1 + i*h2) % f.numBits)
	}
	f.count++
}

// AddString adds a name to the filter.
func (f *Filter) AddString(name string) {
	f.Add([]byte(name))
}

// Contains reports whether item might have been added.
func (f *Filter) Contains(item []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	h1, h2 := hash128(item)
	for i := uint64(0); i < f.numHashes; i++ {
		if !f.getBit((h1 + i*h2) % f.numBits) {
			return false
		}
	}
	return true
}

// ContainsString reports whether name might have been added.
func (f *Filter) ContainsString(name string) bool {
	return f.Contains([]byte(name))
}

func hash128(item []byte) (uint64, uint64) {
	return murmur3.Sum128(item)
}

func (f *Filter) setBit(pos uint64) {
	f.bits[pos/64] |= 1 << (pos % 64)
}

func (f *Filter) getBit(pos uint64) bool {
	return f.bits[pos/64]&(1<<(pos%64)) != 0
}

// NumBits returns the number of bits in the filter.
func (f *Filter) NumBits() int {
	return int(f.numBits)
}

// NumHashes returns the number of hash functions used.
func (f *Filter) NumHashes() int {
	return int(f.numHashes)
}

// Count returns the number of items added.
func (f *Filter) Count() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.count
}

// FalsePositiveRate estimates the current false positive rate as
// (1 - e^(-k*n/m))^k.
func (f *Filter) FalsePositiveRate() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.count == 0 {
		return 0
	}
	k := float64(f.numHashes)
	n := float64(f.count)
	m := float64(f.numBits)
	return math.Pow(1-math.Exp(-k*n/m), k)
}
