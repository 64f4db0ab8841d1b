// Package bloom provides the membership filter the catalog stores per run
// to answer "which runs recorded subsystem X" without listing directories.
package bloom

import (
	"fmt"
	"math"
	"sync"

	"github.com/spaolacci/murmur3"
)

// Filter is a bloom filter over byte strings. It never reports a false
// negative. Safe for concurrent use.
type Filter struct {
	mu        sync.RWMutex
	bits      []uint64
	numBits   uint64
	numHashes uint64
	count     uint64
}

// New creates a filter with at least numBits bits, rounded up to a
// multiple of 64, and numHashes probes per item.
func New(numBits, numHashes int) *Filter {
	if numBits <= 0 {
		numBits = 1024
	}
	if numHashes <= 0 {
		numHashes = 7
	}
	words := (numBits + 63) / 64
	return &Filter{
		bits:      make([]uint64, words),
		numBits:   uint64(words * 64),
		numHashes: uint64(numHashes),
	}
}

// NewWithEstimates sizes a filter for n items at false positive rate p.
func NewWithEstimates(n int, p float64) *Filter {
	return New(OptimalParameters(n, p))
}

// OptimalParameters returns m = -n ln(p) / ln(2)^2 bits and
// k = (m/n) ln(2) hashes, with at least 64 bits and one hash.
func OptimalParameters(n int, p float64) (numBits, numHashes int) {
	if n <= 0 {
		n = 16
	}
	if p <= 0 || p >= 1 {
		p = 0.01
	}
	m := -float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)
	numBits = max(int(math.Ceil(m)), 64)
	numHashes = max(int(math.Ceil(m/float64(n)*math.Ln2)), 1)
	return numBits, numHashes
}

// ForSubsystems builds a filter holding the given subsystem names, sized
// for a 1% false positive rate.
func ForSubsystems(names []string) *Filter {
	f := NewWithEstimates(len(names), 0.01)
	for _, n := range names {
		f.AddString(n)
	}
	return f
}

// Add inserts item.
func (f *Filter) Add(item []byte) {
	h1, h2 := murmur3.Sum128(item)

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		f.bits[pos/64] |= 1 << (pos % 64)
	}
	f.count++
}

// AddString inserts s.
func (f *Filter) AddString(s string) { f.Add([]byte(s)) }

// Contains reports whether item may have been added.
func (f *Filter) Contains(item []byte) bool {
	h1, h2 := murmur3.Sum128(item)

	f.mu.RLock()
	defer f.mu.RUnlock()
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// ContainsString reports whether s may have been added.
func (f *Filter) ContainsString(s string) bool { return f.Contains([]byte(s)) }

// Merge ORs other into f. Both filters must have the same geometry.
func (f *Filter) Merge(other *Filter) error {
	other.mu.RLock()
	bits := append([]uint64(nil), other.bits...)
	numBits, numHashes, count := other.numBits, other.numHashes, other.count
	other.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if numBits != f.numBits || numHashes != f.numHashes {
		return fmt.Errorf("bloom: cannot merge %d/%d filter into %d/%d filter",
			numBits, numHashes, f.numBits, f.numHashes)
	}
	for i, w := range bits {
		f.bits[i] |= w
	}
	f.count += count
	return nil
}

// NumBits returns the filter size in bits.
func (f *Filter) NumBits() int { return int(f.numBits) }

// NumHashes returns the number of probes per item.
func (f *Filter) NumHashes() int { return int(f.numHashes) }

// Count returns the number of Add calls.
func (f *Filter) Count() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.count
}

// FalsePositiveRate estimates (1 - e^(-kn/m))^k for the current count.
func (f *Filter) FalsePositiveRate() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.count == 0 {
		return 0
	}
	k, n, m := float64(f.numHashes), float64(f.count), float64(f.numBits)
	return math.Pow(1-math.Exp(-k*n/m), k)
}
