package testutil

import (
	"math/rand"
	"os"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Int63n returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Int63n(n int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Int63n(n)
}

// Positions returns n random positions in [0, limit) rounded down to align.
func (r *RNG) Positions(n int, limit, align int64) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if align <= 0 {
		align = 1
	}
	out := make([]int64, n)
	for i := range out {
		out[i] = r.rand.Int63n(limit) / align * align
	}
	return out
}

// Walk returns n positions that mostly step by stride and sometimes jump
// anywhere in [0, limit), the access pattern of a reader that scans and seeks.
func (r *RNG) Walk(n int, limit, stride int64, jumpProb float64) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]int64, n)
	pos := int64(0)
	for i := range out {
		out[i] = pos
		if r.rand.Float64() < jumpProb {
			pos = r.rand.Int63n(limit)
		} else {
			pos = (pos + stride) % limit
		}
	}
	return out
}

// PatternByte is the byte a pattern file holds at position.
func PatternByte(position int64) byte {
	return byte(position*31 + position>>8 + position>>16)
}

// FillPattern writes the pattern for [start, start+len(buf)) into buf.
func FillPattern(buf []byte, start int64) {
	for i := range buf {
		buf[i] = PatternByte(start + int64(i))
	}
}

// CheckPattern returns the index of the first byte of buf that does not
// hold the pattern for start, or -1.
func CheckPattern(buf []byte, start int64) int {
	for i, b := range buf {
		if b != PatternByte(start+int64(i)) {
			return i
		}
	}
	return -1
}

// WritePatternFile creates path with size pattern bytes.
func WritePatternFile(path string, size int64) error {
	buf := make([]byte, size)
	FillPattern(buf, 0)
	return os.WriteFile(path, buf, 0o644)
}
