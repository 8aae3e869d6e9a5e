package region

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrInvalidSize is returned for region sizes that are not a positive power of two
// or not a multiple of the OS mapping granularity.
var ErrInvalidSize = errors.New("region: invalid region size")

// Metrics performs position arithmetic for a power-of-two region size.
type Metrics struct {
	size  int64
	mask  int64
	shift uint
}

// NewMetrics validates size and returns the metrics for it.
func NewMetrics(size int64) (Metrics, error) {
	if !IsPowerOfTwo(size) {
		return Metrics{}, fmt.Errorf("%w: %d is not a power of two", ErrInvalidSize, size)
	}
	return Metrics{
		size:  size,
		mask:  size - 1,
		shift: uint(bits.TrailingZeros64(uint64(size))),
	}, nil
}

// IsPowerOfTwo reports whether v is a positive power of two.
func IsPowerOfTwo(v int64) bool {
	return v > 0 && v&(v-1) == 0
}

// Size returns the region size in bytes.
func (m Metrics) Size() int64 { return m.size }

// Shift returns log2 of the region size.
func (m Metrics) Shift() uint { return m.shift }

// Offset returns the offset of position within its region.
func (m Metrics) Offset(position int64) int64 { return position & m.mask }

// Position returns the region-aligned start position for position.
func (m Metrics) Position(position int64) int64 { return position &^ m.mask }

// Index returns the zero-based region index of position.
func (m Metrics) Index(position int64) int64 { return position >> m.shift }

// PositionByIndex is the inverse of Index.
func (m Metrics) PositionByIndex(index int64) int64 { return index << m.shift }

// SameRegion reports whether a and b fall into the same region.
func (m Metrics) SameRegion(a, b int64) bool { return m.Position(a) == m.Position(b) }

// ValidateGranularity checks that the region size is a multiple of the given
// OS allocation granularity.
func (m Metrics) ValidateGranularity(granularity int) error {
	if granularity <= 0 {
		return nil
	}
	if m.size%int64(granularity) != 0 {
		return fmt.Errorf("%w: %d is not a multiple of the mapping granularity %d", ErrInvalidSize, m.size, granularity)
	}
	return nil
}

// String implements fmt.Stringer.
func (m Metrics) String() string {
	return fmt.Sprintf("region.Metrics{size=%d}", m.size)
}
