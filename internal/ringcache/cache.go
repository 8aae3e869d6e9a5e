// Package ringcache addresses a fixed, power-of-two sized array of region
// slots by region index and predicts sequential access.
package ringcache

import (
	"errors"
	"fmt"

	"github.com/hupe1980/regionmap/internal/region"
	"github.com/hupe1980/regionmap/internal/slot"
)

// ErrInvalidCacheSize is returned when the number of slots is not a positive
// power of two.
var ErrInvalidCacheSize = errors.New("ringcache: cache size must be a positive power of two")

// Cache is a ring of region slots. It is used by one goroutine.
type Cache struct {
	metrics  region.Metrics
	slots    []slot.Slot
	mask     int64
	mapAhead int
	last     int64
}

// NormalizeMapAhead clamps value to [-cacheSize, cacheSize-1] and turns a
// negative value into cacheSize+value, the number of slots left behind the
// full ring.
func NormalizeMapAhead(value, cacheSize int) int {
	value = max(value, -cacheSize)
	value = min(value, cacheSize-1)
	if value < 0 {
		value += cacheSize
	}
	return value
}

// New returns a cache over slots.
func New(m region.Metrics, slots []slot.Slot, mapAhead int) (*Cache, error) {
	n := len(slots)
	if !region.IsPowerOfTwo(int64(n)) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCacheSize, n)
	}
	return &Cache{
		metrics:  m,
		slots:    slots,
		mask:     int64(n - 1),
		mapAhead: NormalizeMapAhead(mapAhead, n),
		last:     -1,
	}, nil
}

// Size returns the number of slots.
func (c *Cache) Size() int { return len(c.slots) }

// MapAhead returns the normalized number of regions mapped ahead.
func (c *Cache) MapAhead() int { return c.mapAhead }

// Slots returns the slots in index order.
func (c *Cache) Slots() []slot.Slot { return c.slots }

// Slot returns the slot the region containing position lives in.
func (c *Cache) Slot(position int64) slot.Slot {
	return c.slots[c.metrics.Index(position)&c.mask]
}

// Map requests the region containing position from its slot.
func (c *Cache) Map(position int64) (slot.Slot, bool) {
	s := c.Slot(position)
	return s, s.Request(position)
}

// Ahead records that the region starting at regionStart was mapped and, when
// it directly follows or precedes the previous one, requests the next regions
// in the same direction. It returns the number of requests issued.
func (c *Cache) Ahead(regionStart int64) int {
	prev := c.last
	c.last = regionStart
	if prev < 0 || c.mapAhead == 0 {
		return 0
	}

	var step int64
	switch regionStart - prev {
	case c.metrics.Size():
		step = c.metrics.Size()
	case -c.metrics.Size():
		step = -c.metrics.Size()
	default:
		return 0
	}

	issued := 0
	for i := 1; i <= c.mapAhead; i++ {
		position := regionStart + int64(i)*step
		if position < 0 {
			break
		}
		s := c.Slot(position)
		if s.RequestLocal(position) {
			continue
		}
		// Failures surface when the region is actually moved to.
		s.Request(position)
		issued++
	}
	return issued
}

// Last returns the start of the last region passed to Ahead, or -1.
func (c *Cache) Last() int64 { return c.last }

// Close closes every slot.
func (c *Cache) Close() {
	for _, s := range c.slots {
		s.Close()
	}
}
