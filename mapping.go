package regionmap

import (
	"fmt"

	"github.com/hupe1980/regionmap/internal/slot"
)

// Mapping is a cursor over a Mapper. Buffer exposes the bytes from the
// current position to the end of its region.
//
// Several Mappings may share one Mapper on the same goroutine. Moving one
// cursor can recycle the slot another cursor's region lives in; the other
// cursor's Buffer then returns nil until it moves again.
type Mapping struct {
	m        *Mapper
	position int64
	view     slot.View
	err      error
}

// NewMapping returns an unpositioned cursor.
func (m *Mapper) NewMapping() *Mapping {
	return &Mapping{m: m, position: -1}
}

// MoveTo positions the cursor at position, mapping its region if needed.
// It reports false on failure; Err tells why and Valid turns false.
func (mp *Mapping) MoveTo(position int64) bool {
	if position < 0 {
		mp.fail(position, fmt.Errorf("%w: negative position %d", ErrInvalidArgument, position))
		return false
	}
	if mp.view.Data != nil && mp.m.metrics.SameRegion(mp.view.Position, position) &&
		mp.m.cache.Slot(position).RequestLocal(position) && mp.view.Valid() {
		mp.position = position
		mp.err = nil
		return true
	}

	v, err := mp.m.mapView(position)
	if err != nil {
		mp.fail(position, err)
		return false
	}
	mp.view = v
	mp.position = position
	mp.err = nil
	return true
}

func (mp *Mapping) fail(position int64, err error) {
	mp.view = slot.View{}
	mp.position = position
	mp.err = err
}

// Err returns the error of the last failed move, or nil after a successful one.
func (mp *Mapping) Err() error { return mp.err }

// Valid reports whether Buffer is usable.
func (mp *Mapping) Valid() bool {
	return mp.err == nil && mp.view.Data != nil && mp.view.Valid()
}

// Buffer returns the bytes from the current position to the end of its
// region, or nil if the cursor is not validly positioned. Writes go to the
// file for writable mappers.
func (mp *Mapping) Buffer() []byte {
	if !mp.Valid() {
		return nil
	}
	return mp.view.Data[mp.Offset():]
}

// Position returns the last position moved to, or -1.
func (mp *Mapping) Position() int64 { return mp.position }

// RegionStartPosition returns the first position of the current region.
func (mp *Mapping) RegionStartPosition() int64 {
	if mp.position < 0 {
		return -1
	}
	return mp.m.metrics.Position(mp.position)
}

// Offset returns the position's offset within its region.
func (mp *Mapping) Offset() int64 {
	if mp.position < 0 {
		return 0
	}
	return mp.m.metrics.Offset(mp.position)
}

// BytesAvailable returns the number of bytes Buffer exposes.
func (mp *Mapping) BytesAvailable() int64 {
	if !mp.Valid() {
		return 0
	}
	return mp.m.metrics.Size() - mp.Offset()
}

// RegionSize returns the region size of the underlying Mapper.
func (mp *Mapping) RegionSize() int64 { return mp.m.metrics.Size() }
