package regionmap

import "fmt"

// OffsetMapping is a Mapping with relative, region-aware navigation and
// searches over mapped data.
type OffsetMapping struct {
	Mapping
}

// NewOffsetMapping returns an unpositioned cursor with relative navigation.
func (m *Mapper) NewOffsetMapping() *OffsetMapping {
	return &OffsetMapping{Mapping: Mapping{m: m, position: -1}}
}

// MoveBy moves the cursor delta bytes from its current position.
func (om *OffsetMapping) MoveBy(delta int64) bool {
	return om.MoveTo(om.base() + delta)
}

// MoveToNextRegion moves to the first position of the following region.
func (om *OffsetMapping) MoveToNextRegion() bool {
	return om.MoveTo(om.m.metrics.Position(om.base()) + om.m.metrics.Size())
}

// MoveToPreviousRegion moves to the first position of the preceding region.
// It fails with ErrInvalidArgument in the first region.
func (om *OffsetMapping) MoveToPreviousRegion() bool {
	start := om.m.metrics.Position(om.base())
	if start == 0 {
		om.fail(om.base(), fmt.Errorf("%w: no region before position 0", ErrInvalidArgument))
		return false
	}
	return om.MoveTo(start - om.m.metrics.Size())
}

// MoveToFirstOfRegion moves to the first position of the current region.
func (om *OffsetMapping) MoveToFirstOfRegion() bool {
	return om.MoveTo(om.m.metrics.Position(om.base()))
}

// MoveToLastOfRegion moves to the last position of the current region.
func (om *OffsetMapping) MoveToLastOfRegion() bool {
	return om.MoveTo(om.m.metrics.Position(om.base()) + om.m.metrics.Size() - 1)
}

func (om *OffsetMapping) base() int64 {
	return max(om.position, 0)
}

// MatchFunc inspects the buffer at a candidate position.
type MatchFunc func(buf []byte) bool

// FindLast scans start, start+inc, start+2*inc, ... while match holds and
// returns the last matching position, or -1 if start does not match. A
// position that cannot be mapped ends the scan like a mismatch.
//
// The cursor is left at the returned position, or at start if nothing matched.
func (om *OffsetMapping) FindLast(start, inc int64, match MatchFunc) int64 {
	if inc <= 0 {
		om.fail(start, fmt.Errorf("%w: increment %d", ErrInvalidArgument, inc))
		return -1
	}
	last := int64(-1)
	for pos := start; pos >= 0; pos += inc {
		if !om.matches(pos, match) {
			break
		}
		last = pos
	}
	if last < 0 {
		return -1
	}
	om.MoveTo(last)
	return last
}

// BinarySearchLast returns what FindLast returns for predicates that hold
// on a prefix of the candidate positions, in a logarithmic number of probes.
// It first gallops to a mismatch and then bisects.
//
// Galloping maps positions past the last match, so on an expandable writer
// it grows the file up to roughly twice the matched length.
func (om *OffsetMapping) BinarySearchLast(start, inc int64, match MatchFunc) int64 {
	if inc <= 0 {
		om.fail(start, fmt.Errorf("%w: increment %d", ErrInvalidArgument, inc))
		return -1
	}
	if !om.matches(start, match) {
		return -1
	}

	// lo always matches, hi never does; both count increments from start.
	lo, hi := int64(0), int64(-1)
	for step := int64(1); hi < 0; step <<= 1 {
		probe := lo + step
		pos := start + probe*inc
		if probe <= lo || pos < start || !om.matches(pos, match) {
			hi = probe
			break
		}
		lo = probe
	}
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if om.matches(start+mid*inc, match) {
			lo = mid
		} else {
			hi = mid
		}
	}

	last := start + lo*inc
	om.MoveTo(last)
	return last
}

func (om *OffsetMapping) matches(pos int64, match MatchFunc) bool {
	return om.MoveTo(pos) && match(om.Buffer())
}
