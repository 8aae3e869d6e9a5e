package slot

import (
	"sync/atomic"

	"github.com/hupe1980/regionmap/filemap"
)

type pendingUnmap struct {
	fm       filemap.FileMapper
	data     []byte
	position int64
	length   int
}

// Unmapper runs unmaps handed over by async slots on a second runtime.
// It holds a single pending unmap; a slot finding the cell occupied unmaps
// inline instead of waiting.
type Unmapper struct {
	cell     atomic.Pointer[pendingUnmap]
	handed   atomic.Uint64
	executed atomic.Uint64
}

// NewUnmapper returns an empty unmapper. Register it with the unmap runtime.
func NewUnmapper() *Unmapper {
	return &Unmapper{}
}

func (u *Unmapper) offer(fm filemap.FileMapper, data []byte, position int64, length int) bool {
	if u.cell.CompareAndSwap(nil, &pendingUnmap{fm: fm, data: data, position: position, length: length}) {
		u.handed.Add(1)
		return true
	}
	return false
}

// Execute performs the pending unmap, if any.
func (u *Unmapper) Execute() int {
	p := u.cell.Swap(nil)
	if p == nil {
		return 0
	}
	p.fm.Unmap(p.data, p.position, p.length)
	u.executed.Add(1)
	return 1
}

// Drain performs the pending unmap on the calling goroutine. Owners call it
// after deregistering the unmapper so no unmap is lost on close.
func (u *Unmapper) Drain() {
	for u.Execute() > 0 {
	}
}

// Handed returns how many unmaps were handed over.
func (u *Unmapper) Handed() uint64 {
	return u.handed.Load()
}

// Executed returns how many handed unmaps ran.
func (u *Unmapper) Executed() uint64 {
	return u.executed.Load()
}
