package regionmap_test

import (
	"sync"

	"github.com/hupe1980/regionmap/filemap"
	"github.com/hupe1980/regionmap/internal/mmap"
)

// regionSize is the smallest region size New accepts on this platform.
func regionSize() int64 {
	return int64(mmap.Granularity())
}

// memMapper serves regions out of one heap buffer and counts OS calls.
type memMapper struct {
	mu     sync.Mutex
	data   []byte
	maps   int
	unmaps int
	live   map[int64]bool
	closed bool
}

var _ filemap.FileMapper = (*memMapper)(nil)

func newMemMapper(size int64) *memMapper {
	return &memMapper{data: make([]byte, size), live: map[int64]bool{}}
}

func (m *memMapper) Map(position int64, length int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, filemap.ErrClosed
	}
	end := position + int64(length)
	if end > int64(len(m.data)) {
		return nil, &filemap.MapError{Op: "map", Path: "mem", Position: position, Err: filemap.ErrBeyondEOF}
	}
	m.maps++
	m.live[position] = true
	return m.data[position:end:end], nil
}

func (m *memMapper) Unmap(_ []byte, position int64, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unmaps++
	delete(m.live, position)
}

func (m *memMapper) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memMapper) counts() (maps, unmaps int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maps, m.unmaps
}

func (m *memMapper) isLive(position int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live[position]
}

func (m *memMapper) liveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}
