package mmap

import (
	"fmt"
	"io"
	"sync/atomic"
)

// Mapping represents one OS mapping of [offset, offset+size) of a file.
// It owns the underlying byte slice and is responsible for unmapping it.
type Mapping struct {
	data   []byte
	offset int64
	mode   Mode
	closed atomic.Bool
	// unmap is the platform-specific function to unmap the memory.
	unmap func([]byte) error
}

// Map maps length bytes of the file referred to by fd, starting at offset.
// offset must be a multiple of Granularity().
func Map(fd uintptr, offset int64, length int, mode Mode) (*Mapping, error) {
	if length <= 0 {
		return nil, ErrInvalidSize
	}
	if offset < 0 || offset%int64(Granularity()) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOffset, offset)
	}

	data, unmapFunc, err := osMap(fd, offset, length, mode)
	if err != nil {
		return nil, err
	}

	return &Mapping{
		data:   data,
		offset: offset,
		mode:   mode,
		unmap:  unmapFunc,
	}, nil
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil // Already closed
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}

// Closed reports whether Close has been called.
func (m *Mapping) Closed() bool {
	return m.closed.Load()
}

// Bytes returns the underlying byte slice.
// Warning: The slice is valid only until Close() is called.
// Accessing the slice after Close() results in undefined behavior (likely a crash).
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return len(m.data)
}

// Offset returns the file offset the mapping starts at.
func (m *Mapping) Offset() int64 {
	return m.offset
}

// Mode returns the protection the mapping was created with.
func (m *Mapping) Mode() Mode {
	return m.mode
}

// Advise provides hints to the kernel about how the memory will be accessed.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return Advise(m.data, pattern)
}

// Sync flushes dirty pages of a writable mapping to the file.
func (m *Mapping) Sync() error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.mode != ReadWrite || len(m.data) == 0 {
		return nil
	}
	return osSync(m.data)
}

// ReadAt implements io.ReaderAt relative to the start of the mapping.
func (m *Mapping) ReadAt(p []byte, off int64) (n int, err error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n = copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Advise applies an access pattern hint to an arbitrary mapped slice.
func Advise(data []byte, pattern AccessPattern) error {
	if len(data) == 0 {
		return nil
	}
	return osAdvise(data, pattern)
}

// Unmap releases a slice previously obtained from Map by a caller that kept
// only the bytes.
func Unmap(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return osUnmap(data)
}
