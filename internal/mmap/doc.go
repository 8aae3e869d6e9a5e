// Package mmap is the operating-system boundary for memory-mapped file access.
//
// # Overview
//
// A [Mapping] owns exactly one OS mapping of a byte range of a file. Mappings
// are created at an arbitrary offset that must be a multiple of [Granularity]:
//
//	m, err := mmap.Map(f.Fd(), offset, 64<<10, mmap.ReadWrite)
//	if err != nil { ... }
//	defer m.Close()
//
//	data := m.Bytes()
//
//	// Provide kernel hints for access patterns
//	m.Advise(mmap.AccessSequential)
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2), munmap(2), madvise(2), msync(2)
//   - Windows: CreateFileMapping/MapViewOfFile (madvise is a no-op)
//
// # Thread Safety
//
// Close is idempotent and protected by an atomic flag. Callers must ensure no
// goroutine reads Bytes() after Close() returns; higher layers enforce this
// with per-slot generations.
package mmap
