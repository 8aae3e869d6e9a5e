// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: an open file with the capabilities file mappers need
//     (descriptor access for mmap, truncation for growth, sync, stat)
//   - [FileSystem]: filesystem operations (open, remove, stat, ...)
//
// # Implementations
//
//   - [LocalFS]: Production implementation using standard os package
//   - [FaultyFS]: Test utility for fault injection (simulate open, truncate,
//     sync and close failures)
//
// # Usage
//
// Production code should use fs.Default (which is [LocalFS]):
//
//	file, err := fs.Default.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
//
// Tests can inject [FaultyFS] to simulate failures:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("_3", fs.Fault{FailOnTruncate: true})
//	// inject ffs into the file mapper under test
//
// # Locks
//
// [TryLock] takes an advisory, exclusive, non-blocking OS lock (flock on Unix,
// LockFileEx on Windows) so two writers never grow the same file.
//
// # Design Notes
//
// This package intentionally does NOT include context.Context parameters.
// Filesystem operations are typically fast and non-interruptible at the
// syscall level.
package fs
