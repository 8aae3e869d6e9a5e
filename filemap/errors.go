package filemap

import (
	"errors"
	"fmt"
)

var (
	// ErrMappingFailed is returned when the OS refused to map a region.
	ErrMappingFailed = errors.New("filemap: mapping failed")
	// ErrBeyondEOF is returned by read mappers for regions past the current
	// end of file. The file may still grow, so the request can be retried.
	ErrBeyondEOF = errors.New("filemap: region beyond end of file")
	// ErrFileSizeExceeded is returned when a region would grow a file past
	// its configured maximum size. It is not retryable.
	ErrFileSizeExceeded = errors.New("filemap: maximum file size exceeded")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("filemap: closed")
	// ErrInvalidArgument is returned for negative positions, non-positive
	// lengths and regions that cross a rolled file boundary.
	ErrInvalidArgument = errors.New("filemap: invalid argument")
	// ErrLocked is returned when another process holds the file lock.
	ErrLocked = errors.New("filemap: file is locked")
	// ErrLayoutMismatch is returned when a rolled layout descriptor on disk
	// does not match the requested layout.
	ErrLayoutMismatch = errors.New("filemap: layout mismatch")
)

// MapError records the operation, file and position that failed.
type MapError struct {
	Op       string
	Path     string
	Position int64
	Err      error
}

func (e *MapError) Error() string {
	return fmt.Sprintf("%s %s at %d: %v", e.Op, e.Path, e.Position, e.Err)
}

func (e *MapError) Unwrap() error { return e.Err }

// IsRetryable reports whether a failed Map may succeed later without any
// change on the caller's side.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBeyondEOF)
}

func mapFailed(op, path string, position int64, err error) error {
	return &MapError{Op: op, Path: path, Position: position, Err: fmt.Errorf("%w: %w", ErrMappingFailed, err)}
}

func checkArgs(position int64, length int) error {
	if position < 0 {
		return fmt.Errorf("%w: negative position %d", ErrInvalidArgument, position)
	}
	if length <= 0 {
		return fmt.Errorf("%w: length %d", ErrInvalidArgument, length)
	}
	return nil
}
