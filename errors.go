package regionmap

import (
	"errors"
	"fmt"

	"github.com/hupe1980/regionmap/filemap"
	"github.com/hupe1980/regionmap/internal/region"
	"github.com/hupe1980/regionmap/internal/ringcache"
	"github.com/hupe1980/regionmap/resource"
	"github.com/hupe1980/regionmap/wait"
)

var (
	// ErrClosed is returned by every operation on a closed Mapper.
	ErrClosed = errors.New("regionmap: closed")
	// ErrInvalidArgument is returned for negative positions and invalid options.
	ErrInvalidArgument = errors.New("regionmap: invalid argument")
	// ErrMappingFailed is returned when the region could not be mapped.
	ErrMappingFailed = errors.New("regionmap: mapping failed")
	// ErrTimeout is returned when an asynchronous map did not complete in time.
	ErrTimeout = wait.ErrTimeout
	// ErrBusy is returned by a no-wait policy while the region is still being mapped.
	ErrBusy = errors.New("regionmap: mapping in progress")
	// ErrFileSizeExceeded is returned when a region would grow a file past its maximum size.
	ErrFileSizeExceeded = errors.New("regionmap: file size exceeded")
	// ErrBeyondEOF is returned by read mappers for regions the file does not reach yet.
	ErrBeyondEOF = errors.New("regionmap: region beyond end of file")
	// ErrMemoryLimitExceeded is returned when mapping would exceed the mapped-memory budget.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded
)

// MapError records the operation, file and position of a failed map.
type MapError = filemap.MapError

// ErrInvalidRegionSize indicates a region size that is not a power of two
// or not a multiple of the OS mapping granularity.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidRegionSize struct {
	Size  int64
	cause error
}

func (e *ErrInvalidRegionSize) Error() string {
	return fmt.Sprintf("invalid region size: %d", e.Size)
}

func (e *ErrInvalidRegionSize) Unwrap() error { return e.cause }

// ErrInvalidCacheSize indicates a cache size that is not a positive power of two.
type ErrInvalidCacheSize struct {
	Size  int
	cause error
}

func (e *ErrInvalidCacheSize) Error() string {
	return fmt.Sprintf("invalid cache size: %d", e.Size)
}

func (e *ErrInvalidCacheSize) Unwrap() error { return e.cause }

// IsRetryable reports whether a failed map may succeed later, e.g. because
// a writer is still growing the file.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBeyondEOF)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrClosed), errors.Is(err, ErrBusy), errors.Is(err, ErrTimeout):
		return err
	case errors.Is(err, filemap.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	case errors.Is(err, filemap.ErrBeyondEOF):
		return fmt.Errorf("%w: %w", ErrBeyondEOF, err)
	case errors.Is(err, filemap.ErrFileSizeExceeded):
		return fmt.Errorf("%w: %w", ErrFileSizeExceeded, err)
	case errors.Is(err, filemap.ErrInvalidArgument), errors.Is(err, region.ErrInvalidSize):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	case errors.Is(err, ringcache.ErrInvalidCacheSize):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	case errors.Is(err, resource.ErrMemoryLimitExceeded):
		// Already matches ErrMemoryLimitExceeded; add the mapping class.
		return fmt.Errorf("%w: %w", ErrMappingFailed, err)
	}

	// Lock conflicts, layout mismatches and OS failures are all map failures
	// from the caller's point of view.
	return fmt.Errorf("%w: %w", ErrMappingFailed, err)
}
