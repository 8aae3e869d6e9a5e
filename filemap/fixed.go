package filemap

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/regionmap/internal/conv"
	"github.com/hupe1980/regionmap/internal/fs"
	"github.com/hupe1980/regionmap/internal/mmap"
)

// Fixed maps a whole file of known size once. Map returns sub-slices of that
// mapping and Unmap does nothing.
type Fixed struct {
	path    string
	mode    Mode
	file    fs.File
	mapping *mmap.Mapping
	closed  atomic.Bool
	opts    options
}

var (
	_ FileMapper = (*Fixed)(nil)
	_ Syncer     = (*Fixed)(nil)
)

// NewFixed opens path and maps size bytes of it. Write modes create the file
// and size it to exactly size bytes. ReadOnly maps the whole file when size
// is zero and fails with ErrBeyondEOF when the file is shorter than size.
func NewFixed(path string, size int64, mode Mode, opts ...Option) (*Fixed, error) {
	o := applyOptions(opts)
	if size < 0 || (size == 0 && mode.Writable()) {
		return nil, fmt.Errorf("%w: fixed size %d", ErrInvalidArgument, size)
	}

	var (
		f   fs.File
		err error
	)
	if mode.Writable() {
		f, err = openLocked(o.fs, path, mode)
	} else {
		f, err = openRead(o.fs, path)
	}
	if err != nil {
		return nil, err
	}

	fail := func(err error) (*Fixed, error) {
		if mode.Writable() {
			_ = fs.Unlock(f)
		}
		_ = f.Close()
		return nil, err
	}

	if mode.Writable() {
		if err := f.Truncate(size); err != nil {
			return fail(fmt.Errorf("filemap: size %s: %w", path, err))
		}
	} else {
		st, err := f.Stat()
		if err != nil {
			return fail(fmt.Errorf("filemap: stat %s: %w", path, err))
		}
		if size == 0 {
			size = st.Size()
		}
		if size == 0 || st.Size() < size {
			return fail(&MapError{Op: "open", Path: path, Position: st.Size(), Err: ErrBeyondEOF})
		}
	}

	length, err := conv.Int64ToInt(size)
	if err != nil {
		return fail(fmt.Errorf("%w: %s: %w", ErrInvalidArgument, path, err))
	}
	m, err := mmap.Map(f.Fd(), 0, length, mode.mmapMode())
	if err != nil {
		return fail(mapFailed("map", path, 0, err))
	}

	o.logger.Debug("fixed file mapped", "path", path, "size", size, "mode", mode.String())
	return &Fixed{path: path, mode: mode, file: f, mapping: m, opts: o}, nil
}

// Size returns the mapped size.
func (f *Fixed) Size() int64 {
	return int64(f.mapping.Size())
}

func (f *Fixed) Map(position int64, length int) ([]byte, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	if err := checkArgs(position, length); err != nil {
		return nil, err
	}
	end := position + int64(length)
	if end > f.Size() {
		return nil, &MapError{Op: "map", Path: f.path, Position: position, Err: ErrFileSizeExceeded}
	}
	data := f.mapping.Bytes()
	if data == nil {
		return nil, ErrClosed
	}
	return data[position:end:end], nil
}

func (f *Fixed) Unmap([]byte, int64, int) {}

// Sync flushes written pages to the file.
func (f *Fixed) Sync() error {
	if f.closed.Load() {
		return ErrClosed
	}
	return f.mapping.Sync()
}

func (f *Fixed) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	var errs []error
	if f.mode.Writable() {
		errs = append(errs, f.mapping.Sync())
	}
	errs = append(errs, f.mapping.Close())
	if f.mode.Writable() {
		errs = append(errs, fs.Unlock(f.file))
	}
	errs = append(errs, f.file.Close())
	return errors.Join(errs...)
}
