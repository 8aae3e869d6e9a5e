package filemap

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/hupe1980/regionmap/internal/fs"
	"github.com/hupe1980/regionmap/internal/mmap"
)

// latched marks the published length while one goroutine extends the file.
const latched = -1

// Expandable maps regions of one file and grows the file when a region ends
// past its current length. Map and Unmap are safe for concurrent use.
type Expandable struct {
	path   string
	mode   Mode
	file   fs.File
	opts   options
	length atomic.Int64
	closed atomic.Bool

	pageSize int
	mapped   atomic.Int64
	touched  atomic.Int64
}

var (
	_ FileMapper = (*Expandable)(nil)
	_ Syncer     = (*Expandable)(nil)
	_ Probe      = (*Expandable)(nil)
)

// NewExpandable opens path. Write modes create the file and take an
// exclusive lock on it; ReadOnly requires the file to exist and never grows it.
func NewExpandable(path string, mode Mode, opts ...Option) (*Expandable, error) {
	o := applyOptions(opts)
	if o.maxSize < 0 {
		return nil, fmt.Errorf("%w: max size %d", ErrInvalidArgument, o.maxSize)
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

	st, err := f.Stat()
	if err != nil {
		if mode.Writable() {
			_ = fs.Unlock(f)
		}
		_ = f.Close()
		return nil, fmt.Errorf("filemap: stat %s: %w", path, err)
	}

	e := &Expandable{
		path:     path,
		mode:     mode,
		file:     f,
		opts:     o,
		pageSize: mmap.PageSize(),
	}
	e.length.Store(st.Size())
	o.logger.Debug("expandable file opened", "path", path, "length", st.Size(), "mode", mode.String())
	return e, nil
}

// Length returns the file length as last published.
func (e *Expandable) Length() int64 {
	for {
		if n := e.length.Load(); n != latched {
			return n
		}
		runtime.Gosched()
	}
}

// Path returns the backing file.
func (e *Expandable) Path() string { return e.path }

// Mapped returns the number of live mappings.
func (e *Expandable) Mapped() int64 { return e.mapped.Load() }

// Touched returns the number of pages pre-touched so far.
func (e *Expandable) Touched() int64 { return e.touched.Load() }

func (e *Expandable) Map(position int64, length int) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if err := checkArgs(position, length); err != nil {
		return nil, err
	}
	end := position + int64(length)
	if e.opts.maxSize > 0 && end > e.opts.maxSize {
		return nil, &MapError{Op: "map", Path: e.path, Position: position, Err: ErrFileSizeExceeded}
	}

	var (
		before int64
		err    error
	)
	if e.mode.Writable() {
		before, err = e.ensureLength(end)
	} else {
		before, err = e.readableLength(end)
	}
	if err != nil {
		return nil, err
	}

	m, err := mmap.Map(e.file.Fd(), position, length, e.mode.mmapMode())
	if err != nil {
		return nil, mapFailed("map", e.path, position, err)
	}
	data := m.Bytes()
	e.mapped.Add(1)

	if e.mode.Writable() && e.opts.pretouch && end > before {
		e.pretouch(data, max(before, position)-position)
	}
	return data, nil
}

// ensureLength grows the file to at least end. Only the goroutine that wins
// the latch truncates, so concurrent growth never shrinks the file. It
// returns the length before growth.
func (e *Expandable) ensureLength(end int64) (int64, error) {
	for {
		cur := e.length.Load()
		if cur == latched {
			runtime.Gosched()
			continue
		}
		if cur >= end {
			return cur, nil
		}
		if !e.length.CompareAndSwap(cur, latched) {
			continue
		}

		// Another process may have grown the file meanwhile.
		if st, err := e.file.Stat(); err == nil && st.Size() >= end {
			e.length.Store(st.Size())
			return cur, nil
		}
		if err := e.file.Truncate(end); err != nil {
			e.length.Store(cur)
			return cur, mapFailed("grow", e.path, end, err)
		}
		e.length.Store(end)
		e.opts.logger.Debug("file extended", "path", e.path, "from", cur, "to", end)
		return cur, nil
	}
}

// readableLength checks a read-only file, re-reading its size when the
// cached length is too short.
func (e *Expandable) readableLength(end int64) (int64, error) {
	cur := e.Length()
	if cur >= end {
		return cur, nil
	}
	st, err := e.file.Stat()
	if err != nil {
		return cur, mapFailed("stat", e.path, end, err)
	}
	if st.Size() > cur {
		e.length.CompareAndSwap(cur, st.Size())
	}
	if st.Size() < end {
		return cur, &MapError{Op: "map", Path: e.path, Position: end, Err: ErrBeyondEOF}
	}
	return st.Size(), nil
}

// pretouch writes one byte per OS page from offset on so page faults happen
// here rather than on the first write of the caller. The range is zero since
// it was just allocated by the truncate.
func (e *Expandable) pretouch(data []byte, offset int64) {
	if offset < 0 || offset >= int64(len(data)) {
		return
	}
	span := len(data) - int(offset)
	if rc := e.opts.throttle; rc != nil {
		if err := rc.AcquireIO(context.Background(), span); err != nil {
			e.opts.logger.Warn("pretouch throttle failed", "path", e.path, "error", err)
			return
		}
	}
	n := int64(0)
	for i := int(offset); i < len(data); i += e.pageSize {
		data[i] = 0
		n++
	}
	e.touched.Add(n)
}

func (e *Expandable) Unmap(data []byte, position int64, length int) {
	if len(data) == 0 {
		return
	}
	if err := mmap.Unmap(data); err != nil {
		e.opts.logger.Warn("unmap failed", "path", e.path, "position", position, "length", length, "error", err)
		return
	}
	e.mapped.Add(-1)
}

// Available reports whether the region lies inside the file.
func (e *Expandable) Available(position int64, length int) bool {
	st, err := e.file.Stat()
	return err == nil && st.Size() >= position+int64(length)
}

// PathFor returns the backing file.
func (e *Expandable) PathFor(int64) string { return e.path }

// Sync flushes file metadata and data written through mappings that were
// already unmapped. Live mappings are flushed by the kernel on unmap.
func (e *Expandable) Sync() error {
	if e.closed.Load() {
		return ErrClosed
	}
	if !e.mode.Writable() {
		return nil
	}
	return e.file.Sync()
}

func (e *Expandable) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	var errs []error
	if e.mode.Writable() {
		errs = append(errs, e.file.Sync(), fs.Unlock(e.file))
	}
	errs = append(errs, e.file.Close())
	return errors.Join(errs...)
}
