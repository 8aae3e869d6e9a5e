package filemap

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ReadOnlyMapper maps regions of a file another process may still be
// writing. The file is opened on the first Map; a missing file or a region
// past the end fails with the retryable ErrBeyondEOF.
type ReadOnlyMapper struct {
	path   string
	opts   []Option
	o      options
	mu     sync.Mutex
	inner  atomic.Pointer[Expandable]
	closed atomic.Bool
}

var (
	_ FileMapper = (*ReadOnlyMapper)(nil)
	_ Probe      = (*ReadOnlyMapper)(nil)
)

// NewReadOnly returns a read-only mapper for path. It does not touch the file.
func NewReadOnly(path string, opts ...Option) *ReadOnlyMapper {
	return &ReadOnlyMapper{path: path, opts: opts, o: applyOptions(opts)}
}

func (r *ReadOnlyMapper) open() (*Expandable, error) {
	if e := r.inner.Load(); e != nil {
		return e, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if e := r.inner.Load(); e != nil {
		return e, nil
	}
	e, err := NewExpandable(r.path, ReadOnly, r.opts...)
	if err != nil {
		return nil, err
	}
	r.inner.Store(e)
	return e, nil
}

func (r *ReadOnlyMapper) Map(position int64, length int) ([]byte, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if err := checkArgs(position, length); err != nil {
		return nil, err
	}
	e, err := r.open()
	if err != nil {
		return nil, err
	}
	return e.Map(position, length)
}

func (r *ReadOnlyMapper) Unmap(data []byte, position int64, length int) {
	if e := r.inner.Load(); e != nil {
		e.Unmap(data, position, length)
	}
}

// Available reports whether the file exists and covers the region.
func (r *ReadOnlyMapper) Available(position int64, length int) bool {
	st, err := r.o.fs.Stat(r.path)
	return err == nil && st.Size() >= position+int64(length)
}

// PathFor returns the mapped file.
func (r *ReadOnlyMapper) PathFor(int64) string { return r.path }

func (r *ReadOnlyMapper) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Swap(true) {
		return nil
	}
	if e := r.inner.Load(); e != nil {
		return e.Close()
	}
	return nil
}

// IsMissing reports whether err means the file did not exist yet.
func IsMissing(err error) bool {
	var me *MapError
	return errors.As(err, &me) && me.Op == "open" && errors.Is(err, ErrBeyondEOF)
}
