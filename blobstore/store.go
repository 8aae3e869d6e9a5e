package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for archiving immutable blobs.
type Store interface {
	// Put writes the blob read from r. size is the number of bytes r yields,
	// or -1 if unknown. A blob of the same name is replaced.
	Put(ctx context.Context, name string, r io.Reader, size int64) error
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to an archived blob.
type Blob interface {
	io.Closer
	// ReadAt reads len(p) bytes at off, with io.ReaderAt semantics.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// Size returns the size of the blob in bytes.
	Size() int64
}

// NewReader returns a reader over the whole blob. Reads honor ctx.
func NewReader(ctx context.Context, b Blob) io.Reader {
	return io.NewSectionReader(ctxReaderAt{ctx: ctx, b: b}, 0, b.Size())
}

// ctxReaderAt binds a context to Blob.ReadAt.
type ctxReaderAt struct {
	ctx context.Context
	b   Blob
}

func (r ctxReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.b.ReadAt(r.ctx, p, off)
}
