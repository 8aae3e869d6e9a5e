package regionmap

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/regionmap/blobstore"
	"github.com/hupe1980/regionmap/filemap"
)

// ErrArchiveMismatch is returned by VerifyArchive when a blob differs from
// the local file it was archived from.
var ErrArchiveMismatch = errors.New("regionmap: archive mismatch")

const (
	// archiveTransfers bounds concurrent blob reads of the archive helpers.
	archiveTransfers = 4
	compareChunk     = 1 << 20
)

// ArchivedFile is one rolled file held by an archive.
type ArchivedFile struct {
	Index int64
	Name  string // blob name
	Path  string // local rolled file
}

// ListArchive returns the archived files of the rolled stream at prefix,
// ordered by file index.
func ListArchive(ctx context.Context, store blobstore.Store, prefix string) ([]ArchivedFile, error) {
	base := filepath.Base(prefix)
	names, err := store.List(ctx, base+"/")
	if err != nil {
		return nil, fmt.Errorf("list archive %s: %w", base, err)
	}

	var files []ArchivedFile
	for _, name := range names {
		suffix, ok := strings.CutPrefix(name, base+"/"+base+"_")
		if !ok {
			continue
		}
		index, err := strconv.ParseInt(suffix, 10, 64)
		if err != nil || index < 0 {
			continue
		}
		files = append(files, ArchivedFile{Index: index, Name: name, Path: filemap.FileName(prefix, index)})
	}
	slices.SortFunc(files, func(a, b ArchivedFile) int { return cmp.Compare(a.Index, b.Index) })
	return files, nil
}

// VerifyArchive compares every archived file of the stream at prefix with
// its local copy byte for byte and returns how many files it compared.
// Archived files without a local copy are skipped.
func VerifyArchive(ctx context.Context, store blobstore.Store, prefix string) (int, error) {
	files, err := ListArchive(ctx, store, prefix)
	if err != nil {
		return 0, err
	}

	var (
		mu      sync.Mutex
		checked int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(archiveTransfers)
	for _, f := range files {
		g.Go(func() error {
			ok, err := verifyFile(gctx, store, f)
			if ok {
				mu.Lock()
				checked++
				mu.Unlock()
			}
			return err
		})
	}
	err = g.Wait()
	return checked, err
}

func verifyFile(ctx context.Context, store blobstore.Store, f ArchivedFile) (bool, error) {
	local, err := os.Open(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer local.Close()

	st, err := local.Stat()
	if err != nil {
		return false, err
	}
	b, err := store.Open(ctx, f.Name)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer b.Close()

	size := b.Size()
	if size != st.Size() {
		return false, fmt.Errorf("%w: %s has %d bytes, %s has %d",
			ErrArchiveMismatch, f.Name, size, f.Path, st.Size())
	}

	remote := blobstore.NewReader(ctx, b)
	chunk := int(min(size, compareChunk))
	rb, lb := make([]byte, chunk), make([]byte, chunk)
	for off := int64(0); off < size; {
		n := int(min(int64(chunk), size-off))
		if _, err := io.ReadFull(remote, rb[:n]); err != nil {
			return false, fmt.Errorf("read %s: %w", f.Name, err)
		}
		if _, err := io.ReadFull(local, lb[:n]); err != nil {
			return false, fmt.Errorf("read %s: %w", f.Path, err)
		}
		if !bytes.Equal(rb[:n], lb[:n]) {
			return false, fmt.Errorf("%w: %s differs from %s in [%d,%d)",
				ErrArchiveMismatch, f.Name, f.Path, off, off+int64(n))
		}
		off += int64(n)
	}
	return true, nil
}

// RestoreArchive downloads the archived files of the stream at prefix that
// are missing locally, so a rolled reader can map them again. It returns the
// restored paths in index order. Existing local files are left alone.
func RestoreArchive(ctx context.Context, store blobstore.Store, prefix string) ([]string, error) {
	files, err := ListArchive(ctx, store, prefix)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(prefix), 0o755); err != nil {
		return nil, err
	}

	restored := make([]bool, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(archiveTransfers)
	for i, f := range files {
		if _, err := os.Stat(f.Path); err == nil {
			continue
		}
		g.Go(func() error {
			b, err := store.Open(gctx, f.Name)
			if err != nil {
				return fmt.Errorf("open %s: %w", f.Name, err)
			}
			defer b.Close()
			if err := atomic.WriteFile(f.Path, blobstore.NewReader(gctx, b)); err != nil {
				return fmt.Errorf("restore %s: %w", f.Path, err)
			}
			restored[i] = true
			return nil
		})
	}
	err = g.Wait()

	var paths []string
	for i, ok := range restored {
		if ok {
			paths = append(paths, files[i].Path)
		}
	}
	return paths, err
}

// PruneArchive deletes every archived file of the stream at prefix and
// returns how many blobs it deleted.
func PruneArchive(ctx context.Context, store blobstore.Store, prefix string) (int, error) {
	files, err := ListArchive(ctx, store, prefix)
	if err != nil {
		return 0, err
	}
	for i, f := range files {
		if err := store.Delete(ctx, f.Name); err != nil {
			return i, fmt.Errorf("delete %s: %w", f.Name, err)
		}
	}
	return len(files), nil
}
