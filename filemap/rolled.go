package filemap

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/regionmap/internal/conv"
	"github.com/hupe1980/regionmap/internal/mmap"
	"github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"
)

// LayoutVersion is the format version written to layout descriptors.
const LayoutVersion = 1

// Layout is the descriptor stored next to rolled files.
type Layout struct {
	Version     int   `json:"version"`
	MaxFileSize int64 `json:"max_file_size"`
}

// FileName returns the name of the rolled file with the given index.
func FileName(prefix string, index int64) string {
	return prefix + "_" + strconv.FormatInt(index, 10)
}

// LayoutPath returns the path of the layout descriptor for prefix.
func LayoutPath(prefix string) string {
	return prefix + ".layout"
}

type rolledFile struct {
	fm   FileMapper
	refs int
}

type sealEvent struct {
	index int64
	path  string
}

// Rolled spreads positions over files of maxFileSize bytes named
// <prefix>_<index>. A region must lie within one file.
//
// In write modes files beyond the active one are created ahead of time, a
// file is closed once its last region is unmapped, and a closed file is
// sealed once a later file has been mapped. In ReadOnly mode files stay open
// until Close.
type Rolled struct {
	prefix      string
	maxFileSize int64
	mode        Mode
	opts        options
	fileOpts    []Option

	mu      sync.Mutex
	files   map[int64]*rolledFile
	created *roaring.Bitmap
	sealed  *roaring.Bitmap
	highest int64
	closed  bool
}

var (
	_ FileMapper = (*Rolled)(nil)
	_ Probe      = (*Rolled)(nil)
)

// NewRolled returns a rolled mapper. maxFileSize must be a power of two and
// a multiple of the OS mapping granularity.
func NewRolled(prefix string, maxFileSize int64, mode Mode, opts ...Option) (*Rolled, error) {
	if prefix == "" {
		return nil, fmt.Errorf("%w: empty prefix", ErrInvalidArgument)
	}
	if g := int64(mmap.Granularity()); maxFileSize <= 0 || maxFileSize&(maxFileSize-1) != 0 || maxFileSize%g != 0 {
		return nil, fmt.Errorf("%w: max file size %d is not a power-of-two multiple of %d", ErrInvalidArgument, maxFileSize, g)
	}
	o := applyOptions(opts)

	r := &Rolled{
		prefix:      prefix,
		maxFileSize: maxFileSize,
		mode:        mode,
		opts:        o,
		fileOpts:    opts,
		files:       make(map[int64]*rolledFile),
		created:     roaring.New(),
		sealed:      roaring.New(),
		highest:     -1,
	}
	if r.opts.factory == nil {
		r.opts.factory = r.defaultFactory
	}

	if mode.Writable() {
		if err := o.fs.MkdirAll(filepath.Dir(prefix), 0o755); err != nil {
			return nil, fmt.Errorf("filemap: create directory for %s: %w", prefix, err)
		}
		if mode == ReadWriteClear {
			if err := r.clear(); err != nil {
				return nil, err
			}
		}
		if err := r.scan(); err != nil {
			return nil, err
		}
	}
	if err := r.checkLayout(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rolled) defaultFactory(path string, mode Mode) (FileMapper, error) {
	if !mode.Writable() {
		return NewReadOnly(path, r.fileOpts...), nil
	}
	// Clearing was done once for the whole set; reopening keeps content.
	opts := append([]Option{}, r.fileOpts...)
	opts = append(opts, WithMaxSize(r.maxFileSize))
	return NewExpandable(path, ReadWrite, opts...)
}

// existing returns the indices of rolled files found on disk.
func (r *Rolled) existing() ([]int64, error) {
	dir, base := filepath.Split(r.prefix)
	if dir == "" {
		dir = "."
	}
	entries, err := r.opts.fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("filemap: list %s: %w", dir, err)
	}
	var out []int64
	for _, e := range entries {
		suffix, ok := strings.CutPrefix(e.Name(), base+"_")
		if !ok || e.IsDir() {
			continue
		}
		index, err := strconv.ParseInt(suffix, 10, 64)
		if err != nil || index < 0 {
			continue
		}
		out = append(out, index)
	}
	return out, nil
}

func (r *Rolled) scan() error {
	indices, err := r.existing()
	if err != nil {
		return err
	}
	for _, i := range indices {
		if i <= math.MaxUint32 {
			r.created.Add(uint32(i))
		}
	}
	return nil
}

func (r *Rolled) clear() error {
	indices, err := r.existing()
	if err != nil {
		return err
	}
	for _, i := range indices {
		if err := r.opts.fs.Remove(FileName(r.prefix, i)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("filemap: clear %s: %w", FileName(r.prefix, i), err)
		}
	}
	if err := r.opts.fs.Remove(LayoutPath(r.prefix)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("filemap: clear layout: %w", err)
	}
	return nil
}

func (r *Rolled) checkLayout() error {
	path := LayoutPath(r.prefix)
	want := Layout{Version: LayoutVersion, MaxFileSize: r.maxFileSize}

	f, err := r.opts.fs.OpenFile(path, os.O_RDONLY, 0)
	switch {
	case err == nil:
		data, readErr := io.ReadAll(f)
		_ = f.Close()
		if readErr != nil {
			return fmt.Errorf("filemap: read layout %s: %w", path, readErr)
		}
		var got Layout
		if err := json.Unmarshal(data, &got); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrLayoutMismatch, path, err)
		}
		if got != want {
			return fmt.Errorf("%w: %s has version %d max file size %d, want version %d max file size %d",
				ErrLayoutMismatch, path, got.Version, got.MaxFileSize, want.Version, want.MaxFileSize)
		}
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("filemap: open layout %s: %w", path, err)
	case !r.mode.Writable():
		// The writer has not started yet.
		return nil
	}

	data, err := json.MarshalIndent(want, "", "  ")
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("filemap: write layout %s: %w", path, err)
	}
	return nil
}

// MaxFileSize returns the size of each rolled file.
func (r *Rolled) MaxFileSize() int64 { return r.maxFileSize }

// Index returns the index of the file that backs position.
func (r *Rolled) Index(position int64) int64 { return position / r.maxFileSize }

func (r *Rolled) Map(position int64, length int) ([]byte, error) {
	if err := checkArgs(position, length); err != nil {
		return nil, err
	}
	index := position / r.maxFileSize
	local := position % r.maxFileSize
	if local+int64(length) > r.maxFileSize {
		return nil, fmt.Errorf("%w: region [%d,%d) crosses a file boundary", ErrInvalidArgument, position, position+int64(length))
	}
	if _, err := conv.Int64ToUint32(index); err != nil {
		return nil, &MapError{Op: "map", Path: r.prefix, Position: position, Err: fmt.Errorf("%w: file index: %w", ErrFileSizeExceeded, err)}
	}

	f, ahead, seals, err := r.acquire(index)
	if err != nil {
		return nil, err
	}
	r.fire(seals)
	if len(ahead) > 0 {
		r.createAhead(ahead)
	}

	data, err := f.fm.Map(local, length)
	if err != nil {
		r.fire(r.release(index))
		return nil, err
	}
	return data, nil
}

func (r *Rolled) acquire(index int64) (*rolledFile, []int64, []sealEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, nil, nil, ErrClosed
	}

	f, ok := r.files[index]
	if !ok {
		fm, err := r.opts.factory(FileName(r.prefix, index), r.mode)
		if err != nil {
			return nil, nil, nil, err
		}
		f = &rolledFile{fm: fm}
		r.files[index] = f
		if r.mode.Writable() {
			r.created.Add(uint32(index))
		}
		r.opts.logger.Debug("rolled file opened", "index", index, "path", FileName(r.prefix, index))
	}
	f.refs++

	if !r.mode.Writable() || index <= r.highest {
		return f, nil, nil, nil
	}
	r.highest = index

	var seals []sealEvent
	it := r.created.Iterator()
	for it.HasNext() {
		i := int64(it.Next())
		if i >= index {
			break
		}
		if _, open := r.files[i]; !open && !r.sealed.Contains(uint32(i)) {
			seals = append(seals, r.seal(i))
		}
	}

	var ahead []int64
	for i := index + 1; i <= index+int64(r.opts.createAhead) && i <= math.MaxUint32; i++ {
		if !r.created.Contains(uint32(i)) {
			r.created.Add(uint32(i))
			ahead = append(ahead, i)
		}
	}
	return f, ahead, seals, nil
}

// seal must be called with mu held.
func (r *Rolled) seal(index int64) sealEvent {
	r.sealed.Add(uint32(index))
	r.opts.logger.Debug("rolled file sealed", "index", index)
	return sealEvent{index: index, path: FileName(r.prefix, index)}
}

func (r *Rolled) fire(seals []sealEvent) {
	if r.opts.onSeal == nil {
		return
	}
	for _, s := range seals {
		r.opts.onSeal(s.index, s.path)
	}
}

// createAhead creates and sizes the given files in parallel. Failures are
// logged; the file is created on demand when it is mapped.
func (r *Rolled) createAhead(indices []int64) {
	var g errgroup.Group
	for _, index := range indices {
		g.Go(func() error {
			path := FileName(r.prefix, index)
			f, err := r.opts.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
			if err != nil {
				return fmt.Errorf("create %s: %w", path, err)
			}
			defer f.Close()
			st, err := f.Stat()
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			if st.Size() < r.maxFileSize {
				if err := f.Truncate(r.maxFileSize); err != nil {
					return fmt.Errorf("size %s: %w", path, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.opts.logger.Warn("create rolled file ahead failed", "error", err)
	}
}

func (r *Rolled) Unmap(data []byte, position int64, length int) {
	index := position / r.maxFileSize
	r.mu.Lock()
	f, ok := r.files[index]
	r.mu.Unlock()
	if !ok {
		r.opts.logger.Warn("unmap of unknown rolled file", "index", index, "position", position)
		return
	}
	f.fm.Unmap(data, position%r.maxFileSize, length)
	r.fire(r.release(index))
}

// release drops one reference. In write modes the last reference closes the
// file, which is sealed right away when a later file is already mapped.
func (r *Rolled) release(index int64) []sealEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[index]
	if !ok {
		return nil
	}
	f.refs--
	if f.refs > 0 || !r.mode.Writable() || r.closed {
		return nil
	}
	delete(r.files, index)
	if err := f.fm.Close(); err != nil {
		r.opts.logger.Warn("close rolled file failed", "index", index, "error", err)
	}
	if index < r.highest && !r.sealed.Contains(uint32(index)) {
		return []sealEvent{r.seal(index)}
	}
	return nil
}

// Available reports whether the file backing position exists and covers the region.
func (r *Rolled) Available(position int64, length int) bool {
	local := position % r.maxFileSize
	st, err := r.opts.fs.Stat(r.PathFor(position))
	return err == nil && st.Size() >= local+int64(length)
}

// PathFor returns the file that backs position.
func (r *Rolled) PathFor(position int64) string {
	return FileName(r.prefix, position/r.maxFileSize)
}

// Created returns the indices of files created or found on disk, ascending.
func (r *Rolled) Created() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created.ToArray()
}

// Sealed returns the indices of sealed files, ascending.
func (r *Rolled) Sealed() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sealed.ToArray()
}

// OpenFiles returns the number of files with an open mapper.
func (r *Rolled) OpenFiles() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

// Sync flushes every open file that supports it.
func (r *Rolled) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, f := range r.files {
		if s, ok := f.fm.(Syncer); ok {
			errs = append(errs, s.Sync())
		}
	}
	return errors.Join(errs...)
}

// Close closes all open files. Regions still mapped stay valid until
// unmapped.
func (r *Rolled) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	var errs []error
	for _, f := range r.files {
		errs = append(errs, f.fm.Close())
	}
	return errors.Join(errs...)
}
