package regionmap

import (
	"fmt"

	"github.com/hupe1980/regionmap/filemap"
)

// OpenFixed maps a file of exactly size bytes. Write modes create or resize
// the file; ReadOnly with size 0 maps the whole existing file.
func OpenFixed(path string, size int64, mode filemap.Mode, regionSize int64, opts ...Option) (*Mapper, error) {
	o := applyOptions(opts)
	fm, err := filemap.NewFixed(path, size, mode, fileOptions(&o)...)
	if err != nil {
		return nil, translateError(err)
	}
	return newOwning(fm, path, regionSize, &o, opts)
}

// OpenExpandable maps a file that grows as regions past its end are mapped.
// In ReadOnly mode regions past the end fail with ErrBeyondEOF instead.
func OpenExpandable(path string, mode filemap.Mode, regionSize int64, opts ...Option) (*Mapper, error) {
	o := applyOptions(opts)
	fm, err := filemap.NewExpandable(path, mode, fileOptions(&o)...)
	if err != nil {
		return nil, translateError(err)
	}
	return newOwning(fm, path, regionSize, &o, opts)
}

// OpenReadOnly maps a file another process may still be writing. The file
// need not exist yet; maps fail with ErrBeyondEOF until it covers the region.
func OpenReadOnly(path string, regionSize int64, opts ...Option) (*Mapper, error) {
	o := applyOptions(opts)
	fm := filemap.NewReadOnly(path, fileOptions(&o)...)
	return newOwning(fm, path, regionSize, &o, opts)
}

// OpenRolled maps a stream split into files of maxFileSize bytes named
// <prefix>_<index>. With WithArchive, every file a writer seals is uploaded.
func OpenRolled(prefix string, maxFileSize int64, mode filemap.Mode, regionSize int64, opts ...Option) (*Mapper, error) {
	if regionSize <= 0 || maxFileSize < regionSize || maxFileSize%regionSize != 0 {
		return nil, fmt.Errorf("%w: file size %d is not a multiple of region size %d", ErrInvalidArgument, maxFileSize, regionSize)
	}
	o := applyOptions(opts)
	fopts := fileOptions(&o)

	var arch *archiver
	if o.archive != nil {
		if !mode.Writable() {
			return nil, fmt.Errorf("%w: archiving needs a writer", ErrInvalidArgument)
		}
		arch = newArchiver(o.archive, prefix, o.controller(), o.logger, o.metricsCollector)
		fopts = append(fopts, filemap.WithOnSeal(arch.onSeal))
	}

	fm, err := filemap.NewRolled(prefix, maxFileSize, mode, fopts...)
	if err != nil {
		return nil, translateError(err)
	}
	if arch != nil {
		opts = append(opts, withArchiver(arch))
	}
	return newOwning(fm, prefix, regionSize, &o, opts)
}

// newOwning builds the Mapper over a file mapper the Open constructors
// created, closing it if the Mapper cannot be built.
func newOwning(fm filemap.FileMapper, path string, regionSize int64, o *options, opts []Option) (*Mapper, error) {
	opts = append(opts, WithResourceController(o.controller()), WithLogger(o.logger.WithPath(path)))
	m, err := New(fm, regionSize, opts...)
	if err != nil {
		_ = fm.Close()
		return nil, err
	}
	return m, nil
}

func fileOptions(o *options) []filemap.Option {
	fopts := []filemap.Option{
		filemap.WithLogger(o.logger.Logger),
		filemap.WithIOThrottle(o.controller()),
		filemap.WithPretouch(o.pretouch),
		filemap.WithFilesToCreateAhead(o.createAhead),
	}
	if o.maxFileSize > 0 {
		fopts = append(fopts, filemap.WithMaxSize(o.maxFileSize))
	}
	return fopts
}
