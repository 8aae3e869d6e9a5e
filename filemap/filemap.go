package filemap

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/hupe1980/regionmap/internal/fs"
	"github.com/hupe1980/regionmap/internal/mmap"
	"github.com/hupe1980/regionmap/resource"
)

// FileMapper maps regions of a backing file.
//
// Map and Unmap may be called from different goroutines, but a region is
// never mapped twice without an Unmap in between.
type FileMapper interface {
	// Map maps length bytes starting at position.
	Map(position int64, length int) ([]byte, error)
	// Unmap releases data obtained from Map with the same position and length.
	Unmap(data []byte, position int64, length int)
	// Close releases the file. Regions still mapped stay valid until unmapped.
	Close() error
}

// Syncer is implemented by mappers that can flush written pages.
type Syncer interface {
	Sync() error
}

// Probe is implemented by read mappers that can tell whether a region is
// readable yet. Tail readers use it to wait for a writer.
type Probe interface {
	// Available reports whether [position, position+length) lies inside the file.
	Available(position int64, length int) bool
	// PathFor returns the file that backs position.
	PathFor(position int64) string
}

// Mode is the access mode of a file mapper.
type Mode int

const (
	// ReadOnly maps existing data for reading.
	ReadOnly Mode = iota
	// ReadWrite maps for reading and writing and keeps existing content.
	ReadWrite
	// ReadWriteClear is ReadWrite but truncates existing content on open.
	ReadWriteClear
)

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "r"
	case ReadWrite:
		return "rw"
	case ReadWriteClear:
		return "rw-clear"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Writable reports whether regions are mapped writable.
func (m Mode) Writable() bool {
	return m == ReadWrite || m == ReadWriteClear
}

func (m Mode) mmapMode() mmap.Mode {
	if m.Writable() {
		return mmap.ReadWrite
	}
	return mmap.ReadOnly
}

func (m Mode) openFlags() int {
	switch m {
	case ReadWrite, ReadWriteClear:
		// Clearing happens after the lock is taken.
		return os.O_RDWR | os.O_CREATE
	default:
		return os.O_RDONLY
	}
}

// ParseMode parses "r", "rw" or "rw-clear" and their long forms.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "r", "read", "read-only", "readonly":
		return ReadOnly, nil
	case "rw", "read-write", "readwrite":
		return ReadWrite, nil
	case "rw-clear", "read-write-clear", "clear":
		return ReadWriteClear, nil
	default:
		return ReadOnly, fmt.Errorf("%w: unknown mode %q", ErrInvalidArgument, s)
	}
}

// MapperFactory opens the mapper for one file of a Rolled mapper.
type MapperFactory func(path string, mode Mode) (FileMapper, error)

type options struct {
	fs          fs.FileSystem
	logger      *slog.Logger
	maxSize     int64
	throttle    *resource.Controller
	pretouch    bool
	createAhead int
	onSeal      func(index int64, path string)
	factory     MapperFactory
}

// Option configures a file mapper.
type Option func(*options)

// WithFileSystem sets the file system. The default is the local file system.
func WithFileSystem(f fs.FileSystem) Option {
	return func(o *options) {
		if f != nil {
			o.fs = f
		}
	}
}

// WithLogger sets the logger for swallowed unmap failures and file events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxSize caps the size an Expandable mapper grows its file to.
func WithMaxSize(n int64) Option {
	return func(o *options) {
		o.maxSize = n
	}
}

// WithIOThrottle charges pre-touched bytes against the controller's IO limit.
func WithIOThrottle(rc *resource.Controller) Option {
	return func(o *options) {
		o.throttle = rc
	}
}

// WithPretouch enables or disables touching newly extended pages once.
// It is enabled by default.
func WithPretouch(enabled bool) Option {
	return func(o *options) {
		o.pretouch = enabled
	}
}

// WithFilesToCreateAhead sets how many files a writing Rolled mapper
// creates beyond the active one.
func WithFilesToCreateAhead(n int) Option {
	return func(o *options) {
		o.createAhead = max(n, 0)
	}
}

// WithOnSeal sets the callback a writing Rolled mapper fires once per file
// after the file was released and a later file was mapped.
func WithOnSeal(fn func(index int64, path string)) Option {
	return func(o *options) {
		o.onSeal = fn
	}
}

// WithMapperFactory replaces the mapper a Rolled mapper opens per file.
func WithMapperFactory(f MapperFactory) Option {
	return func(o *options) {
		o.factory = f
	}
}

func applyOptions(opts []Option) options {
	o := options{
		fs:          fs.Default,
		logger:      slog.New(slog.DiscardHandler),
		pretouch:    true,
		createAhead: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
