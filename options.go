package regionmap

import (
	"log/slog"

	"github.com/hupe1980/regionmap/async"
	"github.com/hupe1980/regionmap/blobstore"
	"github.com/hupe1980/regionmap/idle"
	"github.com/hupe1980/regionmap/internal/mmap"
	"github.com/hupe1980/regionmap/resource"
	"github.com/hupe1980/regionmap/wait"
)

const (
	// DefaultCacheSize is the number of region slots of a Mapper.
	DefaultCacheSize = 16
	// DefaultMapAhead is the number of regions mapped ahead on sequential access.
	DefaultMapAhead = 1
)

// Advice is an access-pattern hint passed to the kernel for every mapped region.
type Advice = mmap.AccessPattern

const (
	AdviceNone       = mmap.AccessDefault
	AdviceSequential = mmap.AccessSequential
	AdviceRandom     = mmap.AccessRandom
	AdviceWillNeed   = mmap.AccessWillNeed
)

type options struct {
	cacheSize        int
	mapAhead         int
	async            bool
	mapRuntime       *async.Runtime
	unmapRuntime     *async.Runtime
	mapIdle          idle.Factory
	unmapIdle        idle.Factory
	policy           wait.Policy
	onTimeout        wait.TimeoutHandler[SlotState]
	metricsCollector MetricsCollector
	logger           *Logger
	memoryLimit      int64
	rc               *resource.Controller
	archive          blobstore.Store
	archiveWorkers   int64
	ioLimit          int64
	advice           Advice
	pretouch         bool
	createAhead      int
	maxFileSize      int64
	arch             *archiver
}

// Option configures a Mapper.
type Option func(*options)

// WithCacheSize sets the number of region slots. It must be a positive power of two.
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// WithMapAhead sets how many regions are mapped ahead once a caller moves
// sequentially. Zero disables map-ahead; negative values count back from
// the cache size, so -1 keeps one slot for the current region only.
func WithMapAhead(n int) Option {
	return func(o *options) {
		o.mapAhead = n
	}
}

// WithSync maps and unmaps inline on the caller's goroutine. This is the default.
func WithSync() Option {
	return func(o *options) {
		o.async = false
		o.mapRuntime = nil
		o.unmapRuntime = nil
	}
}

// WithAsync maps regions on mapRT and unmaps them on unmapRT, and makes
// callers wait according to policy.
//
// A nil mapRT makes the Mapper start and own a runtime, stopped on Close.
// A nil unmapRT unmaps on the mapping runtime.
//
// Runtimes passed in may be shared by several Mappers and are not stopped
// by Close.
func WithAsync(mapRT, unmapRT *async.Runtime, policy wait.Policy) Option {
	return func(o *options) {
		o.async = true
		o.mapRuntime = mapRT
		o.unmapRuntime = unmapRT
		o.policy = policy
	}
}

// WithIdleStrategies sets the idle strategies of runtimes the Mapper starts itself.
func WithIdleStrategies(mapping, unmapping idle.Factory) Option {
	return func(o *options) {
		o.mapIdle = mapping
		o.unmapIdle = unmapping
	}
}

// WithTimeoutHandler decides what Map does when the waiting policy expires.
// The default fails with ErrTimeout.
//
// With wait.Ignore, Map reports ErrBusy instead and the request stays queued:
//
//	regionmap.WithTimeoutHandler(wait.Ignore[regionmap.SlotState]())
func WithTimeoutHandler(h wait.TimeoutHandler[SlotState]) Option {
	return func(o *options) {
		o.onTimeout = h
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &regionmap.BasicMetricsCollector{}
//	m, _ := regionmap.OpenExpandable(path, filemap.ReadWrite, 1<<20, regionmap.WithMetricsCollector(metrics))
//	// ... use m ...
//	stats := metrics.GetStats()
//	fmt.Printf("Maps: %d, Avg latency: %dns\n", stats.MapCount, stats.MapAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := regionmap.NewJSONLogger(slog.LevelInfo)
//	m, _ := regionmap.OpenReadOnly(path, 1<<20, regionmap.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMemoryLimit bounds the bytes mapped at once by this Mapper. Maps that
// would exceed it fail with ErrMemoryLimitExceeded. Ignored when a resource
// controller is given.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithIOLimit throttles pre-touching of new file pages and archive uploads
// to bytes per second. Ignored when a resource controller is given.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithResourceController shares one memory budget, IO throttle and set of
// background slots between Mappers.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithArchive uploads every sealed file of a rolled writer to store.
// Only OpenRolled honors it; New rejects it.
func WithArchive(store blobstore.Store, workers int) Option {
	return func(o *options) {
		o.archive = store
		o.archiveWorkers = int64(workers)
	}
}

// WithAdvice applies an access-pattern hint to every mapped region.
func WithAdvice(a Advice) Option {
	return func(o *options) {
		o.advice = a
	}
}

// WithPretouch enables or disables touching newly grown file pages.
// Used by the Open constructors only.
func WithPretouch(enabled bool) Option {
	return func(o *options) {
		o.pretouch = enabled
	}
}

// WithFilesToCreateAhead sets how many rolled files are created ahead of
// the writer. Used by OpenRolled only.
func WithFilesToCreateAhead(n int) Option {
	return func(o *options) {
		o.createAhead = n
	}
}

// WithMaxFileSize caps the length an expandable file may grow to. Maps
// past it fail with ErrFileSizeExceeded. Used by OpenExpandable only.
func WithMaxFileSize(n int64) Option {
	return func(o *options) {
		o.maxFileSize = n
	}
}

func withArchiver(a *archiver) Option {
	return func(o *options) {
		o.arch = a
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		cacheSize:        DefaultCacheSize,
		mapAhead:         DefaultMapAhead,
		mapIdle:          idle.MappingFactory,
		unmapIdle:        idle.UnmappingFactory,
		policy:           wait.Default(),
		onTimeout:        wait.DefaultHandler[SlotState](),
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		pretouch:         true,
		createAhead:      1,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// controller returns the configured resource controller or builds a private one.
func (o *options) controller() *resource.Controller {
	if o.rc == nil {
		workers := o.archiveWorkers
		if workers <= 0 {
			workers = 1
		}
		o.rc = resource.NewController(resource.Config{
			MappedBytesLimit:     o.memoryLimit,
			MaxBackgroundWorkers: workers,
			IOLimitBytesPerSec:   o.ioLimit,
		})
	}
	return o.rc
}
