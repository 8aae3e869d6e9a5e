package regionmap

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/regionmap/async"
	"github.com/hupe1980/regionmap/filemap"
	"github.com/hupe1980/regionmap/internal/mmap"
	"github.com/hupe1980/regionmap/internal/region"
	"github.com/hupe1980/regionmap/internal/ringcache"
	"github.com/hupe1980/regionmap/internal/slot"
	"github.com/hupe1980/regionmap/resource"
	"github.com/hupe1980/regionmap/wait"
)

// SlotState is the lifecycle state of a region slot. Timeout handlers
// receive the state the slot was in when the waiting policy expired.
type SlotState = slot.State

const (
	StateUnmapped  = slot.Unmapped
	StateRequested = slot.Requested
	StateMapped    = slot.Mapped
	StateClosing   = slot.Closing
	StateClosed    = slot.Closed
	StateFailed    = slot.Failed
)

// Mapper maps fixed-size regions of a file through a ring of slots.
//
// A Mapper and the Mappings created from it belong to one goroutine.
// Asynchronous mappers additionally use their runtimes' goroutines, which
// is safe.
type Mapper struct {
	metrics   region.Metrics
	inner     filemap.FileMapper
	fm        *instrumentedMapper
	cache     *ringcache.Cache
	logger    *Logger
	collector MetricsCollector
	rc        *resource.Controller

	async     bool
	policy    wait.Policy
	onTimeout wait.TimeoutHandler[SlotState]
	mapRT     *async.Runtime
	ownsMapRT bool
	unmapRT   *async.Runtime
	unmapper  *slot.Unmapper
	slots     []*slot.Async

	arch *archiver

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New returns a Mapper over fm with regions of regionSize bytes.
//
// regionSize must be a power of two and a multiple of the OS mapping
// granularity. The Mapper owns fm and closes it on Close.
func New(fm filemap.FileMapper, regionSize int64, opts ...Option) (*Mapper, error) {
	if fm == nil {
		return nil, fmt.Errorf("%w: nil file mapper", ErrInvalidArgument)
	}
	o := applyOptions(opts)
	if o.archive != nil && o.arch == nil {
		return nil, fmt.Errorf("%w: archiving needs a rolled writer opened with OpenRolled", ErrInvalidArgument)
	}

	metrics, err := region.NewMetrics(regionSize)
	if err != nil {
		return nil, &ErrInvalidRegionSize{Size: regionSize, cause: translateError(err)}
	}
	if err := metrics.ValidateGranularity(mmap.Granularity()); err != nil {
		return nil, &ErrInvalidRegionSize{Size: regionSize, cause: translateError(err)}
	}
	if r, ok := fm.(interface{ MaxFileSize() int64 }); ok && r.MaxFileSize()%regionSize != 0 {
		return nil, fmt.Errorf("%w: file size %d is not a multiple of region size %d", ErrInvalidArgument, r.MaxFileSize(), regionSize)
	}
	if o.cacheSize <= 0 || !region.IsPowerOfTwo(int64(o.cacheSize)) {
		return nil, &ErrInvalidCacheSize{Size: o.cacheSize, cause: ErrInvalidArgument}
	}
	if o.async {
		if err := o.policy.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
	}

	logger := o.logger.WithRegionSize(regionSize)
	m := &Mapper{
		metrics:   metrics,
		inner:     fm,
		logger:    logger,
		collector: o.metricsCollector,
		rc:        o.controller(),
		async:     o.async,
		policy:    o.policy,
		onTimeout: o.onTimeout,
		arch:      o.arch,
	}
	m.fm = &instrumentedMapper{
		inner:     fm,
		rc:        m.rc,
		collector: m.collector,
		logger:    logger,
		advice:    o.advice,
	}

	slots := make([]slot.Slot, o.cacheSize)
	slotOpts := []slot.Option{slot.WithLogger(logger.Logger)}
	if o.async && o.unmapRuntime != nil {
		m.unmapRT = o.unmapRuntime
		m.unmapper = slot.NewUnmapper()
		slotOpts = append(slotOpts, slot.WithUnmapper(m.unmapper))
	}
	for i := range slots {
		if o.async {
			s := slot.NewAsync(metrics, m.fm, slotOpts...)
			m.slots = append(m.slots, s)
			slots[i] = s
		} else {
			slots[i] = slot.NewSync(metrics, m.fm, slotOpts...)
		}
	}

	m.cache, err = ringcache.New(metrics, slots, o.mapAhead)
	if err != nil {
		return nil, &ErrInvalidCacheSize{Size: o.cacheSize, cause: translateError(err)}
	}

	if o.async {
		m.mapRT = o.mapRuntime
		if m.mapRT == nil {
			m.mapRT = async.New(o.mapIdle(),
				async.WithName("regionmap-map"),
				async.WithLogger(logger.Logger),
			)
			m.ownsMapRT = true
		}
		if m.unmapper != nil {
			m.unmapRT.Register(m.unmapper)
		}
		for _, s := range m.slots {
			m.mapRT.Register(s)
		}
	}

	logger.Debug("mapper created",
		"cache_size", o.cacheSize,
		"map_ahead", m.cache.MapAhead(),
		"async", o.async,
	)
	return m, nil
}

// RegionSize returns the region size in bytes.
func (m *Mapper) RegionSize() int64 { return m.metrics.Size() }

// CacheSize returns the number of region slots.
func (m *Mapper) CacheSize() int { return m.cache.Size() }

// MapAhead returns the effective number of regions mapped ahead.
func (m *Mapper) MapAhead() int { return m.cache.MapAhead() }

// Async reports whether regions are mapped on a runtime goroutine.
func (m *Mapper) Async() bool { return m.async }

// Closed reports whether Close was called.
func (m *Mapper) Closed() bool { return m.closed.Load() }

// Map returns the region containing position. Index 0 of the returned
// slice is the first byte of the region, not position.
//
// The slice is valid until a later Map, MoveTo or Close reuses its slot.
// Callers that keep a region across calls should use a Mapping, whose
// Buffer reports staleness.
func (m *Mapper) Map(position int64) ([]byte, error) {
	v, err := m.mapView(position)
	if err != nil {
		return nil, err
	}
	return v.Data, nil
}

func (m *Mapper) mapView(position int64) (slot.View, error) {
	if m.closed.Load() {
		return slot.View{}, ErrClosed
	}
	if position < 0 {
		return slot.View{}, fmt.Errorf("%w: negative position %d", ErrInvalidArgument, position)
	}

	s := m.cache.Slot(position)
	if s.RequestLocal(position) {
		v := s.View()
		m.ahead(v.Position)
		return v, nil
	}
	if !s.Request(position) {
		return slot.View{}, m.slotError(s)
	}

	if m.async && s.State() != slot.Mapped {
		if err := m.await(s, position); err != nil {
			return slot.View{}, err
		}
	}

	if s.State() != slot.Mapped {
		return slot.View{}, m.slotError(s)
	}
	v := s.View()
	m.ahead(v.Position)
	return v, nil
}

// ahead runs map-ahead for a region the caller arrived at, whether it was
// mapped on demand or already mapped ahead.
func (m *Mapper) ahead(regionStart int64) {
	if regionStart == m.cache.Last() {
		return
	}
	if n := m.cache.Ahead(regionStart); n > 0 {
		m.collector.RecordMapAhead(n)
	}
}

// await blocks per the waiting policy until the slot settled. A nil error
// means the slot reached a terminal state, which may still be Failed.
func (m *Mapper) await(s slot.Slot, position int64) error {
	settled := func() bool {
		switch s.State() {
		case slot.Mapped, slot.Failed, slot.Closed:
			return true
		}
		return false
	}
	if !m.policy.Waits() {
		if settled() {
			return nil
		}
		return ErrBusy
	}

	start := time.Now()
	ok := m.policy.Await(settled)
	m.collector.RecordWait(time.Since(start), ok)
	if ok {
		return nil
	}

	state := s.State()
	m.logger.LogTimeout(position, state, m.policy.MaxWait)
	state, err := m.onTimeout(state, m.policy)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return fmt.Errorf("position %d in state %s after %s: %w", position, state, m.policy.MaxWait, err)
		}
		return err
	}
	if settled() {
		return nil
	}
	return ErrBusy
}

func (m *Mapper) slotError(s slot.Slot) error {
	if m.closed.Load() || s.State() == slot.Closed {
		return ErrClosed
	}
	if err := s.Err(); err != nil {
		return translateError(err)
	}
	return ErrMappingFailed
}

// Sync flushes written pages of the backing file(s) if the file mapper
// supports it.
func (m *Mapper) Sync() error {
	if m.closed.Load() {
		return ErrClosed
	}
	if s, ok := m.inner.(filemap.Syncer); ok {
		return s.Sync()
	}
	return nil
}

// Stats is a point-in-time view of a Mapper.
type Stats struct {
	RegionSize      int64
	CacheSize       int
	MapAhead        int
	Async           bool
	MappedSlots     int
	FailedSlots     int
	MappedBytes     int64
	PeakMappedBytes int64
	DeniedMaps      int64
	Archived        int64
	ArchiveFailures int64
}

// Stats returns slot and resource statistics. Like Map, it must be called
// from the Mapper's goroutine.
func (m *Mapper) Stats() Stats {
	st := Stats{
		RegionSize:      m.metrics.Size(),
		CacheSize:       m.cache.Size(),
		MapAhead:        m.cache.MapAhead(),
		Async:           m.async,
		MappedBytes:     m.rc.MappedBytes(),
		PeakMappedBytes: m.rc.PeakMappedBytes(),
		DeniedMaps:      m.rc.Denied(),
	}
	for _, s := range m.cache.Slots() {
		switch s.State() {
		case slot.Mapped:
			st.MappedSlots++
		case slot.Failed:
			st.FailedSlots++
		}
	}
	if m.arch != nil {
		st.Archived, st.ArchiveFailures = m.arch.archived.Load(), m.arch.failed.Load()
	}
	return st
}
