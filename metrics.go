package regionmap

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// RecordMap and RecordUnmap run on the goroutine that performs the OS call,
// which is a runtime goroutine for asynchronous mappers. Implementations must
// be safe for concurrent use.
type MetricsCollector interface {
	// RecordMap is called after each region map.
	// duration is the time spent in the file mapper, err is nil if successful.
	RecordMap(duration time.Duration, err error)

	// RecordUnmap is called after each region unmap.
	RecordUnmap(duration time.Duration)

	// RecordMapAhead is called with the number of regions requested ahead
	// after a caller moved to a new region. It is not called for zero.
	RecordMapAhead(n int)

	// RecordWait is called after a caller waited for an asynchronous map.
	// ok is false if the waiting policy expired first.
	RecordWait(duration time.Duration, ok bool)

	// RecordArchive is called after each sealed-file upload.
	RecordArchive(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordMap(time.Duration, error)            {}
func (NoopMetricsCollector) RecordUnmap(time.Duration)                 {}
func (NoopMetricsCollector) RecordMapAhead(int)                        {}
func (NoopMetricsCollector) RecordWait(time.Duration, bool)            {}
func (NoopMetricsCollector) RecordArchive(int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	MapCount        atomic.Int64
	MapErrors       atomic.Int64
	MapTotalNanos   atomic.Int64
	UnmapCount      atomic.Int64
	UnmapTotalNanos atomic.Int64
	MapAheadCount   atomic.Int64
	MapAheadRegions atomic.Int64
	WaitCount       atomic.Int64
	WaitTimeouts    atomic.Int64
	WaitTotalNanos  atomic.Int64
	ArchiveCount    atomic.Int64
	ArchiveErrors   atomic.Int64
	ArchiveBytes    atomic.Int64
}

// RecordMap implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMap(duration time.Duration, err error) {
	b.MapCount.Add(1)
	b.MapTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.MapErrors.Add(1)
	}
}

// RecordUnmap implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUnmap(duration time.Duration) {
	b.UnmapCount.Add(1)
	b.UnmapTotalNanos.Add(duration.Nanoseconds())
}

// RecordMapAhead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMapAhead(n int) {
	b.MapAheadCount.Add(1)
	b.MapAheadRegions.Add(int64(n))
}

// RecordWait implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWait(duration time.Duration, ok bool) {
	b.WaitCount.Add(1)
	b.WaitTotalNanos.Add(duration.Nanoseconds())
	if !ok {
		b.WaitTimeouts.Add(1)
	}
}

// RecordArchive implements MetricsCollector.
func (b *BasicMetricsCollector) RecordArchive(bytes int64, duration time.Duration, err error) {
	if err != nil {
		b.ArchiveErrors.Add(1)
		return
	}
	b.ArchiveCount.Add(1)
	b.ArchiveBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		MapCount:        b.MapCount.Load(),
		MapErrors:       b.MapErrors.Load(),
		MapAvgNanos:     avg(b.MapTotalNanos.Load(), b.MapCount.Load()),
		UnmapCount:      b.UnmapCount.Load(),
		UnmapAvgNanos:   avg(b.UnmapTotalNanos.Load(), b.UnmapCount.Load()),
		MapAheadCount:   b.MapAheadCount.Load(),
		MapAheadRegions: b.MapAheadRegions.Load(),
		WaitCount:       b.WaitCount.Load(),
		WaitTimeouts:    b.WaitTimeouts.Load(),
		WaitAvgNanos:    avg(b.WaitTotalNanos.Load(), b.WaitCount.Load()),
		ArchiveCount:    b.ArchiveCount.Load(),
		ArchiveErrors:   b.ArchiveErrors.Load(),
		ArchiveBytes:    b.ArchiveBytes.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	MapCount        int64
	MapErrors       int64
	MapAvgNanos     int64
	UnmapCount      int64
	UnmapAvgNanos   int64
	MapAheadCount   int64
	MapAheadRegions int64
	WaitCount       int64
	WaitTimeouts    int64
	WaitAvgNanos    int64
	ArchiveCount    int64
	ArchiveErrors   int64
	ArchiveBytes    int64
}
