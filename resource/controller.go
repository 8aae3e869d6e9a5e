package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when the mapped-bytes limit would be exceeded.
var ErrMemoryLimitExceeded = errors.New("mapped memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MappedBytesLimit is the hard limit for concurrently mapped bytes.
	// If 0, no hard limit is enforced (only tracking).
	MappedBytesLimit int64

	// MaxBackgroundWorkers is the maximum number of concurrent background jobs.
	// If 0, defaults to 1.
	MaxBackgroundWorkers int64

	// IOLimitBytesPerSec is the maximum IO throughput for background tasks.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages shared resources (mapped memory, concurrency, IO).
type Controller struct {
	cfg Config

	// Mapped memory
	memSem    *semaphore.Weighted // nil if unlimited
	memUsed   atomic.Int64
	memPeak   atomic.Int64
	memDenied atomic.Int64

	// Concurrency
	bgSem *semaphore.Weighted

	// IO
	ioLimiter *rate.Limiter
	ioBurst   int
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundWorkers <= 0 {
		cfg.MaxBackgroundWorkers = 1
	}

	c := &Controller{
		cfg:   cfg,
		bgSem: semaphore.NewWeighted(cfg.MaxBackgroundWorkers),
	}

	if cfg.MappedBytesLimit > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MappedBytesLimit)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioBurst = int(cfg.IOLimitBytesPerSec)
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), c.ioBurst)
	}

	return c
}

// AcquireMapped reserves bytes of mapped address space.
// Non-blocking - returns ErrMemoryLimitExceeded if the limit would be exceeded.
func (c *Controller) AcquireMapped(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		c.memDenied.Add(1)
		return ErrMemoryLimitExceeded
	}

	used := c.memUsed.Add(bytes)
	for {
		peak := c.memPeak.Load()
		if used <= peak || c.memPeak.CompareAndSwap(peak, used) {
			break
		}
	}
	return nil
}

// ReleaseMapped releases bytes reserved with AcquireMapped.
func (c *Controller) ReleaseMapped(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MappedBytes returns the currently reserved mapped bytes.
func (c *Controller) MappedBytes() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// PeakMappedBytes returns the high-water mark of MappedBytes.
func (c *Controller) PeakMappedBytes() int64 {
	if c == nil {
		return 0
	}
	return c.memPeak.Load()
}

// Denied returns how many AcquireMapped calls were rejected.
func (c *Controller) Denied() int64 {
	if c == nil {
		return 0
	}
	return c.memDenied.Load()
}

// MappedBytesLimit returns the configured limit in bytes (0 if unlimited).
func (c *Controller) MappedBytesLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MappedBytesLimit
}

// AcquireBackground reserves a background worker slot.
// Blocks if all slots are busy.
func (c *Controller) AcquireBackground(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.bgSem.Acquire(ctx, 1)
}

// TryAcquireBackground attempts to reserve a background worker slot without blocking.
func (c *Controller) TryAcquireBackground() bool {
	if c == nil {
		return true
	}
	return c.bgSem.TryAcquire(1)
}

// ReleaseBackground releases a background worker slot.
func (c *Controller) ReleaseBackground() {
	if c == nil {
		return
	}
	c.bgSem.Release(1)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than the burst are split into burst-sized waits.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	for bytes > 0 {
		n := min(bytes, c.ioBurst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

