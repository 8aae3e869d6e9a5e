// Package resource implements the Controller that governs what region mappers
// may consume.
//
// The Controller provides centralized management of three resource types:
//
//   - Mapped memory: bytes currently mapped across all mappers sharing the
//     controller (non-blocking, fail-fast)
//   - Background work: concurrent archive uploads of sealed files
//   - IO: rate limit for pre-touching freshly grown pages and for uploads, so
//     background IO does not starve foreground access
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                         Controller                          │
//	├─────────────────┬─────────────────┬─────────────────────────┤
//	│  Mapped Memory  │  Background     │  IO Rate Limiter        │
//	│  (fail-fast)    │  Workers (sem)  │  (token bucket)         │
//	├─────────────────┼─────────────────┼─────────────────────────┤
//	│  AcquireMapped  │  AcquireBack-   │  AcquireIO              │
//	│  ReleaseMapped  │  ground         │  RateLimitedReader      │
//	│  MappedBytes    │  TryAcquire     │                         │
//	└─────────────────┴─────────────────┴─────────────────────────┘
//
// # Mapped Memory
//
// A mapping that would exceed the limit fails with ErrMemoryLimitExceeded.
// The region mapper turns that into a failed slot, never into a blocked
// mapping thread:
//
//	rc := resource.NewController(resource.Config{
//	    MappedBytesLimit: 1 << 30, // 1GB of address space
//	})
//
//	if err := rc.AcquireMapped(regionSize); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMapped(regionSize)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
// This allows optional resource limiting without nil checks everywhere.
package resource
