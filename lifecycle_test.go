package regionmap_test

import (
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/regionmap"
	"github.com/hupe1980/regionmap/async"
	"github.com/hupe1980/regionmap/blobstore"
	"github.com/hupe1980/regionmap/filemap"
	"github.com/hupe1980/regionmap/idle"
	"github.com/hupe1980/regionmap/wait"
)

// TestNoGoroutineLeaks verifies that runtimes and background uploads owned
// by a Mapper stop when Close returns.
func TestNoGoroutineLeaks(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T) *regionmap.Mapper
		maxLeaks int // runtime background goroutines
	}{
		{
			name: "async owned runtime from config",
			setup: func(t *testing.T) *regionmap.Mapper {
				m, err := regionmap.FromConfig(regionmap.Config{
					Kind:       regionmap.KindExpandable,
					Path:       filepath.Join(t.TempDir(), "async.bin"),
					RegionSize: regionSize(),
					CacheSize:  4,
					Async:      true,
					MaxWait:    "5s",
					MapIdle:    "yield",
				})
				require.NoError(t, err)
				return m
			},
			maxLeaks: 2,
		},
		{
			name: "async with unmap runtime",
			setup: func(t *testing.T) *regionmap.Mapper {
				mapRT := async.New(idle.Yield{}, async.WithName("test-map"))
				unmapRT := async.New(idle.UnmappingFactory(), async.WithName("test-unmap"))
				t.Cleanup(func() {
					mapRT.Stop(false)
					unmapRT.Stop(false)
				})
				m, err := regionmap.OpenExpandable(filepath.Join(t.TempDir(), "shared.bin"), filemap.ReadWrite, regionSize(),
					regionmap.WithAsync(mapRT, unmapRT, wait.Spin(5*time.Second)),
				)
				require.NoError(t, err)
				return m
			},
			// The shared runtimes outlive the Mapper.
			maxLeaks: 4,
		},
		{
			name: "rolled writer with archive",
			setup: func(t *testing.T) *regionmap.Mapper {
				s := regionSize()
				m, err := regionmap.OpenRolled(filepath.Join(t.TempDir(), "stream"), s, filemap.ReadWrite, s,
					regionmap.WithCacheSize(2),
					regionmap.WithArchive(blobstore.NewMemoryStore(), 2),
				)
				require.NoError(t, err)
				return m
			},
			maxLeaks: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runtime.GC()
			time.Sleep(10 * time.Millisecond)
			before := runtime.NumGoroutine()

			m := tt.setup(t)
			s := m.RegionSize()
			for i := int64(0); i < 16; i++ {
				buf, err := m.Map(i * s)
				require.NoError(t, err)
				buf[0] = byte(i)
			}
			require.NoError(t, m.Close())

			time.Sleep(50 * time.Millisecond)
			runtime.GC()
			after := runtime.NumGoroutine()

			leaked := after - before
			assert.LessOrEqual(t, leaked, tt.maxLeaks,
				"goroutines before=%d after=%d", before, after)
		})
	}
}

func TestClose_Idempotent(t *testing.T) {
	m, err := regionmap.OpenExpandable(filepath.Join(t.TempDir(), "data.bin"), filemap.ReadWrite, regionSize(),
		regionmap.WithAsync(nil, nil, wait.Default()),
	)
	require.NoError(t, err)

	_, err = m.Map(0)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.True(t, m.Closed())

	_, err = m.Map(0)
	assert.ErrorIs(t, err, regionmap.ErrClosed)
}
