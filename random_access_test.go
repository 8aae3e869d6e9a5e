package regionmap_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/regionmap"
	"github.com/hupe1980/regionmap/testutil"
	"github.com/hupe1980/regionmap/wait"
)

func TestMapping_RandomAccessMatchesFile(t *testing.T) {
	s := regionSize()
	size := 32 * s
	path := filepath.Join(t.TempDir(), "pattern.bin")
	require.NoError(t, testutil.WritePatternFile(path, size))

	tests := []struct {
		name string
		opts []regionmap.Option
	}{
		{"sync", []regionmap.Option{regionmap.WithCacheSize(4), regionmap.WithMapAhead(2)}},
		{"async", []regionmap.Option{
			regionmap.WithCacheSize(4),
			regionmap.WithMapAhead(-1),
			regionmap.WithAsync(nil, nil, wait.Spin(5*time.Second)),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := regionmap.OpenReadOnly(path, s, tt.opts...)
			require.NoError(t, err)
			defer m.Close()

			rng := testutil.NewRNG(4711)
			a, b := m.NewMapping(), m.NewMapping()
			for i, p := range rng.Walk(2000, size, s/2, 0.2) {
				mp := a
				if i%3 == 0 {
					mp = b
				}
				require.True(t, mp.MoveTo(p), "position %d: %v", p, mp.Err())
				buf := mp.Buffer()
				require.Len(t, buf, int(s-p%s))
				require.Equal(t, -1, testutil.CheckPattern(buf, p), "position %d", p)
				assert.Equal(t, mp.BytesAvailable(), int64(len(buf)))

				// A cursor whose slot was recycled reports a nil Buffer.
				other := b
				if mp == b {
					other = a
				}
				if ob := other.Buffer(); ob != nil {
					require.Equal(t, -1, testutil.CheckPattern(ob, other.Position()))
				}
			}
		})
	}
}
