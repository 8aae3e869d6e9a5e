package resource

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Mapped(t *testing.T) {
	c := NewController(Config{MappedBytesLimit: 100})
	assert.Equal(t, int64(100), c.MappedBytesLimit())

	require.NoError(t, c.AcquireMapped(50))
	assert.Equal(t, int64(50), c.MappedBytes())

	require.NoError(t, c.AcquireMapped(40))
	assert.Equal(t, int64(90), c.MappedBytes())

	// Acquire 20 (should fail - limit exceeded)
	err := c.AcquireMapped(20)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.Equal(t, int64(90), c.MappedBytes())
	assert.Equal(t, int64(1), c.Denied())

	c.ReleaseMapped(50)
	assert.Equal(t, int64(40), c.MappedBytes())

	require.NoError(t, c.AcquireMapped(20))
	assert.Equal(t, int64(60), c.MappedBytes())
	assert.Equal(t, int64(90), c.PeakMappedBytes())
}

func TestController_UnlimitedMapped(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMapped(1000))
	assert.Equal(t, int64(1000), c.MappedBytes())

	c.ReleaseMapped(500)
	assert.Equal(t, int64(500), c.MappedBytes())
	assert.Zero(t, c.MappedBytesLimit())
}

func TestController_Background(t *testing.T) {
	c := NewController(Config{MaxBackgroundWorkers: 2})

	require.NoError(t, c.AcquireBackground(t.Context()))
	require.NoError(t, c.AcquireBackground(t.Context()))

	assert.False(t, c.TryAcquireBackground())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireBackground(ctx))

	c.ReleaseBackground()
	assert.True(t, c.TryAcquireBackground())
}

func TestController_NilChecks(t *testing.T) {
	var c *Controller
	assert.NoError(t, c.AcquireMapped(10))
	c.ReleaseMapped(10)
	assert.Zero(t, c.MappedBytes())
	assert.Zero(t, c.PeakMappedBytes())
	assert.Zero(t, c.Denied())
	assert.NoError(t, c.AcquireBackground(context.Background()))
	assert.True(t, c.TryAcquireBackground())
	c.ReleaseBackground()
	assert.NoError(t, c.AcquireIO(context.Background(), 1<<20))
}

func TestController_IOLargerThanBurst(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	// Initial bucket is full; a request of twice the burst needs one refill.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, c.AcquireIO(ctx, 2<<20))
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
}

func TestRateLimitedReader(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	src := bytes.Repeat([]byte{7}, 64<<10)

	r := NewRateLimitedReader(context.Background(), bytes.NewReader(src), c)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, src, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r = NewRateLimitedReader(ctx, bytes.NewReader(src), c)
	_, err = io.ReadAll(r)
	assert.ErrorIs(t, err, context.Canceled)
}
