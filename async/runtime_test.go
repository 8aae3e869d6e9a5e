package async

import (
	"bytes"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/regionmap/idle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	calls atomic.Int64
	left  atomic.Int64
}

func (c *counter) Execute() int {
	c.calls.Add(1)
	if c.left.Load() > 0 {
		c.left.Add(-1)
		return 1
	}
	return 0
}

type panicker struct {
	calls atomic.Int64
}

func (p *panicker) Execute() int {
	if p.calls.Add(1) == 1 {
		panic("boom")
	}
	return 0
}

func TestRuntime_RegisterDeregister(t *testing.T) {
	rt := New(idle.Yield{})
	defer rt.Stop(true)

	a, b := &counter{}, &counter{}
	rt.Register(a)
	rt.Register(b)
	rt.Register(a)
	assert.Equal(t, 2, rt.Units())

	require.Eventually(t, func() bool {
		return a.calls.Load() > 0 && b.calls.Load() > 0
	}, time.Second, time.Millisecond)

	assert.True(t, rt.Deregister(a))
	assert.False(t, rt.Deregister(a))
	assert.Equal(t, 1, rt.Units())

	// Wait for a full pass on the new snapshot before sampling.
	passes := rt.Passes()
	require.Eventually(t, func() bool { return rt.Passes() > passes+1 }, time.Second, time.Millisecond)
	calls := a.calls.Load()
	passes = rt.Passes()
	require.Eventually(t, func() bool { return rt.Passes() > passes+10 }, time.Second, time.Millisecond)
	assert.Equal(t, calls, a.calls.Load())
}

func TestRuntime_GracefulStopDrains(t *testing.T) {
	rt := New(idle.Sleep{Duration: time.Millisecond})

	c := &counter{}
	c.left.Store(1000)
	rt.Register(c)
	rt.Stop(false)

	assert.False(t, rt.Running())
	assert.Zero(t, c.left.Load(), "graceful stop waits until the work drained")
}

func TestRuntime_ImmediateStop(t *testing.T) {
	rt := New(idle.BusySpin{})
	c := &counter{}
	c.left.Store(1 << 40)
	rt.Register(c)

	rt.Stop(true)
	rt.Stop(false) // idempotent
	assert.False(t, rt.Running())
	assert.Positive(t, c.left.Load())

	select {
	case <-rt.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestRuntime_AutoStop(t *testing.T) {
	rt := New(idle.Yield{}, WithAutoStop(), WithName("auto"))
	c := &counter{}
	rt.Register(c)
	require.True(t, rt.Running())

	rt.Deregister(c)
	select {
	case <-rt.Done():
	case <-time.After(time.Second):
		t.Fatal("runtime did not stop after last unit was deregistered")
	}
}

func TestRuntime_PanicIsLoggedAndLoopSurvives(t *testing.T) {
	var buf syncBuffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	rt := New(idle.Yield{}, WithLogger(logger), WithName("panics"))
	defer rt.Stop(true)

	p := &panicker{}
	c := &counter{}
	rt.Register(p)
	rt.Register(c)

	require.Eventually(t, func() bool { return p.calls.Load() > 3 }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(1), rt.Panics())
	assert.True(t, rt.Running())
	assert.Contains(t, buf.String(), "recurring unit panicked")
	assert.Contains(t, buf.String(), "runtime=panics")
}

func TestRecurringFunc(t *testing.T) {
	rt := New(idle.Yield{})
	defer rt.Stop(true)

	var n atomic.Int64
	f := RecurringFunc(func() int { n.Add(1); return 0 })
	rt.Register(&f)
	require.Eventually(t, func() bool { return n.Load() > 0 }, time.Second, time.Millisecond)
	assert.True(t, rt.Deregister(&f))
}

// syncBuffer is a bytes.Buffer safe for the runtime goroutine to write while
// the test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
