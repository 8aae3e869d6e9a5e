package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createFile(t *testing.T, size int) *os.File {
	t.Helper()
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "mmap.bin"), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	require.NoError(t, f.Truncate(int64(size)))
	return f
}

func TestMap_ReadWriteRoundTrip(t *testing.T) {
	g := Granularity()
	f := createFile(t, 2*g)

	m, err := Map(f.Fd(), int64(g), g, ReadWrite)
	require.NoError(t, err)
	assert.Equal(t, int64(g), m.Offset())
	assert.Equal(t, g, m.Size())
	assert.Equal(t, ReadWrite, m.Mode())

	copy(m.Bytes(), "Hello, Mmap!")
	require.NoError(t, m.Sync())
	require.NoError(t, m.Close())

	buf := make([]byte, 12)
	_, err = f.ReadAt(buf, int64(g))
	require.NoError(t, err)
	assert.Equal(t, "Hello, Mmap!", string(buf))
}

func TestMap_InvalidArguments(t *testing.T) {
	f := createFile(t, Granularity())

	_, err := Map(f.Fd(), 0, 0, ReadOnly)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = Map(f.Fd(), -1, 16, ReadOnly)
	assert.ErrorIs(t, err, ErrInvalidOffset)

	if Granularity() > 1 {
		_, err = Map(f.Fd(), 1, 16, ReadOnly)
		assert.ErrorIs(t, err, ErrInvalidOffset)
	}
}

func TestMapping_ReadAt(t *testing.T) {
	f := createFile(t, Granularity())
	_, err := f.WriteAt([]byte("Hello, Mmap!"), 0)
	require.NoError(t, err)

	m, err := Map(f.Fd(), 0, Granularity(), ReadOnly)
	require.NoError(t, err)
	defer m.Close()

	buf := make([]byte, 5)
	n, err := m.ReadAt(buf, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "Mmap!", string(buf))

	// ReadAt out of bounds
	n, err = m.ReadAt(buf, int64(Granularity())+1)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)

	// ReadAt partial
	tail := make([]byte, 10)
	n, err = m.ReadAt(tail, int64(Granularity())-4)
	assert.Equal(t, 4, n)
	assert.Equal(t, io.EOF, err)

	_, err = m.ReadAt(buf, -1)
	assert.Equal(t, ErrInvalidOffset, err)
}

func TestMapping_Advise(t *testing.T) {
	f := createFile(t, Granularity())

	m, err := Map(f.Fd(), 0, Granularity(), ReadOnly)
	require.NoError(t, err)
	require.NoError(t, m.Advise(AccessRandom))
	require.NoError(t, m.Advise(AccessSequential))
	require.NoError(t, Advise(m.Bytes()[:PageSize()], AccessWillNeed))
	require.NoError(t, m.Close())
}

func TestMapping_AfterClose(t *testing.T) {
	f := createFile(t, Granularity())
	m, err := Map(f.Fd(), 0, Granularity(), ReadWrite)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "close is idempotent")
	assert.True(t, m.Closed())

	assert.Nil(t, m.Bytes())
	assert.ErrorIs(t, m.Advise(AccessRandom), ErrClosed)
	assert.ErrorIs(t, m.Sync(), ErrClosed)
	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestUnmap_DetachedSlice(t *testing.T) {
	f := createFile(t, Granularity())
	m, err := Map(f.Fd(), 0, Granularity(), ReadWrite)
	require.NoError(t, err)

	data := m.Bytes()
	data[0] = 42
	require.NoError(t, Unmap(data))
	require.NoError(t, Unmap(nil))
}

func TestGranularity(t *testing.T) {
	g := Granularity()
	require.Positive(t, g)
	assert.Zero(t, g&(g-1), "power of two")
	assert.Zero(t, g%PageSize(), "multiple of the page size")

	f := createFile(t, 2*g)
	m, err := Map(f.Fd(), int64(g), g, ReadOnly)
	require.NoError(t, err)
	assert.Equal(t, int64(g), m.Offset())
	require.NoError(t, m.Close())
}
