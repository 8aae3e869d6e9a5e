package regionmap_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/regionmap"
)

const recordSize = 8

// nonZeroRecord matches an 8-byte record that was written.
func nonZeroRecord(buf []byte) bool {
	return len(buf) >= recordSize && binary.LittleEndian.Uint64(buf) != 0
}

// writeRecords fills the first n records of mm with 1..n.
func writeRecords(mm *memMapper, n int) {
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(mm.data[i*recordSize:], uint64(i+1))
	}
}

func TestOffsetMapping_Navigation(t *testing.T) {
	s := regionSize()
	m, err := regionmap.New(newMemMapper(8*s), s, regionmap.WithCacheSize(4))
	require.NoError(t, err)
	defer m.Close()

	om := m.NewOffsetMapping()
	require.True(t, om.MoveTo(s+5))

	require.True(t, om.MoveToFirstOfRegion())
	assert.Equal(t, s, om.Position())

	require.True(t, om.MoveToLastOfRegion())
	assert.Equal(t, 2*s-1, om.Position())
	assert.Equal(t, int64(1), om.BytesAvailable())

	require.True(t, om.MoveToNextRegion())
	assert.Equal(t, 2*s, om.Position())

	require.True(t, om.MoveToPreviousRegion())
	assert.Equal(t, s, om.Position())

	require.True(t, om.MoveBy(-1))
	assert.Equal(t, s-1, om.Position())
	require.True(t, om.MoveBy(s+1))
	assert.Equal(t, 2*s, om.Position())

	require.True(t, om.MoveTo(3))
	assert.False(t, om.MoveToPreviousRegion())
	assert.ErrorIs(t, om.Err(), regionmap.ErrInvalidArgument)

	assert.False(t, om.MoveBy(-10))
	assert.ErrorIs(t, om.Err(), regionmap.ErrInvalidArgument)
}

func TestOffsetMapping_FindLastMatchesBinarySearch(t *testing.T) {
	s := regionSize()
	perRegion := int(s / recordSize)

	for _, n := range []int{1, 2, perRegion - 1, perRegion, perRegion + 1, 3*perRegion + 7} {
		mm := newMemMapper(16 * s)
		writeRecords(mm, n)
		m, err := regionmap.New(mm, s, regionmap.WithCacheSize(4))
		require.NoError(t, err)

		want := int64((n - 1) * recordSize)

		om := m.NewOffsetMapping()
		got := om.FindLast(0, recordSize, nonZeroRecord)
		assert.Equal(t, want, got, "linear, %d records", n)
		assert.Equal(t, want, om.Position(), "cursor left at the last match")

		om = m.NewOffsetMapping()
		got = om.BinarySearchLast(0, recordSize, nonZeroRecord)
		assert.Equal(t, want, got, "binary, %d records", n)
		assert.Equal(t, want, om.Position())
		assert.True(t, om.Valid())

		require.NoError(t, m.Close())
	}
}

func TestOffsetMapping_SearchFromMiddle(t *testing.T) {
	s := regionSize()
	mm := newMemMapper(16 * s)
	writeRecords(mm, 1000)
	m, err := regionmap.New(mm, s)
	require.NoError(t, err)
	defer m.Close()

	om := m.NewOffsetMapping()
	start := int64(400 * recordSize)
	assert.Equal(t, int64(999*recordSize), om.FindLast(start, recordSize, nonZeroRecord))
	assert.Equal(t, int64(999*recordSize), om.BinarySearchLast(start, recordSize, nonZeroRecord))
}

func TestOffsetMapping_NoMatch(t *testing.T) {
	s := regionSize()
	m, err := regionmap.New(newMemMapper(4*s), s)
	require.NoError(t, err)
	defer m.Close()

	om := m.NewOffsetMapping()
	assert.Equal(t, int64(-1), om.FindLast(16, recordSize, nonZeroRecord))
	assert.Equal(t, int64(16), om.Position(), "cursor left at the last position tried")

	assert.Equal(t, int64(-1), om.BinarySearchLast(24, recordSize, nonZeroRecord))
	assert.Equal(t, int64(24), om.Position())

	assert.Equal(t, int64(-1), om.FindLast(0, 0, nonZeroRecord))
	assert.ErrorIs(t, om.Err(), regionmap.ErrInvalidArgument)
}

func TestOffsetMapping_SearchStopsAtEndOfFile(t *testing.T) {
	s := regionSize()
	path := filepath.Join(t.TempDir(), "full.bin")

	// Every record matches; the end of the file ends the search.
	data := make([]byte, 2*s)
	for i := 0; i < len(data); i += recordSize {
		binary.LittleEndian.PutUint64(data[i:], 1)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	m, err := regionmap.OpenReadOnly(path, s)
	require.NoError(t, err)
	defer m.Close()

	want := 2*s - recordSize
	om := m.NewOffsetMapping()
	assert.Equal(t, want, om.FindLast(0, recordSize, nonZeroRecord))
	assert.Equal(t, want, om.BinarySearchLast(0, recordSize, nonZeroRecord))
	assert.Equal(t, want, om.Position())
}
