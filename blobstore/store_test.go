package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Open(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	data := []byte("sealed region file")
	require.NoError(t, s.Put(ctx, "log/log_0", bytes.NewReader(data), int64(len(data))))
	require.NoError(t, s.Put(ctx, "log/log_1", bytes.NewReader(nil), 0))
	require.NoError(t, s.Put(ctx, "other", bytes.NewReader([]byte("x")), 1))

	b, err := s.Open(ctx, "log/log_0")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), b.Size())

	buf := make([]byte, 6)
	n, err := b.ReadAt(ctx, buf, 7)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "region", string(buf))

	n, err = b.ReadAt(ctx, buf, int64(len(data))-2)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)

	all, err := io.ReadAll(NewReader(ctx, b))
	require.NoError(t, err)
	assert.Equal(t, data, all)
	require.NoError(t, b.Close())

	empty, err := s.Open(ctx, "log/log_1")
	require.NoError(t, err)
	assert.Zero(t, empty.Size())
	require.NoError(t, empty.Close())

	names, err := s.List(ctx, "log/")
	require.NoError(t, err)
	assert.Equal(t, []string{"log/log_0", "log/log_1"}, names)

	// Replace.
	require.NoError(t, s.Put(ctx, "other", bytes.NewReader([]byte("yz")), 2))
	b, err = s.Open(ctx, "other")
	require.NoError(t, err)
	all, err = io.ReadAll(NewReader(ctx, b))
	require.NoError(t, err)
	assert.Equal(t, "yz", string(all))
	require.NoError(t, b.Close())

	require.NoError(t, s.Delete(ctx, "other"))
	require.NoError(t, s.Delete(ctx, "other"))
	_, err = s.Open(ctx, "other")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore(t *testing.T) {
	root := t.TempDir()
	testStore(t, NewLocalStore(root))

	_, err := os.Stat(filepath.Join(root, "log", "log_0"))
	assert.NoError(t, err)
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	s := NewLocalStore(filepath.Join(t.TempDir(), "nope"))
	names, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	testStore(t, s)
	assert.Equal(t, 4, s.Puts())
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewMemoryStore().Put(ctx, "x", bytes.NewReader(nil), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewReader_CanceledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "a", bytes.NewReader([]byte("abc")), 3))
	b, err := s.Open(ctx, "a")
	require.NoError(t, err)
	defer b.Close()

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = io.ReadAll(NewReader(canceled, b))
	assert.ErrorIs(t, err, context.Canceled)
}
