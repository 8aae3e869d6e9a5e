package minio

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/hupe1980/regionmap/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	accessKey := "minioadmin"
	secretKey := "minioadmin"
	bucket := "test-regionmap"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	_, err = client.ListBuckets(ctx)
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "test-prefix/")

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "log_0", bytes.NewReader(data), int64(len(data))))

	blob, err := store.Open(ctx, "log_0")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	assert.Equal(t, "minio", string(buf))

	n, err = blob.ReadAt(ctx, buf, int64(len(data))-3)
	assert.Equal(t, 3, n)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, blob.Close())

	// Unknown size streams through multipart buffering.
	require.NoError(t, store.Put(ctx, "log_1", bytes.NewReader(data), -1))

	names, err := store.List(ctx, "log_")
	require.NoError(t, err)
	assert.Equal(t, []string{"log_0", "log_1"}, names)

	require.NoError(t, store.Delete(ctx, "log_0"))
	require.NoError(t, store.Delete(ctx, "log_1"))

	_, err = store.Open(ctx, "log_0")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
