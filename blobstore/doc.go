// Package blobstore abstracts the object storage sealed region files are
// archived to.
//
// Store is the interface for writing and reading archived blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: a directory on the local file system, read through mmap
//   - MemoryStore: an in-memory store for tests
//   - minio.Store: MinIO and other S3-compatible storage
//   - s3.Store: Amazon S3 with multipart uploads for large files
//
// # Custom Implementations
//
//	type Store interface {
//	    Put(ctx, name, r, size) error      // Write a whole blob
//	    Open(ctx, name) (Blob, error)      // Open for reading
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
