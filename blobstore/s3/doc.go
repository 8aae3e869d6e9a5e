// Package s3 provides an S3 implementation of the blobstore.Store interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("archive/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	m, err := regionmap.OpenRolled(prefix, 1<<30, filemap.ReadWrite, 1<<20,
//	    regionmap.WithArchive(store))
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads for blobs larger than one part
//   - CRC32C integrity checksums
//   - Automatic pagination for listing
package s3
