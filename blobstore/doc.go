// Package blobstore provides object storage for publishing and fetching
// index files.
//
// # Built-in Implementations
//
//   - LocalStore: local file system, mmap-backed reads, atomic writes
//   - MemoryStore: in-memory, for tests
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible storage
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Create(ctx, name) (WritableBlob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Writable blobs that can cancel a partial upload should also implement
// Aborter; Discard uses it when a publish fails.
package blobstore
