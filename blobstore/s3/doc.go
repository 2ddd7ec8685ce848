// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("indexes/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	err = idx.Publish(ctx, store, "products.ann", vecforest.CompressionZstd)
//
// # Features
//
//   - Range reads for streaming fetches
//   - Multipart uploads for large index files, aborted on failure
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
