// Package minio stores published forest files in MinIO or any other
// S3-compatible service reachable through github.com/minio/minio-go/v7
// (Ceph RGW, Garage, SeaweedFS).
//
// Unlike blobstore/s3 it needs no AWS SDK configuration, which suits
// on-premise and air-gapped deployments:
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	})
//	if err != nil {
//	    return err
//	}
//	store := minioblob.NewStore(client, "indexes", "forests/")
//	err = idx.Publish(ctx, store, "items.ann", vecforest.CompressionZstd)
//
// Create streams an upload of unknown length; nothing is visible in the
// bucket until Close returns. Abort cancels the upload.
package minio
