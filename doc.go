// Package vecforest provides an embedded approximate nearest-neighbor index
// built from a forest of random-projection trees.
//
// Items are fixed-dimension float32 vectors addressed by non-negative
// integer ids. After Build the index answers k-nearest-neighbor queries by
// walking all trees best-first and ranking the items found in the visited
// leaves by exact distance. More trees and a larger search budget raise
// recall at the cost of memory and latency.
//
// # Quick Start
//
//	idx, _ := vecforest.New(128, distance.Angular, vecforest.WithSeed(42))
//	defer idx.Close()
//
//	for id, v := range vectors {
//	    _ = idx.AddItem(id, v)
//	}
//	_ = idx.Build(ctx, 10, 0) // 10 trees, GOMAXPROCS workers
//
//	results, _ := idx.SearchByVector(ctx, query, 10, vecforest.WithDistances())
//
// # Persistence
//
// Save writes the node array behind a 64 byte header and re-opens the file
// as a read-only memory mapping. Load maps a saved file without copying it,
// so many processes can share one index through the page cache:
//
//	_ = idx.Save(ctx, "items.ann", false)
//
//	other, _ := vecforest.New(128, distance.Angular)
//	_ = other.Load(ctx, "items.ann", true) // prefault pages
//
// OnDiskBuild binds an empty index to a file before items are added, so the
// index is built directly on disk and may exceed available memory.
//
// # Metrics
//
//   - Angular: cosine distance, reported as sqrt(2 - 2cos)
//   - Euclidean: L2 distance
//   - Manhattan: L1 distance
//   - DotProduct: inner product, larger is closer
//
// # Blob storage
//
// Publish uploads a built index to a blobstore.BlobStore (local directory,
// memory, S3 or MinIO), optionally compressed with LZ4 or Zstandard; Fetch
// downloads, decompresses and loads it.
//
// # Concurrency
//
// An Index is safe for concurrent use. Searches run in parallel; mutating
// calls are serialized against them. Build itself grows trees on several
// goroutines.
package vecforest
