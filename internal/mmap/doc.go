// Package mmap provides memory-mapped file access for forest node arrays.
//
// # Overview
//
// Two kinds of mapping are offered:
//
//   - Mapping: a read-only view of a saved index file. Searches read node
//     records straight out of the page cache without copying.
//   - File: a read-write, shared mapping of a file that can grow. It backs
//     on-disk builds, where items and tree nodes are written through to the
//     file as they are created.
//
// # Usage
//
//	m, err := mmap.Open("forest.anf", mmap.WithPrefault())
//	if err != nil { ... }
//	defer m.Close()
//
//	nodes, err := m.Slice(headerSize, m.Size()-headerSize)
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2), madvise(2), msync(2). Prefaulting uses
//     MAP_POPULATE on Linux and MADV_WILLNEED elsewhere.
//   - Windows: CreateFileMapping/MapViewOfFile; madvise is a no-op.
//
// # Thread Safety
//
// Mapping is safe for concurrent read access. Close is idempotent.
// File is not synchronized: callers serialize Grow against access to Bytes.
package mmap
