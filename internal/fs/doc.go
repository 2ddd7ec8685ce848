// Package fs provides filesystem abstractions for testability and fault injection.
//
// Index files are written through [FileSystem] so tests can simulate a full
// disk or a failing fsync without touching the real disk:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.SetLimit(4096) // every write past 4KiB fails with ErrInjected
//
// Memory-mapped access goes straight to the operating system (see
// internal/mmap); only streamed writes pass through this package.
package fs
