// Package nodestore holds the node array of a random-projection forest.
//
// Every node is a fixed-stride record:
//
//	offset  0  tag   uint32   (Empty, Item, List, Split, Fallback)
//	offset  4  count int32    items below the node
//	offset  8  left  int32
//	offset 12  right int32
//	offset 16  aux   float32
//	offset 20  reserved
//	offset 24  payload [slots]float32 (vector) or [slots]int32 (item ids)
//
// Item leaves occupy ids 0..n_items-1. Tree nodes are appended behind them.
//
// # Backings
//
//   - heap: a doubling []byte, growth charged to a resource.Controller
//   - file: a read-write shared mapping that grows by extending the file
//   - mapped: a read-only mapping of a saved index
//
// # Concurrency Model
//
// Alloc is safe for concurrent use: the cursor is atomic and growth takes the
// store's write lock. View and Update run under the read lock, so concurrent
// tree builders may read leaves and write their own nodes while others
// allocate. A goroutine must not call Alloc from inside View or Update.
package nodestore
