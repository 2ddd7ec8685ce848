// Package resource bounds what an index may consume while it builds and
// persists.
//
// A Controller governs three resources:
//
//   - Memory: bytes held by heap node stores (non-blocking, fail-fast)
//   - Workers: concurrent tree builders across every index sharing the controller
//   - IO: a token bucket for save, publish and fetch streams
//
// # Memory
//
//	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 30})
//	if err := rc.AcquireMemory(n); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMemory(n)
//
// # Workers
//
//	if err := rc.AcquireWorker(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseWorker()
//
// # IO
//
//	w := resource.NewRateLimitedWriter(ctx, file, rc)
//
// Writes and reads larger than the bucket burst are split into burst-sized
// chunks, so a large node array never asks the limiter for more than it can
// ever grant.
//
// # Nil Safety
//
// A nil *Controller imposes no limits. Every method is safe to call on nil.
package resource
