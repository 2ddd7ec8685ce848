// Package simd provides the float32 kernels used by distance computation and
// hyperplane construction.
//
// # Dispatch
//
// Kernels are plain function pointers chosen once at init. The generic Go loops
// are the default; on x86-64 CPUs with AVX2+FMA the dot product and L1 distance
// are routed through github.com/viterin/vek, and scaling uses the gonum BLAS
// implementation.
//
// Set VECFOREST_SIMD=generic to force the pure Go kernels. SIMD reductions sum in
// a different order than the scalar loops, so a forest built with one kernel set
// is not bit-identical to one built with the other.
//
// # Operations
//
//   - Dot, SquaredL2, L1
//   - ScaleInPlace, Norm
package simd
