// Package distance provides vector distance calculations with SIMD acceleration.
//
// Kernels are dispatched once at init (see internal/simd): vek on AVX2+FMA CPUs,
// portable Go loops elsewhere.
//
// # Supported Metrics
//
//   - Angular: cosine distance 2 - 2cos(a, b), reported as its square root
//   - Euclidean: squared L2, reported as L2
//   - Manhattan: L1
//   - DotProduct: negated inner product, reported as the inner product
//
// # Usage
//
//	m, _ := distance.ParseMetric("euclidean")
//	d := m.Distance(a, b)
//	reported := m.Normalize(d)
package distance
