package testutil

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/hupe1980/vecforest/distance"
	"github.com/hupe1980/vecforest/internal/simd"
)

// SearchResult is a ground-truth neighbour.
type SearchResult struct {
	ID       int
	Distance float32
}

// RNG produces reproducible test data from a PCG source. It is safe for
// concurrent use.
type RNG struct {
	mu   sync.Mutex
	seed uint64
	src  *rand.PCG
	r    *rand.Rand
}

// NewRNG returns a generator seeded with seed.
func NewRNG(seed uint64) *RNG {
	src := rand.NewPCG(seed, seed^0x5bd1e995)
	return &RNG{seed: seed, src: src, r: rand.New(src)}
}

// Reset rewinds the generator to its seed.
func (g *RNG) Reset() {
	g.mu.Lock()
	g.src.Seed(g.seed, g.seed^0x5bd1e995)
	g.mu.Unlock()
}

func (g *RNG) Seed() uint64 { return g.seed }

// fill returns num vectors of dim components drawn from next, sharing one
// backing array.
func (g *RNG) fill(num, dim int, next func(*rand.Rand, int) float32) [][]float32 {
	g.mu.Lock()
	defer g.mu.Unlock()

	flat := make([]float32, num*dim)
	out := make([][]float32, num)
	for i := range out {
		v := flat[i*dim : (i+1)*dim : (i+1)*dim]
		for j := range v {
			v[j] = next(g.r, i)
		}
		out[i] = v
	}
	return out
}

// UniformVectors draws components from [0, 1).
func (g *RNG) UniformVectors(num, dim int) [][]float32 {
	return g.fill(num, dim, func(r *rand.Rand, _ int) float32 { return r.Float32() })
}

// UniformRangeVectors draws components from [-1, 1).
func (g *RNG) UniformRangeVectors(num, dim int) [][]float32 {
	return g.fill(num, dim, func(r *rand.Rand, _ int) float32 { return 2*r.Float32() - 1 })
}

// GaussianVectors draws components from N(0, 1).
func (g *RNG) GaussianVectors(num, dim int) [][]float32 {
	return g.fill(num, dim, func(r *rand.Rand, _ int) float32 { return float32(r.NormFloat64()) })
}

// UnitVectors returns Gaussian vectors scaled to unit length.
func (g *RNG) UnitVectors(num, dim int) [][]float32 {
	out := g.GaussianVectors(num, dim)
	for _, v := range out {
		if n := simd.Norm(v); n > 0 {
			simd.ScaleInPlace(v, 1/n)
		}
	}
	return out
}

// ClusteredVectors scatters num points around clusters unit-length centres
// with Gaussian noise of the given spread. Point i belongs to cluster
// i%clusters.
func (g *RNG) ClusteredVectors(num, dim, clusters int, spread float32) [][]float32 {
	centres := g.UnitVectors(clusters, dim)
	j := 0
	return g.fill(num, dim, func(r *rand.Rand, i int) float32 {
		c := centres[i%clusters][j]
		j = (j + 1) % dim
		return c + spread*float32(r.NormFloat64())
	})
}

// ExactTopK brute-forces the k nearest vectors to query under m. Results are
// ordered by raw distance then id and carry reported distances.
func ExactTopK(vectors [][]float32, query []float32, k int, m distance.Metric) []SearchResult {
	all := make([]SearchResult, 0, len(vectors))
	for id, v := range vectors {
		all = append(all, SearchResult{ID: id, Distance: m.Distance(query, v)})
	}
	slices.SortFunc(all, func(a, b SearchResult) int {
		return cmp.Or(cmp.Compare(a.Distance, b.Distance), cmp.Compare(a.ID, b.ID))
	})

	top := all[:min(k, len(all))]
	for i := range top {
		top[i].Distance = m.Normalize(top[i].Distance)
	}
	return top
}

// ComputeRecall is the share of the first min(len) ground-truth ids found in
// approximate. Two empty lists have recall 1.
func ComputeRecall(groundTruth, approximate []SearchResult) float64 {
	k := min(len(groundTruth), len(approximate))
	if k == 0 {
		if len(groundTruth) == len(approximate) {
			return 1
		}
		return 0
	}

	want := make(map[int]bool, k)
	for _, r := range groundTruth[:k] {
		want[r.ID] = true
	}
	hits := 0
	for _, r := range approximate {
		if want[r.ID] {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// IsSorted reports whether distances never decrease (or never increase when
// descending). NaNs are skipped.
func IsSorted(results []SearchResult, descending bool) bool {
	return slices.IsSortedFunc(results, func(a, b SearchResult) int {
		x, y := float64(a.Distance), float64(b.Distance)
		if math.IsNaN(x) || math.IsNaN(y) {
			return 0
		}
		if descending {
			x, y = y, x
		}
		return cmp.Compare(x, y)
	})
}
