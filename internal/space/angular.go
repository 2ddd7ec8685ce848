package space

import (
	"math/rand/v2"

	"github.com/hupe1980/vecforest/distance"
	"github.com/hupe1980/vecforest/internal/nodestore"
	"github.com/hupe1980/vecforest/internal/simd"
)

// angular stores each item's squared norm in Aux.
type angular struct{}

func (angular) Metric() distance.Metric { return distance.Angular }

func (angular) Distance(x, y Point) float32 {
	return distance.CosineWithNorms(simd.Dot(x.V, y.V), x.Aux, y.Aux)
}

func (angular) Normalize(d float32) float32 { return distance.Angular.Normalize(d) }

func (angular) LeafAux(v []float32) float32  { return simd.Dot(v, v) }
func (angular) QueryAux(v []float32) float32 { return simd.Dot(v, v) }

func (angular) Margin(split, p Point) float32 {
	return simd.Dot(split.V, p.V)
}

func (a angular) CreateSplit(points []Point, rng *rand.Rand, out *Point) {
	p, q := newMeans(len(out.V))
	twoMeans(a, points, rng, true, &p, &q)
	splitDirection(p, q, out)
	out.Aux = 0
	normalizePoint(out, false)
}

func (angular) Preprocess(nodestore.Nodes) {}

func (angular) meanDistance(mean, p Point) float32 {
	return distance.CosineWithNorms(simd.Dot(mean.V, p.V), simd.Dot(mean.V, mean.V), p.Aux)
}

func (angular) norm(p Point) float32 { return simd.Sqrt(p.Aux) }

func (angular) augmented() bool { return false }
