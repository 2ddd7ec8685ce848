package space

import (
	"math/rand/v2"

	"github.com/hupe1980/vecforest/distance"
	"github.com/hupe1980/vecforest/internal/nodestore"
	"github.com/hupe1980/vecforest/internal/simd"
)

// dotProduct reduces maximum inner product search to angular search by
// giving every item an extra coordinate, Aux = sqrt(maxNorm^2 - norm^2), so
// all augmented items share one norm. Queries get a zero extra coordinate.
type dotProduct struct{}

func (dotProduct) Metric() distance.Metric { return distance.DotProduct }

func (dotProduct) Distance(x, y Point) float32 { return -simd.Dot(x.V, y.V) }

func (dotProduct) Normalize(d float32) float32 { return distance.DotProduct.Normalize(d) }

func (dotProduct) LeafAux([]float32) float32  { return 0 }
func (dotProduct) QueryAux([]float32) float32 { return 0 }

func (dotProduct) Margin(split, p Point) float32 {
	return simd.Dot(split.V, p.V) + split.Aux*p.Aux
}

func (d dotProduct) CreateSplit(points []Point, rng *rand.Rand, out *Point) {
	p, q := newMeans(len(out.V))
	twoMeans(d, points, rng, true, &p, &q)
	splitDirection(p, q, out)
	out.Aux = p.Aux - q.Aux
	normalizePoint(out, true)
}

// Preprocess computes the extra coordinate of every item leaf.
func (dotProduct) Preprocess(nodes nodestore.Nodes) {
	dim := nodes.Layout().Dimension

	var maxNorm float32
	for i := range nodes.Len() {
		n := nodes.Node(i)
		if n.Tag() != nodestore.TagItem {
			continue
		}
		v := n.Vector(dim)
		maxNorm = max(maxNorm, simd.Dot(v, v))
	}

	for i := range nodes.Len() {
		n := nodes.Node(i)
		if n.Tag() != nodestore.TagItem {
			continue
		}
		v := n.Vector(dim)
		n.SetAux(simd.Sqrt(max(maxNorm-simd.Dot(v, v), 0)))
	}
}

func (dotProduct) meanDistance(mean, p Point) float32 {
	return -(simd.Dot(mean.V, p.V) + mean.Aux*p.Aux)
}

func (dotProduct) norm(p Point) float32 {
	return simd.Sqrt(simd.Dot(p.V, p.V) + p.Aux*p.Aux)
}

func (dotProduct) augmented() bool { return true }
