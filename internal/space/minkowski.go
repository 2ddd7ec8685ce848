package space

import (
	"math/rand/v2"

	"github.com/hupe1980/vecforest/distance"
	"github.com/hupe1980/vecforest/internal/nodestore"
	"github.com/hupe1980/vecforest/internal/simd"
)

// Euclidean and Manhattan splits are offset hyperplanes through the midpoint
// of the two means; Aux holds the offset.

type euclidean struct{}

func (euclidean) Metric() distance.Metric         { return distance.Euclidean }
func (euclidean) Distance(x, y Point) float32     { return simd.SquaredL2(x.V, y.V) }
func (euclidean) Normalize(d float32) float32     { return distance.Euclidean.Normalize(d) }
func (euclidean) LeafAux([]float32) float32       { return 0 }
func (euclidean) QueryAux([]float32) float32      { return 0 }
func (euclidean) Margin(split, p Point) float32   { return split.Aux + simd.Dot(split.V, p.V) }
func (euclidean) Preprocess(nodestore.Nodes)      {}
func (euclidean) meanDistance(m, p Point) float32 { return simd.SquaredL2(m.V, p.V) }
func (euclidean) norm(Point) float32              { return 1 }
func (euclidean) augmented() bool                 { return false }

func (e euclidean) CreateSplit(points []Point, rng *rand.Rand, out *Point) {
	offsetSplit(e, points, rng, out)
}

type manhattan struct{}

func (manhattan) Metric() distance.Metric         { return distance.Manhattan }
func (manhattan) Distance(x, y Point) float32     { return simd.L1(x.V, y.V) }
func (manhattan) Normalize(d float32) float32     { return distance.Manhattan.Normalize(d) }
func (manhattan) LeafAux([]float32) float32       { return 0 }
func (manhattan) QueryAux([]float32) float32      { return 0 }
func (manhattan) Margin(split, p Point) float32   { return split.Aux + simd.Dot(split.V, p.V) }
func (manhattan) Preprocess(nodestore.Nodes)      {}
func (manhattan) meanDistance(m, p Point) float32 { return simd.L1(m.V, p.V) }
func (manhattan) norm(Point) float32              { return 1 }
func (manhattan) augmented() bool                 { return false }

func (m manhattan) CreateSplit(points []Point, rng *rand.Rand, out *Point) {
	offsetSplit(m, points, rng, out)
}

func offsetSplit(s meanSpace, points []Point, rng *rand.Rand, out *Point) {
	p, q := newMeans(len(out.V))
	twoMeans(s, points, rng, false, &p, &q)
	splitDirection(p, q, out)
	out.Aux = 0
	normalizePoint(out, false)

	var a float32
	for z := range out.V {
		a -= out.V[z] * (p.V[z] + q.V[z]) / 2
	}
	out.Aux = a
}
