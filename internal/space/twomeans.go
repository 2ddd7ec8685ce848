package space

import (
	"math/rand/v2"

	"github.com/hupe1980/vecforest/internal/simd"
)

// twoMeansIterations is the number of assignment steps of the split search.
const twoMeansIterations = 200

type meanSpace interface {
	// meanDistance is the distance from a running mean to a point.
	meanDistance(mean, p Point) float32
	// norm is the divisor applied to p before it joins a mean.
	norm(p Point) float32
	// augmented reports whether Aux takes part in the means.
	augmented() bool
}

// twoMeans approximates two cluster centers of points into p and q.
// points must hold at least two entries.
func twoMeans(s meanSpace, points []Point, rng *rand.Rand, cosine bool, p, q *Point) {
	count := len(points)
	i := rng.IntN(count)
	j := rng.IntN(count - 1)
	if j >= i {
		j++
	}

	copy(p.V, points[i].V)
	copy(q.V, points[j].V)
	p.Aux, q.Aux = points[i].Aux, points[j].Aux
	if !s.augmented() {
		p.Aux, q.Aux = 0, 0
	}

	if cosine {
		normalizePoint(p, s.augmented())
		normalizePoint(q, s.augmented())
	}

	ic, jc := float32(1), float32(1)
	for range twoMeansIterations {
		k := points[rng.IntN(count)]
		di := ic * s.meanDistance(*p, k)
		dj := jc * s.meanDistance(*q, k)

		norm := float32(1)
		if cosine {
			norm = s.norm(k)
		}
		if !(norm > 0) {
			continue
		}

		if di < dj {
			updateMean(p, k, norm, ic, s.augmented())
			ic++
		} else if dj < di {
			updateMean(q, k, norm, jc, s.augmented())
			jc++
		}
	}
}

func updateMean(mean *Point, k Point, norm, c float32, aux bool) {
	for z := range mean.V {
		mean.V[z] = (mean.V[z]*c + k.V[z]/norm) / (c + 1)
	}
	if aux {
		mean.Aux = (mean.Aux*c + k.Aux/norm) / (c + 1)
	}
}

// normalizePoint scales p to unit length. With aux set the scalar counts as
// an extra coordinate.
func normalizePoint(p *Point, aux bool) {
	sq := simd.Dot(p.V, p.V)
	if aux {
		sq += p.Aux * p.Aux
	}
	if !(sq > 0) {
		return
	}
	inv := 1 / simd.Sqrt(sq)
	simd.ScaleInPlace(p.V, inv)
	if aux {
		p.Aux *= inv
	}
}

// splitDirection writes the normalized difference p - q into out.V.
func splitDirection(p, q Point, out *Point) {
	for z := range out.V {
		out.V[z] = p.V[z] - q.V[z]
	}
}

func newMeans(dim int) (Point, Point) {
	buf := make([]float32, 2*dim)
	return Point{V: buf[:dim:dim]}, Point{V: buf[dim:]}
}
