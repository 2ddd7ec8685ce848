// Package space implements the per-metric geometry of the forest: item
// distances, hyperplane margins and the two-means split.
package space

import (
	"fmt"
	"math/rand/v2"

	"github.com/hupe1980/vecforest/distance"
	"github.com/hupe1980/vecforest/internal/nodestore"
)

// Point is a vector with its metric scalar (the node aux field).
type Point struct {
	V   []float32
	Aux float32
}

// Space is the geometry of one metric.
type Space interface {
	Metric() distance.Metric

	// Distance returns the raw distance between two items. Smaller is closer.
	Distance(x, y Point) float32

	// Normalize converts a raw distance to the reported distance.
	Normalize(d float32) float32

	// LeafAux returns the aux value stored with a newly added item.
	LeafAux(v []float32) float32

	// QueryAux returns the aux value of an ad-hoc query vector.
	QueryAux(v []float32) float32

	// Margin returns the signed distance of p from the split hyperplane.
	Margin(split, p Point) float32

	// CreateSplit fits a hyperplane separating points into out. out.V has
	// the index dimension.
	CreateSplit(points []Point, rng *rand.Rand, out *Point)

	// Preprocess prepares the item leaves before trees are grown.
	Preprocess(nodes nodestore.Nodes)
}

// New returns the space of metric m.
func New(m distance.Metric) (Space, error) {
	switch m {
	case distance.Angular:
		return angular{}, nil
	case distance.Euclidean:
		return euclidean{}, nil
	case distance.Manhattan:
		return manhattan{}, nil
	case distance.DotProduct:
		return dotProduct{}, nil
	default:
		return nil, fmt.Errorf("space: unsupported metric %v", m)
	}
}

// Side picks the child (0 left, 1 right) for an item with the given margin.
// Points on the hyperplane go to a random side.
func Side(margin float32, rng *rand.Rand) int {
	if margin != 0 {
		if margin > 0 {
			return 1
		}
		return 0
	}
	return rng.IntN(2)
}

// PQDistance is the frontier priority of a child reached through a split
// with the given margin. Higher explores first.
func PQDistance(d, margin float32, child int) float32 {
	if child == 0 {
		margin = -margin
	}
	return min(d, margin)
}
