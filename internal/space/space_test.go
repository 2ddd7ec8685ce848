package space

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecforest/distance"
	"github.com/hupe1980/vecforest/internal/nodestore"
)

func allSpaces(t *testing.T) []Space {
	t.Helper()
	var out []Space
	for _, m := range []distance.Metric{distance.Angular, distance.Euclidean, distance.Manhattan, distance.DotProduct} {
		s, err := New(m)
		require.NoError(t, err)
		require.Equal(t, m, s.Metric())
		out = append(out, s)
	}
	return out
}

func point(s Space, v ...float32) Point {
	return Point{V: v, Aux: s.LeafAux(v)}
}

func TestNew_Unknown(t *testing.T) {
	_, err := New(distance.Metric(99))
	assert.Error(t, err)
}

func TestSide(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	assert.Equal(t, 1, Side(0.1, rng))
	assert.Equal(t, 0, Side(-0.1, rng))

	seen := map[int]int{}
	for range 200 {
		seen[Side(0, rng)]++
	}
	assert.Positive(t, seen[0])
	assert.Positive(t, seen[1])
}

func TestPQDistance(t *testing.T) {
	inf := float32(math.Inf(1))
	assert.Equal(t, float32(2), PQDistance(inf, 2, 1))
	assert.Equal(t, float32(-2), PQDistance(inf, 2, 0))
	assert.Equal(t, float32(0.5), PQDistance(0.5, 2, 1))
	assert.Equal(t, PQDistance(1, 0, 0), PQDistance(1, 0, 1))
}

func TestDistance(t *testing.T) {
	a, _ := New(distance.Angular)
	assert.InDelta(t, float32(0), a.Distance(point(a, 1, 0), point(a, 3, 0)), 1e-6)
	assert.InDelta(t, float32(2), a.Distance(point(a, 1, 0), point(a, 0, 0)), 1e-6)
	assert.InDelta(t, math.Sqrt2, a.Normalize(a.Distance(point(a, 1, 0), point(a, 0, 1))), 1e-6)

	e, _ := New(distance.Euclidean)
	assert.InDelta(t, float32(25), e.Distance(point(e, 0, 0), point(e, 3, 4)), 1e-6)
	assert.InDelta(t, float32(5), e.Normalize(25), 1e-6)

	m, _ := New(distance.Manhattan)
	assert.InDelta(t, float32(7), m.Distance(point(m, 0, 0), point(m, 3, 4)), 1e-6)

	d, _ := New(distance.DotProduct)
	x := Point{V: []float32{1, 2}, Aux: 5}
	y := Point{V: []float32{3, 4}, Aux: 7}
	assert.InDelta(t, float32(-11), d.Distance(x, y), 1e-6, "aux never enters item distance")
	assert.InDelta(t, float32(11), d.Normalize(-11), 1e-6)
}

// Two well separated clusters must end up on opposite sides of the split.
func TestCreateSplit_SeparatesClusters(t *testing.T) {
	for _, s := range allSpaces(t) {
		t.Run(s.Metric().String(), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(42, 0))

			var points []Point
			for i := range 40 {
				jitter := float32(i%5) * 0.01
				if i%2 == 0 {
					points = append(points, point(s, 10+jitter, 1, 0))
				} else {
					points = append(points, point(s, -10-jitter, 0, 1))
				}
			}
			if s.Metric() == distance.DotProduct {
				for i := range points {
					points[i].Aux = 0.1
				}
			}

			out := Point{V: make([]float32, 3)}
			s.CreateSplit(points, rng, &out)

			sides := [2]int{}
			for i, p := range points {
				side := Side(s.Margin(out, p), rng)
				sides[side]++
				if i > 1 {
					assert.Equal(t, Side(s.Margin(out, points[i%2]), rng), side, "point %d", i)
				}
			}
			assert.Equal(t, 20, sides[0])
			assert.Equal(t, 20, sides[1])
		})
	}
}

func TestCreateSplit_NormalIsUnit(t *testing.T) {
	a, _ := New(distance.Angular)
	rng := rand.New(rand.NewPCG(3, 3))
	points := []Point{point(a, 1, 0), point(a, 0, 1), point(a, 1, 1), point(a, -1, 0)}
	out := Point{V: make([]float32, 2)}
	a.CreateSplit(points, rng, &out)

	norm := math.Sqrt(float64(out.V[0]*out.V[0] + out.V[1]*out.V[1]))
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestDotPreprocess(t *testing.T) {
	layout, err := nodestore.NewLayout(2, 0)
	require.NoError(t, err)
	store := nodestore.NewHeap(layout, nil)
	defer store.Close()

	vectors := [][]float32{{3, 4}, {1, 0}, nil, {0, 0}}
	for i, v := range vectors {
		require.NoError(t, store.EnsureItem(i))
		if v == nil {
			continue
		}
		require.NoError(t, store.Update(i, func(n nodestore.Node) {
			n.SetTag(nodestore.TagItem)
			copy(n.Vector(2), v)
		}))
	}

	d, _ := New(distance.DotProduct)
	require.NoError(t, store.View(func(nodes nodestore.Nodes) error {
		d.Preprocess(nodes)
		assert.InDelta(t, float32(0), nodes.Node(0).Aux(), 1e-6)
		assert.InDelta(t, float32(math.Sqrt(24)), nodes.Node(1).Aux(), 1e-5)
		assert.Equal(t, float32(0), nodes.Node(2).Aux())
		assert.InDelta(t, float32(5), nodes.Node(3).Aux(), 1e-6)
		return nil
	}))
}
