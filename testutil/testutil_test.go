package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/vecforest/distance"
)

func TestUniformVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UniformVectors(8, 32)

	assert.Len(t, v, 8)
	assert.Len(t, v[0], 32)
	assert.LessOrEqual(t, v[0][0], float32(1.0))
	assert.GreaterOrEqual(t, v[1][0], float32(0.0))
}

func TestUniformRangeVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UniformRangeVectors(8, 32)

	assert.Len(t, v, 8)
	assert.GreaterOrEqual(t, v[1][0], float32(-1.0))
}

func TestUnitVectors(t *testing.T) {
	rng := NewRNG(4711)

	for _, vec := range rng.UnitVectors(8, 32) {
		var sum float32
		for _, val := range vec {
			sum += val * val
		}
		assert.InDelta(t, float32(1.0), sum, 1e-5)
	}
}

func TestClusteredVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.ClusteredVectors(100, 32, 5, 0.1)

	assert.Len(t, v, 100)
	assert.Len(t, v[0], 32)
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.UniformVectors(1, 10)

	rng.Reset()
	v2 := rng.UniformVectors(1, 10)

	assert.Equal(t, v1, v2)
	assert.Equal(t, uint64(4711), rng.Seed())
}

func TestExactTopK(t *testing.T) {
	vectors := [][]float32{{0, 0}, {1, 0}, {5, 5}, {1, 0}}

	got := ExactTopK(vectors, []float32{0.9, 0}, 3, distance.Euclidean)
	assert.Equal(t, []int{1, 3, 0}, []int{got[0].ID, got[1].ID, got[2].ID})
	assert.InDelta(t, float32(0.1), got[0].Distance, 1e-5)
	assert.True(t, IsSorted(got, false))

	dot := ExactTopK(vectors, []float32{1, 1}, 2, distance.DotProduct)
	assert.Equal(t, 2, dot[0].ID)
	assert.True(t, IsSorted(dot, true))
}

func TestComputeRecall(t *testing.T) {
	truth := []SearchResult{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}
	approx := []SearchResult{{ID: 1}, {ID: 3}, {ID: 9}, {ID: 4}}

	assert.InDelta(t, 0.75, ComputeRecall(truth, approx), 1e-9)
	assert.InDelta(t, 1.0, ComputeRecall(nil, nil), 1e-9)
	assert.InDelta(t, 0.0, ComputeRecall(truth, nil), 1e-9)
}
