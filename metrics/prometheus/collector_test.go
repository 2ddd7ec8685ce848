package prometheus

import (
	"context"
	"errors"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecforest"
	"github.com/hupe1980/vecforest/distance"
)

func TestCollector(t *testing.T) {
	reg := prom.NewRegistry()
	c := NewCollector(reg, "test")

	c.RecordAdd(time.Millisecond, nil)
	c.RecordAdd(time.Millisecond, errors.New("boom"))
	c.RecordBuild(4, 120, time.Second, nil)
	c.RecordSearch(10, 37, time.Microsecond, nil)
	c.RecordSave(4096, time.Millisecond, nil)
	c.RecordLoad(4096, time.Millisecond, nil)
	c.RecordSave(100, time.Millisecond, errors.New("disk full"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("add", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("add", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("save", "error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.trees))
	assert.Equal(t, 120.0, testutil.ToFloat64(c.nodes))
	assert.Equal(t, 4096.0, testutil.ToFloat64(c.bytes.WithLabelValues("save")))
	assert.Equal(t, 4096.0, testutil.ToFloat64(c.bytes.WithLabelValues("load")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_operation_latency_seconds")
	assert.Contains(t, names, "test_search_candidates")
}

func TestCollectorWithIndex(t *testing.T) {
	reg := prom.NewRegistry()
	c := NewCollector(reg, "")

	idx, err := vecforest.New(2, distance.Euclidean, vecforest.WithMetricsCollector(c), vecforest.WithSeed(1))
	require.NoError(t, err)
	defer idx.Close()

	for i := range 20 {
		require.NoError(t, idx.AddItem(i, []float32{float32(i), float32(i % 3)}))
	}
	require.NoError(t, idx.Build(context.Background(), 3, 1))

	_, err = idx.SearchByItem(context.Background(), 0, 5)
	require.NoError(t, err)

	assert.Equal(t, 20.0, testutil.ToFloat64(c.operations.WithLabelValues("add", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("build", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("search", "success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.trees))
	assert.Equal(t, 1, testutil.CollectAndCount(c.candidates, "vecforest_search_candidates"))
}

func TestNilRegisterer(t *testing.T) {
	c := NewCollector(nil, "unregistered")
	c.RecordAdd(time.Millisecond, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("add", "success")))
}
