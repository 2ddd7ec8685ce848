package vecforest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecforest/distance"
	"github.com/hupe1980/vecforest/resource"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
dimension: 16
metric: euclidian
leaf_capacity: 8
seed: 42
verbose: true
resources:
  max_build_workers: 2
  io_limit_bytes_per_sec: 1048576
log:
  level: debug
  format: json
`))
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Dimension)
	assert.Equal(t, distance.Euclidean, cfg.Metric)
	assert.Equal(t, 8, cfg.LeafCapacity)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, resource.Config{MaxBuildWorkers: 2, IOLimitBytesPerSec: 1 << 20}, cfg.Resources)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)

	out, err := cfg.Marshal()
	require.NoError(t, err)
	again, err := ParseConfig(out)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"MissingDimension", "metric: angular", nil},
		{"UnknownMetric", "dimension: 3\nmetric: hamming", nil},
		{"UnknownField", "dimension: 3\ntrees: 10", nil},
		{"LeafCapacityOne", "dimension: 3\nleaf_capacity: 1", ErrInvalidLeafCapacity},
		{"BadLogLevel", "dimension: 3\nlog:\n  level: loud", nil},
		{"BadLogFormat", "dimension: 3\nlog:\n  level: info\n  format: xml", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}

	_, err := ParseConfig(nil)
	var target *ErrInvalidDimension
	assert.ErrorAs(t, err, &target)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dimension: 4\nmetric: manhattan\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Dimension)
	assert.Equal(t, distance.Manhattan, cfg.Metric)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("InMemory", func(t *testing.T) {
		cfg := &Config{Dimension: 2, Metric: distance.Euclidean, Seed: 9}
		idx, err := NewFromConfig(cfg)
		require.NoError(t, err)
		defer idx.Close()

		assert.Equal(t, 2, idx.Dimension())
		assert.Equal(t, distance.Euclidean, idx.Metric())
		assert.Equal(t, uint64(9), idx.seed)
	})

	t.Run("OptionsOverrideConfig", func(t *testing.T) {
		cfg := &Config{Dimension: 2, Metric: distance.Euclidean, Seed: 9}
		idx, err := NewFromConfig(cfg, WithSeed(10))
		require.NoError(t, err)
		defer idx.Close()
		assert.Equal(t, uint64(10), idx.seed)
	})

	t.Run("OnDisk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cfg.ann")
		cfg := &Config{Dimension: 2, Metric: distance.Angular, OnDiskPath: path}
		idx, err := NewFromConfig(cfg)
		require.NoError(t, err)
		defer idx.Close()

		assert.Equal(t, path, idx.Path())
		require.NoError(t, idx.AddItem(0, []float32{1, 0}))
		require.NoError(t, idx.AddItem(1, []float32{0, 1}))
		require.NoError(t, idx.Build(ctx, 2, 1))
		assert.FileExists(t, path)
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := NewFromConfig(&Config{Dimension: 0})
		assert.Error(t, err)
	})
}

func TestMemoryLimit(t *testing.T) {
	idx := newTestIndex(t, 4, distance.Euclidean, WithResourceLimits(resource.Config{MemoryLimitBytes: 4096}))

	var err error
	for i := 0; i < 1000 && err == nil; i++ {
		err = idx.AddItem(i, []float32{1, 2, 3, 4})
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllocation)
	assert.Less(t, idx.NItems(), 1000)
}
