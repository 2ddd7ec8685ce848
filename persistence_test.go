package vecforest

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecforest/distance"
	"github.com/hupe1980/vecforest/internal/format"
	"github.com/hupe1980/vecforest/internal/fs"
	"github.com/hupe1980/vecforest/testutil"
)

func builtIndex(t *testing.T, dim, n int, metric distance.Metric, opts ...Option) (*Index, [][]float32) {
	t.Helper()
	vectors := testutil.NewRNG(21).GaussianVectors(n, dim)
	idx := newTestIndex(t, dim, metric, append([]Option{WithSeed(5)}, opts...)...)
	addVectors(t, idx, vectors)
	require.NoError(t, idx.Build(context.Background(), 8, 2))
	return idx, vectors
}

func search(t *testing.T, idx *Index, q []float32) []Result {
	t.Helper()
	results, err := idx.SearchByVector(context.Background(), q, 10, WithBudget(200), WithDistances())
	require.NoError(t, err)
	return results
}

// corruptCopy writes a copy of src to a new file after applying mutate.
func corruptCopy(t *testing.T, src string, mutate func([]byte) []byte) string {
	t.Helper()
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	dst := filepath.Join(t.TempDir(), "corrupt.ann")
	require.NoError(t, os.WriteFile(dst, mutate(append([]byte(nil), data...)), 0o600))
	return dst
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, metric := range allMetrics {
		t.Run(metric.String(), func(t *testing.T) {
			idx, vectors := builtIndex(t, 5, 300, metric)
			q := vectors[42]
			before := search(t, idx, q)
			nodes := idx.NNodes()

			path := filepath.Join(t.TempDir(), "forest.ann")
			require.NoError(t, idx.Save(ctx, path, false))

			// Saving re-opens the file read-only.
			assert.True(t, idx.Loaded())
			assert.Equal(t, path, idx.Path())
			assert.Equal(t, before, search(t, idx, q))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, int64(format.HeaderSize)+int64(nodes)*int64(idx.layout.Stride), info.Size())

			loaded := newTestIndex(t, 5, metric)
			require.NoError(t, loaded.Load(ctx, path, true))
			assert.True(t, loaded.Loaded())
			assert.True(t, loaded.Built())
			assert.Equal(t, 300, loaded.NItems())
			assert.Equal(t, 8, loaded.NTrees())
			assert.Equal(t, nodes, loaded.NNodes())

			for id, v := range vectors {
				got, err := loaded.ItemVector(id)
				require.NoError(t, err)
				require.Equal(t, v, got)
			}
			assert.Equal(t, before, search(t, loaded, q))
		})
	}
}

func TestLoadedIndexIsReadOnly(t *testing.T) {
	ctx := context.Background()
	idx, vectors := builtIndex(t, 3, 50, distance.Euclidean)
	path := filepath.Join(t.TempDir(), "ro.ann")
	require.NoError(t, idx.Save(ctx, path, false))

	assert.ErrorIs(t, idx.AddItem(50, vectors[0]), ErrReadOnly)
	assert.ErrorIs(t, idx.AddItem(1, vectors[0]), ErrReadOnly)
	assert.ErrorIs(t, idx.Build(ctx, 2, 1), ErrReadOnly)
	assert.ErrorIs(t, idx.Unbuild(), ErrReadOnly)
	assert.ErrorIs(t, idx.OnDiskBuild(filepath.Join(t.TempDir(), "x.ann")), ErrReadOnly)

	// A loaded index can be saved elsewhere and follows the new file.
	other := filepath.Join(t.TempDir(), "copy.ann")
	require.NoError(t, idx.Save(ctx, other, false))
	assert.Equal(t, other, idx.Path())
	assert.Equal(t, 50, idx.NItems())
}

func TestUnload(t *testing.T) {
	ctx := context.Background()
	idx, _ := builtIndex(t, 3, 50, distance.Angular)
	path := filepath.Join(t.TempDir(), "unload.ann")
	require.NoError(t, idx.Save(ctx, path, false))

	require.NoError(t, idx.Unload())
	assert.False(t, idx.Loaded())
	assert.False(t, idx.Built())
	assert.Zero(t, idx.NItems())
	assert.Empty(t, idx.Path())

	require.NoError(t, idx.AddItem(0, []float32{1, 2, 3}))
	assert.Equal(t, 1, idx.NItems())

	// The file is still intact.
	require.NoError(t, idx.Load(ctx, path, false))
	assert.Equal(t, 50, idx.NItems())
}

func TestSaveErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("NotBuilt", func(t *testing.T) {
		idx := newTestIndex(t, 2, distance.Euclidean)
		require.NoError(t, idx.AddItem(0, []float32{1, 1}))
		path := filepath.Join(t.TempDir(), "unbuilt.ann")
		assert.ErrorIs(t, idx.Save(ctx, path, false), ErrNotBuilt)
		assert.NoFileExists(t, path)
	})

	faults := []struct {
		name  string
		fault fs.Fault
	}{
		{"DiskFull", fs.Fault{FailAfterBytes: 100}},
		{"Sync", fs.Fault{FailAfterBytes: -1, FailOnSync: true}},
		{"Rename", fs.Fault{FailAfterBytes: -1, FailOnRename: true}},
	}
	for _, tt := range faults {
		t.Run(tt.name, func(t *testing.T) {
			ffs := fs.NewFaultyFS(nil)
			ffs.AddRule(".tmp", tt.fault)

			idx, vectors := builtIndex(t, 4, 100, distance.Euclidean, WithFileSystem(ffs))
			before := search(t, idx, vectors[0])

			path := filepath.Join(t.TempDir(), "faulty.ann")
			err := idx.Save(ctx, path, false)
			require.Error(t, err)
			assert.True(t, errors.Is(err, fs.ErrInjected))

			assert.NoFileExists(t, path)
			assert.NoFileExists(t, path+".tmp")
			assert.False(t, idx.Loaded())
			assert.True(t, idx.Built())
			assert.Equal(t, before, search(t, idx, vectors[0]))
		})
	}
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()
	src, _ := builtIndex(t, 4, 120, distance.Euclidean)
	path := filepath.Join(t.TempDir(), "valid.ann")
	require.NoError(t, src.Save(ctx, path, false))

	// target keeps its own state across every failed load.
	target, vectors := builtIndex(t, 4, 30, distance.Euclidean)
	before := search(t, target, vectors[3])
	defer func() {
		assert.Equal(t, 30, target.NItems())
		assert.False(t, target.Loaded())
		assert.Equal(t, before, search(t, target, vectors[3]))
	}()

	t.Run("Missing", func(t *testing.T) {
		err := target.Load(ctx, filepath.Join(t.TempDir(), "missing.ann"), false)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("CorruptDimension", func(t *testing.T) {
		bad := corruptCopy(t, path, func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[12:], 5)
			return b
		})
		err := target.Load(ctx, bad, false)
		var mismatch *ErrHeaderMismatch
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, "dimension", mismatch.Field)
		assert.Equal(t, "4", mismatch.Expected)
		assert.Equal(t, "5", mismatch.Actual)
	})

	t.Run("MetricMismatch", func(t *testing.T) {
		angular := newTestIndex(t, 4, distance.Angular)
		err := angular.Load(ctx, path, false)
		var mismatch *ErrHeaderMismatch
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, "metric", mismatch.Field)
		assert.Equal(t, "euclidean", mismatch.Actual)
	})

	t.Run("LeafCapacityMismatch", func(t *testing.T) {
		small := newTestIndex(t, 4, distance.Euclidean, WithLeafCapacity(8))
		err := small.Load(ctx, path, false)
		var mismatch *ErrHeaderMismatch
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, "leaf capacity", mismatch.Field)
	})

	corruptions := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"BadMagic", func(b []byte) []byte { b[0] ^= 0xFF; return b }},
		{"BadVersion", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[4:], 99); return b }},
		{"Checksum", func(b []byte) []byte { binary.LittleEndian.PutUint64(b[24:], 7); return b }},
		{"Truncated", func(b []byte) []byte { return b[:len(b)/2] }},
		{"ShortHeader", func(b []byte) []byte { return b[:20] }},
	}
	for _, tt := range corruptions {
		t.Run(tt.name, func(t *testing.T) {
			err := target.Load(ctx, corruptCopy(t, path, tt.mutate), false)
			assert.ErrorIs(t, err, ErrCorrupted)
		})
	}
}

func TestLoadCorruptNodes(t *testing.T) {
	ctx := context.Background()
	idx, vectors := builtIndex(t, 4, 300, distance.Euclidean)
	path := filepath.Join(t.TempDir(), "forest.ann")
	require.NoError(t, idx.Save(ctx, path, false))

	stride := idx.layout.Stride
	lastRoot := format.HeaderSize + (idx.NNodes()-1)*stride

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"ChildOutOfRange", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[lastRoot+8:], 0x7ffffff0)
			binary.LittleEndian.PutUint32(b[lastRoot+12:], 0x7ffffff0)
			return b
		}},
		{"OversizedList", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[lastRoot:], 2)
			binary.LittleEndian.PutUint32(b[lastRoot+4:], 1<<20)
			return b
		}},
		{"UnknownTag", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[lastRoot:], 77)
			return b
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// The header is intact, so the file loads.
			loaded := newTestIndex(t, 4, distance.Euclidean)
			require.NoError(t, loaded.Load(ctx, corruptCopy(t, path, tt.mutate), false))

			_, err := loaded.SearchByVector(ctx, vectors[0], 10, WithBudget(1000))
			assert.ErrorIs(t, err, ErrCorrupted)
			_, err = loaded.SearchByItem(ctx, 1, 10)
			assert.ErrorIs(t, err, ErrCorrupted)
		})
	}
}

func TestOnDiskBuild(t *testing.T) {
	ctx := context.Background()
	vectors := testutil.NewRNG(22).GaussianVectors(400, 6)
	path := filepath.Join(t.TempDir(), "ondisk.ann")

	idx := newTestIndex(t, 6, distance.Angular, WithSeed(8))
	require.NoError(t, idx.OnDiskBuild(path))
	assert.Equal(t, path, idx.Path())
	assert.FileExists(t, path)

	addVectors(t, idx, vectors)
	require.NoError(t, idx.Build(ctx, 6, 2))
	assert.False(t, idx.Loaded())
	before := search(t, idx, vectors[9])

	require.NoError(t, idx.Save(ctx, path, false))
	assert.Equal(t, before, search(t, idx, vectors[9]))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(format.HeaderSize)+int64(idx.NNodes())*int64(idx.layout.Stride), info.Size())

	t.Run("LoadFromAnotherIndex", func(t *testing.T) {
		other := newTestIndex(t, 6, distance.Angular)
		require.NoError(t, other.Load(ctx, path, false))
		assert.Equal(t, before, search(t, other, vectors[9]))
	})

	t.Run("SaveCopy", func(t *testing.T) {
		cp := filepath.Join(t.TempDir(), "copy.ann")
		require.NoError(t, idx.Save(ctx, cp, false))
		assert.Equal(t, path, idx.Path())

		other := newTestIndex(t, 6, distance.Angular)
		require.NoError(t, other.Load(ctx, cp, false))
		assert.Equal(t, before, search(t, other, vectors[9]))
	})

	t.Run("RequiresEmptyIndex", func(t *testing.T) {
		busy := newTestIndex(t, 6, distance.Angular)
		require.NoError(t, busy.AddItem(0, vectors[0]))
		assert.ErrorIs(t, busy.OnDiskBuild(filepath.Join(t.TempDir(), "busy.ann")), ErrNotEmpty)
		assert.Equal(t, 1, busy.NItems())
	})
}
