package nodestore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecforest/internal/mmap"
	"github.com/hupe1980/vecforest/resource"
)

func testLayout(t *testing.T, dim int) Layout {
	t.Helper()
	l, err := NewLayout(dim, 0)
	require.NoError(t, err)
	return l
}

func TestNewLayout(t *testing.T) {
	l, err := NewLayout(3, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultLeafCapacity, l.LeafCapacity)
	assert.Equal(t, DefaultLeafCapacity, l.Slots)
	assert.Equal(t, HeaderBytes+4*DefaultLeafCapacity, l.Stride)

	l, err = NewLayout(100, 8)
	require.NoError(t, err)
	assert.Equal(t, 100, l.Slots)
	assert.Equal(t, 24+400, l.Stride)

	_, err = NewLayout(0, 0)
	assert.Error(t, err)
	_, err = NewLayout(4, 1)
	assert.Error(t, err)
}

func TestNode_Fields(t *testing.T) {
	l := testLayout(t, 4)
	n := Node(make([]byte, l.Stride))

	n.SetTag(TagSplit)
	n.SetCount(42)
	n.SetChildren(7, -1)
	n.SetAux(1.5)
	copy(n.Vector(4), []float32{1, 2, 3, 4})

	assert.Equal(t, TagSplit, n.Tag())
	assert.Equal(t, "split", n.Tag().String())
	assert.Equal(t, 42, n.Count())
	assert.Equal(t, 7, n.Left())
	assert.Equal(t, -1, n.Right())
	assert.Equal(t, 7, n.Child(0))
	assert.Equal(t, -1, n.Child(1))
	assert.Equal(t, float32(1.5), n.Aux())
	assert.Equal(t, []float32{1, 2, 3, 4}, n.Vector(4))

	n.Reset()
	n.SetItems([]int32{3, 1, 2})
	assert.Equal(t, TagList, n.Tag())
	assert.Equal(t, []int32{3, 1, 2}, n.Items())
}

func TestStore_HeapAllocAndEnsure(t *testing.T) {
	rc := resource.NewController(resource.Config{})
	l := testLayout(t, 2)
	s := NewHeap(l, rc)
	defer s.Close()

	require.NoError(t, s.EnsureItem(4))
	assert.Equal(t, 5, s.Len())
	assert.Positive(t, rc.MemoryUsage())

	require.NoError(t, s.Update(4, func(n Node) {
		n.SetTag(TagItem)
		copy(n.Vector(2), []float32{1, 2})
	}))

	id, err := s.Alloc()
	require.NoError(t, err)
	assert.Equal(t, 5, id)

	require.NoError(t, s.View(func(v Nodes) error {
		assert.Equal(t, 6, v.Len())
		assert.Equal(t, TagEmpty, v.Node(0).Tag())
		assert.Equal(t, TagItem, v.Node(4).Tag())
		assert.Equal(t, []float32{1, 2}, v.Vector(4))
		return nil
	}))

	// Growth preserves contents.
	for range 100 {
		_, err := s.Alloc()
		require.NoError(t, err)
	}
	require.NoError(t, s.View(func(v Nodes) error {
		assert.Equal(t, []float32{1, 2}, v.Vector(4))
		return nil
	}))
	assert.Len(t, s.Bytes(), 106*l.Stride)

	require.NoError(t, s.Close())
	assert.Equal(t, int64(0), rc.MemoryUsage())

	_, err = s.Alloc()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStore_MemoryLimit(t *testing.T) {
	l := testLayout(t, 4)
	rc := resource.NewController(resource.Config{MemoryLimitBytes: int64(20 * l.Stride)})
	s := NewHeap(l, rc)
	defer s.Close()

	require.NoError(t, s.EnsureItem(15))
	err := s.EnsureItem(100)
	assert.ErrorIs(t, err, ErrAllocation)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.Equal(t, 16, s.Len())
}

func TestStore_Truncate(t *testing.T) {
	l := testLayout(t, 2)
	s := NewHeap(l, nil)
	defer s.Close()

	require.NoError(t, s.EnsureItem(1))
	id, err := s.Alloc()
	require.NoError(t, err)
	require.NoError(t, s.Update(id, func(n Node) { n.SetTag(TagSplit) }))

	require.NoError(t, s.Truncate(2))
	assert.Equal(t, 2, s.Len())
	assert.ErrorIs(t, s.Truncate(5), ErrOutOfRange)
	assert.ErrorIs(t, s.Update(id, func(Node) {}), ErrOutOfRange)

	id2, err := s.Alloc()
	require.NoError(t, err)
	assert.Equal(t, id, id2)
	require.NoError(t, s.View(func(v Nodes) error {
		assert.Equal(t, TagEmpty, v.Node(id2).Tag())
		return nil
	}))

	require.NoError(t, s.Trim())
	assert.Equal(t, 3, s.Cap())
}

func TestStore_ConcurrentAlloc(t *testing.T) {
	l := testLayout(t, 2)
	s := NewHeap(l, nil)
	defer s.Close()

	const workers, perWorker = 8, 500

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				id, err := s.Alloc()
				if !assert.NoError(t, err) {
					return
				}
				assert.NoError(t, s.Update(id, func(n Node) {
					n.SetTag(TagSplit)
					n.SetCount(w)
				}))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, s.Len())
	require.NoError(t, s.View(func(v Nodes) error {
		for i := range v.Len() {
			assert.Equal(t, TagSplit, v.Node(i).Tag())
		}
		return nil
	}))
}

func TestStore_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.bin")
	l := testLayout(t, 2)

	s, err := CreateFile(path, l, 64)
	require.NoError(t, err)
	assert.Equal(t, KindFile, s.Kind())
	assert.Equal(t, path, s.Path())
	assert.Len(t, s.Reserved(), 64)

	require.NoError(t, s.EnsureItem(40))
	require.NoError(t, s.Update(40, func(n Node) {
		n.SetTag(TagItem)
		copy(n.Vector(2), []float32{9, 8})
	}))
	copy(s.Reserved(), "HEAD")

	require.NoError(t, s.Trim())
	require.NoError(t, s.Sync())
	require.NoError(t, s.Close())

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(64+41*l.Stride), fi.Size())

	m, err := mmap.Open(path)
	require.NoError(t, err)
	assert.Equal(t, "HEAD", string(m.Bytes()[:4]))

	ro, err := OpenMapped(m, l, 64, 41)
	require.NoError(t, err)
	defer ro.Close()

	assert.Equal(t, KindMapped, ro.Kind())
	assert.Equal(t, 41, ro.Len())
	require.NoError(t, ro.View(func(v Nodes) error {
		assert.Equal(t, []float32{9, 8}, v.Vector(40))
		return nil
	}))

	_, err = ro.Alloc()
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.ErrorIs(t, ro.EnsureItem(50), ErrReadOnly)
	assert.ErrorIs(t, ro.Truncate(0), ErrReadOnly)
	assert.ErrorIs(t, ro.Update(0, func(Node) {}), ErrReadOnly)
}

func TestStore_OpenMappedTooShort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o600))

	m, err := mmap.Open(path)
	require.NoError(t, err)
	defer m.Close()

	_, err = OpenMapped(m, testLayout(t, 2), 64, 10)
	assert.ErrorIs(t, err, mmap.ErrOutOfBounds)
}
