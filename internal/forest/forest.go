// Package forest grows random-projection trees over a node store and
// answers nearest-neighbor queries against them.
//
// # Layout
//
// Item leaves occupy ids 0..n-1. Each tree's nodes are appended behind them,
// parent before children. When every tree is grown, a copy of each root is
// appended at the tail, so the roots of a finished forest are always the last
// Trees() records. This lets a loaded file recover its roots from the tree
// count alone.
package forest

import (
	"errors"

	"github.com/hupe1980/vecforest/internal/nodestore"
	"github.com/hupe1980/vecforest/internal/space"
)

var (
	// ErrNoItems is returned when building a store without items.
	ErrNoItems     = errors.New("forest: no items")
	// ErrNoTrees is returned when searching an unbuilt forest.
	ErrNoTrees     = errors.New("forest: no trees")
	// ErrCorruptNode is returned when a search meets a malformed node.
	ErrCorruptNode = errors.New("forest: corrupt node")
)

// Forest ties a store to its geometry and the roots of its trees.
type Forest struct {
	space space.Space
	store *nodestore.Store
	items int
	roots []int
}

// New wraps a store holding items leaves and no trees.
func New(sp space.Space, store *nodestore.Store) *Forest {
	return &Forest{space: sp, store: store, items: store.Len()}
}

// Open wraps a store holding a finished forest of trees trees over items
// leaves.
func Open(sp space.Space, store *nodestore.Store, items, trees int) (*Forest, error) {
	n := store.Len()
	if items < 0 || trees < 0 || items+trees > n {
		return nil, nodestore.ErrOutOfRange
	}
	f := &Forest{space: sp, store: store, items: items}
	for i := n - trees; i < n; i++ {
		f.roots = append(f.roots, i)
	}
	return f, nil
}

// Space returns the metric geometry.
func (f *Forest) Space() space.Space { return f.space }

// Store returns the node store.
func (f *Forest) Store() *nodestore.Store { return f.store }

// Items returns the number of item ids.
func (f *Forest) Items() int { return f.items }

// Trees returns the number of trees.
func (f *Forest) Trees() int { return len(f.roots) }

// Roots returns the root ids in tree order.
func (f *Forest) Roots() []int { return f.roots }

// Built reports whether the forest has trees.
func (f *Forest) Built() bool { return len(f.roots) > 0 }

// Reset drops every tree and keeps the item leaves.
func (f *Forest) Reset() error {
	if err := f.store.Truncate(f.items); err != nil {
		return err
	}
	f.roots = nil
	return nil
}

// SetItems updates the item count after leaves were added.
func (f *Forest) SetItems(n int) { f.items = n }

// ErrNoItem is returned for an id inside the item range that holds no item.
var ErrNoItem = errors.New("forest: no item with this id")

// ErrBuilt is returned when modifying items of a built forest.
var ErrBuilt = errors.New("forest: already built")

// AddItem writes the leaf of item id, replacing an earlier vector.
func (f *Forest) AddItem(id int, v []float32) error {
	if f.Built() {
		return ErrBuilt
	}
	if err := f.store.EnsureItem(id); err != nil {
		return err
	}
	aux := f.space.LeafAux(v)
	dim := f.store.Layout().Dimension
	if err := f.store.Update(id, func(n nodestore.Node) {
		n.Reset()
		n.SetTag(nodestore.TagItem)
		n.SetCount(1)
		n.SetAux(aux)
		copy(n.Vector(dim), v)
	}); err != nil {
		return err
	}
	f.items = max(f.items, id+1)
	return nil
}

// Item copies the vector of item id into dst and returns it.
func (f *Forest) Item(id int, dst []float32) ([]float32, error) {
	if id < 0 || id >= f.items {
		return nil, nodestore.ErrOutOfRange
	}
	err := f.store.View(func(nodes nodestore.Nodes) error {
		n := nodes.Node(id)
		if n.Tag() != nodestore.TagItem {
			return ErrNoItem
		}
		dst = append(dst[:0], n.Vector(nodes.Layout().Dimension)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dst, nil
}

// Query returns the search point for vector v.
func (f *Forest) Query(v []float32) space.Point {
	return space.Point{V: v, Aux: f.space.QueryAux(v)}
}

// Distance returns the raw distance between items i and j.
func (f *Forest) Distance(i, j int) (float32, error) {
	if i < 0 || j < 0 || i >= f.items || j >= f.items {
		return 0, nodestore.ErrOutOfRange
	}
	var d float32
	err := f.store.View(func(nodes nodestore.Nodes) error {
		a, b := nodes.Node(i), nodes.Node(j)
		if a.Tag() != nodestore.TagItem || b.Tag() != nodestore.TagItem {
			return ErrNoItem
		}
		dim := nodes.Layout().Dimension
		x := space.Point{V: a.Vector(dim), Aux: f.space.QueryAux(a.Vector(dim))}
		y := space.Point{V: b.Vector(dim), Aux: f.space.QueryAux(b.Vector(dim))}
		d = f.space.Distance(x, y)
		return nil
	})
	return d, err
}
