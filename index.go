package vecforest

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hupe1980/vecforest/distance"
	"github.com/hupe1980/vecforest/internal/forest"
	"github.com/hupe1980/vecforest/internal/nodestore"
	"github.com/hupe1980/vecforest/internal/space"
)

// DefaultLeafCapacity is the largest number of item ids kept in one leaf
// unless WithLeafCapacity overrides it.
const DefaultLeafCapacity = nodestore.DefaultLeafCapacity

// Index is an approximate nearest-neighbor index built from a forest of
// random-projection trees.
//
// Writers (AddItem, Build, Unbuild, Save, Load, Unload, OnDiskBuild, Close)
// are serialized against readers; searches run concurrently.
type Index struct {
	mu sync.RWMutex

	dim    int
	metric distance.Metric
	layout nodestore.Layout
	space  space.Space
	forest *forest.Forest

	seed    uint64
	verbose bool
	loaded  bool
	onDisk  bool
	path    string
	closed  bool

	opts options
}

// New creates an empty in-memory index for vectors of the given dimension.
func New(dimension int, metric distance.Metric, optFns ...Option) (*Index, error) {
	if dimension <= 0 || dimension > math.MaxInt32 {
		return nil, &ErrInvalidDimension{Dimension: dimension}
	}
	if !metric.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMetric, metric)
	}

	o := applyOptions(optFns)
	if o.leafCapacity < 0 || o.leafCapacity == 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLeafCapacity, o.leafCapacity)
	}

	layout, err := nodestore.NewLayout(dimension, o.leafCapacity)
	if err != nil {
		return nil, &ErrInvalidDimension{Dimension: dimension, cause: err}
	}
	sp, err := space.New(metric)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMetric, err)
	}

	o.logger = o.logger.WithDimension(dimension).WithMetric(metric.String())

	return &Index{
		dim:     dimension,
		metric:  metric,
		layout:  layout,
		space:   sp,
		forest:  forest.New(sp, nodestore.NewHeap(layout, o.resource)),
		seed:    o.seed,
		verbose: o.verbose,
		opts:    o,
	}, nil
}

// Dimension returns the vector dimension.
func (idx *Index) Dimension() int { return idx.dim }

// Metric returns the distance metric.
func (idx *Index) Metric() distance.Metric { return idx.metric }

// NItems returns the item id range (largest added id + 1).
func (idx *Index) NItems() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return 0
	}
	return idx.forest.Items()
}

// NTrees returns the number of trees, 0 before build.
func (idx *Index) NTrees() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return 0
	}
	return idx.forest.Trees()
}

// NNodes returns the number of node records, item leaves included.
func (idx *Index) NNodes() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return 0
	}
	return idx.forest.Store().Len()
}

// Built reports whether the index holds trees.
func (idx *Index) Built() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return !idx.closed && idx.forest.Built()
}

// Loaded reports whether the index is backed by a read-only file mapping.
func (idx *Index) Loaded() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.loaded
}

// Path returns the file behind a loaded or on-disk index, or "".
func (idx *Index) Path() string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.path
}

// SetSeed sets the seed used by the next Build.
func (idx *Index) SetSeed(seed uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.seed = seed
}

// SetVerbose toggles info-level build progress logging.
func (idx *Index) SetVerbose(verbose bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.verbose = verbose
}

func (idx *Index) checkRead(id int) error {
	if idx.closed {
		return ErrClosed
	}
	if id < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeItem, id)
	}
	if n := idx.forest.Items(); id >= n {
		return fmt.Errorf("%w: %d >= %d", ErrItemOutOfRange, id, n)
	}
	return nil
}

func (idx *Index) checkVector(v []float32) error {
	if len(v) != idx.dim {
		return &ErrDimensionMismatch{Expected: idx.dim, Actual: len(v)}
	}
	return nil
}

// AddItem stores vector v under id. Ids need not be dense: skipped ids stay
// empty and are ignored by build and search. Adding an id again before
// Build replaces its vector.
func (idx *Index) AddItem(id int, v []float32) (err error) {
	start := time.Now()
	defer func() {
		idx.opts.metricsCollector.RecordAdd(time.Since(start), err)
		idx.opts.logger.LogAdd(context.Background(), id, err)
	}()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	switch {
	case idx.closed:
		return ErrClosed
	case id < 0:
		return fmt.Errorf("%w: %d", ErrNegativeItem, id)
	case id >= math.MaxInt32:
		return fmt.Errorf("%w: %d", ErrItemOutOfRange, id)
	case idx.loaded:
		return ErrReadOnly
	case idx.forest.Built():
		return ErrAlreadyBuilt
	}
	if err := idx.checkVector(v); err != nil {
		return err
	}

	return translateError(idx.forest.AddItem(id, v))
}

// Build grows exactly trees trees over the added items with up to workers
// concurrent builders. Negative trees grows trees until the index holds about
// twice as many nodes as items, and zero is rejected with ErrInvalidTrees.
// workers <= 0 uses GOMAXPROCS.
//
// A failed or cancelled build leaves the index unbuilt with its items intact.
func (idx *Index) Build(ctx context.Context, trees, workers int) (err error) {
	start := time.Now()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return ErrClosed
	}
	defer func() {
		trees, nodes := idx.forest.Trees(), idx.forest.Store().Len()
		idx.opts.metricsCollector.RecordBuild(trees, nodes, time.Since(start), err)
		idx.opts.logger.LogBuild(ctx, trees, nodes, time.Since(start), err)
	}()

	switch {
	case idx.loaded:
		return ErrReadOnly
	case idx.forest.Built():
		return ErrAlreadyBuilt
	case idx.forest.Items() == 0:
		return ErrEmptyIndex
	case trees == 0:
		return ErrInvalidTrees
	}

	if trees < 0 {
		trees = -1
	}
	verbose := idx.verbose
	opts := forest.BuildOptions{
		Trees:    trees,
		Workers:  workers,
		Seed:     idx.seed,
		Resource: idx.opts.resource,
		OnTree: func(slot, nodes int) {
			idx.opts.logger.LogTree(ctx, verbose, slot, nodes)
		},
	}
	if err := idx.forest.Build(ctx, opts); err != nil {
		return translateError(err)
	}

	if idx.onDisk {
		if err := idx.finalizeOnDiskLocked(); err != nil {
			_ = idx.forest.Reset()
			return err
		}
	}
	return nil
}

// Unbuild drops every tree and keeps the items, so more items can be added
// and the index rebuilt. It is a no-op on an unbuilt index.
func (idx *Index) Unbuild() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return ErrClosed
	}
	if idx.loaded {
		return ErrReadOnly
	}
	if !idx.forest.Built() {
		return nil
	}
	if err := idx.forest.Reset(); err != nil {
		return translateError(err)
	}
	idx.opts.logger.LogUnbuild(context.Background(), idx.forest.Items())

	if idx.onDisk {
		return idx.writeOnDiskHeaderLocked()
	}
	return nil
}

// ItemVector returns a copy of the vector stored under id.
func (idx *Index) ItemVector(id int) ([]float32, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := idx.checkRead(id); err != nil {
		return nil, err
	}
	v, err := idx.forest.Item(id, make([]float32, 0, idx.dim))
	if err != nil {
		return nil, translateError(err)
	}
	return v, nil
}

// Distance returns the metric distance between items i and j, in the same
// units as search results.
func (idx *Index) Distance(i, j int) (float32, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := idx.checkRead(i); err != nil {
		return 0, err
	}
	if err := idx.checkRead(j); err != nil {
		return 0, err
	}
	d, err := idx.forest.Distance(i, j)
	if err != nil {
		return 0, translateError(err)
	}
	return idx.metric.Normalize(d), nil
}

// Close releases the node store. Further calls return ErrClosed.
// Close is idempotent.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return nil
	}
	idx.closed = true
	return translateError(idx.forest.Store().Close())
}
