package forest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecforest/internal/nodestore"
	"github.com/hupe1980/vecforest/internal/space"
	"github.com/hupe1980/vecforest/resource"
)

const (
	// splitAttempts is how often a two-means split is retried when unbalanced.
	splitAttempts = 3
	// goodImbalance ends the retries.
	goodImbalance = 0.95
	// maxImbalance triggers the fallback split.
	maxImbalance = 0.99
)

// BuildOptions configures Build.
type BuildOptions struct {
	// Trees is the number of trees. Negative grows trees until the store
	// holds twice as many nodes as items.
	Trees int
	// Workers is the number of concurrent tree builders; <= 0 uses GOMAXPROCS.
	Workers int
	// Seed makes the build reproducible. Tree slot s draws from PCG(Seed, s).
	Seed uint64
	// Resource caps concurrent builders across indexes. May be nil.
	Resource *resource.Controller
	// OnTree is called after each tree with its slot and node count.
	OnTree func(slot, nodes int)
}

// Build grows the trees. On failure every tree node is dropped again.
func (f *Forest) Build(ctx context.Context, opts BuildOptions) (err error) {
	if f.Built() {
		return ErrBuilt
	}

	var items []int32
	if err := f.store.View(func(nodes nodestore.Nodes) error {
		f.space.Preprocess(nodes)
		for i := range nodes.Len() {
			if nodes.Node(i).Tag() == nodestore.TagItem {
				items = append(items, int32(i)) //nolint:gosec // ids fit int32
			}
		}
		return nil
	}); err != nil {
		return err
	}
	if len(items) == 0 {
		return ErrNoItems
	}

	defer func() {
		if err != nil {
			f.roots = nil
			_ = f.store.Truncate(f.items)
		}
	}()

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if opts.Trees > 0 {
		workers = min(workers, opts.Trees)
	}

	var (
		next  atomic.Int64
		mu    sync.Mutex
		roots = map[int]int{}
	)

	claim := func() (int, bool) {
		if opts.Trees >= 0 {
			slot := int(next.Add(1) - 1)
			return slot, slot < opts.Trees
		}
		if next.Load() > 0 && f.store.Len() >= 2*f.items {
			return 0, false
		}
		return int(next.Add(1) - 1), true
	}

	g, gctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			for {
				slot, ok := claim()
				if !ok {
					return nil
				}
				if err := opts.Resource.AcquireWorker(gctx); err != nil {
					return err
				}
				before := f.store.Len()
				root, err := f.growTree(gctx, slot, opts.Seed, items)
				opts.Resource.ReleaseWorker()
				if err != nil {
					return fmt.Errorf("forest: tree %d: %w", slot, err)
				}

				mu.Lock()
				roots[slot] = root
				mu.Unlock()

				if opts.OnTree != nil {
					opts.OnTree(slot, f.store.Len()-before)
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slots := make([]int, 0, len(roots))
	for s := range roots {
		slots = append(slots, s)
	}
	slices.Sort(slots)

	tail := make([]int, 0, len(slots))
	for _, s := range slots {
		id, err := f.copyNode(roots[s])
		if err != nil {
			return err
		}
		tail = append(tail, id)
	}
	f.roots = tail
	return nil
}

func (f *Forest) growTree(ctx context.Context, slot int, seed uint64, items []int32) (int, error) {
	rng := rand.New(rand.NewPCG(seed, uint64(slot))) //nolint:gosec // reproducible splits, not security
	b := &treeBuilder{
		f:      f,
		ctx:    ctx,
		rng:    rng,
		layout: f.store.Layout(),
	}
	return b.make(slices.Clone(items), true)
}

func (f *Forest) copyNode(src int) (int, error) {
	buf := make([]byte, f.store.Layout().Stride)
	if err := f.store.View(func(nodes nodestore.Nodes) error {
		copy(buf, nodes.Node(src))
		return nil
	}); err != nil {
		return 0, err
	}
	id, err := f.store.Alloc()
	if err != nil {
		return 0, err
	}
	return id, f.store.Update(id, func(n nodestore.Node) { copy(n, buf) })
}

type treeBuilder struct {
	f      *Forest
	ctx    context.Context
	rng    *rand.Rand
	layout nodestore.Layout
}

type split struct {
	normal      space.Point
	left, right []int32
	fallback    bool
}

// make builds the subtree over indices and returns its node id. A single
// item below the root is referenced directly.
func (b *treeBuilder) make(indices []int32, isRoot bool) (int, error) {
	if err := b.ctx.Err(); err != nil {
		return 0, err
	}

	if len(indices) == 1 && !isRoot {
		return int(indices[0]), nil
	}

	if len(indices) <= b.layout.LeafCapacity {
		id, err := b.f.store.Alloc()
		if err != nil {
			return 0, err
		}
		return id, b.f.store.Update(id, func(n nodestore.Node) { n.SetItems(indices) })
	}

	s, err := b.split(indices)
	if err != nil {
		return 0, err
	}

	id, err := b.f.store.Alloc()
	if err != nil {
		return 0, err
	}

	left, err := b.make(s.left, false)
	if err != nil {
		return 0, err
	}
	right, err := b.make(s.right, false)
	if err != nil {
		return 0, err
	}

	return id, b.f.store.Update(id, func(n nodestore.Node) {
		if s.fallback {
			n.SetTag(nodestore.TagFallback)
		} else {
			n.SetTag(nodestore.TagSplit)
			copy(n.Vector(b.layout.Dimension), s.normal.V)
			n.SetAux(s.normal.Aux)
		}
		n.SetCount(len(indices))
		n.SetChildren(left, right)
	})
}

// split partitions indices with the best of up to three two-means
// hyperplanes, or halves them by id when no hyperplane separates them.
func (b *treeBuilder) split(indices []int32) (split, error) {
	sp := b.f.space
	dim := b.layout.Dimension

	best := split{normal: space.Point{V: make([]float32, dim)}}
	bestImbalance := float32(2)

	err := b.f.store.View(func(nodes nodestore.Nodes) error {
		points := make([]space.Point, len(indices))
		for i, id := range indices {
			n := nodes.Node(int(id))
			points[i] = space.Point{V: n.Vector(dim), Aux: n.Aux()}
		}

		candidate := space.Point{V: make([]float32, dim)}
		var left, right []int32
		for range splitAttempts {
			left, right = left[:0], right[:0]
			sp.CreateSplit(points, b.rng, &candidate)
			for i, p := range points {
				if space.Side(sp.Margin(candidate, p), b.rng) == 1 {
					right = append(right, indices[i])
				} else {
					left = append(left, indices[i])
				}
			}

			imb := imbalance(len(left), len(right))
			if imb < bestImbalance {
				bestImbalance = imb
				copy(best.normal.V, candidate.V)
				best.normal.Aux = candidate.Aux
				best.left = append(best.left[:0], left...)
				best.right = append(best.right[:0], right...)
			}
			if imb < goodImbalance {
				break
			}
		}
		return nil
	})
	if err != nil {
		return split{}, err
	}

	if bestImbalance > maxImbalance {
		sorted := slices.Clone(indices)
		slices.Sort(sorted)
		half := len(sorted) / 2
		return split{
			normal:   space.Point{V: make([]float32, dim)},
			left:     sorted[:half],
			right:    sorted[half:],
			fallback: true,
		}, nil
	}
	return best, nil
}

func imbalance(left, right int) float32 {
	ls := float32(left) / (float32(left+right) + 1e-9)
	return max(ls, 1-ls)
}
