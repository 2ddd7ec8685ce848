package forest

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecforest/internal/nodestore"
	"github.com/hupe1980/vecforest/internal/queue"
	"github.com/hupe1980/vecforest/internal/space"
)

// Result is one ranked neighbor with its raw distance.
type Result struct {
	ID       int
	Distance float32
}

// Query describes one search.
type Query struct {
	// Point is the query vector with its metric aux value.
	Point space.Point
	// K is the number of neighbors to return.
	K int
	// Budget is the number of candidate ids to collect before ranking,
	// counting ids found in several trees once per tree. <= 0 means K * Trees.
	Budget int
	// Exclude drops one item id from the results; negative disables it.
	Exclude int
}

// Stats describes the work of one search.
type Stats struct {
	// Visited counts popped frontier nodes.
	Visited int
	// Collected counts candidate ids including duplicates.
	Collected int
	// Candidates counts distinct candidate ids.
	Candidates int
}

// Search runs a best-first traversal over every tree and ranks the collected
// candidates by exact distance. Fewer than K results are returned when the
// budget or the forest yields fewer candidates.
func (f *Forest) Search(q Query) ([]Result, Stats, error) {
	if !f.Built() {
		return nil, Stats{}, ErrNoTrees
	}

	budget := q.Budget
	if budget <= 0 {
		budget = q.K * len(f.roots)
	}

	var (
		results []Result
		stats   Stats
	)
	err := f.store.View(func(nodes nodestore.Nodes) error {
		candidates, err := f.collect(nodes, q.Point, budget, &stats)
		if err != nil {
			return err
		}
		if q.Exclude >= 0 {
			candidates.Remove(uint32(q.Exclude)) //nolint:gosec // checked non-negative
		}
		stats.Candidates = int(candidates.GetCardinality()) //nolint:gosec // bounded by item count

		dim := nodes.Layout().Dimension
		results = make([]Result, 0, stats.Candidates)
		it := candidates.Iterator()
		for it.HasNext() {
			id := int(it.Next())
			n := nodes.Node(id)
			d := f.space.Distance(q.Point, space.Point{V: n.Vector(dim), Aux: n.Aux()})
			results = append(results, Result{ID: id, Distance: d})
		}
		return nil
	})
	if err != nil {
		return nil, stats, err
	}

	slices.SortFunc(results, func(a, b Result) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(results) > q.K {
		results = results[:q.K]
	}
	return results, stats, nil
}

// collect pops frontier nodes best first until budget candidate ids are
// gathered. Node references are checked against the store so a damaged file
// fails with ErrCorruptNode.
func (f *Forest) collect(nodes nodestore.Nodes, q space.Point, budget int, stats *Stats) (*roaring.Bitmap, error) {
	layout := nodes.Layout()
	total := nodes.Len()
	// Item leaves are shared by every tree; other nodes belong to one.
	maxVisits := total + f.items*len(f.roots)
	candidates := roaring.New()

	frontier := queue.NewMax(2 * len(f.roots))
	inf := float32(math.Inf(1))
	for _, r := range f.roots {
		frontier.Push(int32(r), inf) //nolint:gosec // ids fit int32
	}

	for stats.Collected < budget {
		top, ok := frontier.Pop()
		if !ok {
			break
		}
		stats.Visited++
		if stats.Visited > maxVisits {
			return nil, fmt.Errorf("%w: cycle below the roots", ErrCorruptNode)
		}

		id := int(top.Node)
		n := nodes.Node(id)
		switch n.Tag() {
		case nodestore.TagItem:
			if id >= f.items {
				return nil, fmt.Errorf("%w: item leaf %d beyond %d items", ErrCorruptNode, id, f.items)
			}
			candidates.Add(uint32(id)) //nolint:gosec // ids fit uint32
			stats.Collected++
		case nodestore.TagList:
			if c := n.Count(); c < 0 || c > layout.Slots {
				return nil, fmt.Errorf("%w: node %d lists %d items", ErrCorruptNode, id, c)
			}
			for _, item := range n.Items() {
				if item < 0 || int(item) >= f.items {
					return nil, fmt.Errorf("%w: node %d lists item %d", ErrCorruptNode, id, item)
				}
				candidates.Add(uint32(item)) //nolint:gosec // checked non-negative
			}
			stats.Collected += n.Count()
		case nodestore.TagSplit, nodestore.TagFallback:
			left, right := n.Left(), n.Right()
			if left < 0 || left >= total || right < 0 || right >= total {
				return nil, fmt.Errorf("%w: node %d has children %d and %d", ErrCorruptNode, id, left, right)
			}
			var margin float32
			if n.Tag() == nodestore.TagSplit {
				margin = f.space.Margin(space.Point{V: n.Vector(layout.Dimension), Aux: n.Aux()}, q)
			}
			frontier.Push(int32(right), space.PQDistance(top.Priority, margin, 1)) //nolint:gosec // checked against store length
			frontier.Push(int32(left), space.PQDistance(top.Priority, margin, 0))  //nolint:gosec // checked against store length
		default:
			return nil, fmt.Errorf("%w: node %d has tag %v", ErrCorruptNode, id, n.Tag())
		}
	}
	return candidates, nil
}
