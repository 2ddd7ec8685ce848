package vecforest

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/vecforest/internal/forest"
	"github.com/hupe1980/vecforest/internal/space"
)

// Result is one neighbor returned by a search.
type Result struct {
	// ID is the item id.
	ID int
	// Distance is the metric distance to the query: angular and Euclidean
	// distances are square-rooted, Manhattan is the L1 distance and the dot
	// product metric reports the inner product (larger is closer). It is
	// zero unless WithDistances was passed.
	Distance float32
}

type searchOptions struct {
	budget      int
	distances   bool
	excludeSelf bool
}

// SearchOption configures a single search.
type SearchOption func(*searchOptions)

// WithBudget sets how many candidate ids the traversal gathers before ranking.
// An id reached through several trees counts once per tree. Larger budgets
// raise recall and latency. The default (n <= 0) is k times the number of
// trees. A budget below k may return fewer than k results.
func WithBudget(n int) SearchOption {
	return func(o *searchOptions) {
		o.budget = n
	}
}

// WithDistances fills Result.Distance.
func WithDistances() SearchOption {
	return func(o *searchOptions) {
		o.distances = true
	}
}

// ExcludeSelf drops the query item from SearchByItem results.
func ExcludeSelf() SearchOption {
	return func(o *searchOptions) {
		o.excludeSelf = true
	}
}

// SearchByItem returns up to k approximate nearest neighbors of item id,
// closest first. Unless ExcludeSelf is passed the item itself is usually the
// first result.
func (idx *Index) SearchByItem(ctx context.Context, id, k int, optFns ...SearchOption) ([]Result, error) {
	o := applySearchOptions(optFns)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := idx.checkRead(id); err != nil {
		return nil, err
	}
	v, err := idx.forest.Item(id, make([]float32, 0, idx.dim))
	if err != nil {
		return nil, translateError(err)
	}

	exclude := -1
	if o.excludeSelf {
		exclude = id
	}
	return idx.searchLocked(ctx, idx.forest.Query(v), k, exclude, o)
}

// SearchByVector returns up to k approximate nearest neighbors of v,
// closest first.
func (idx *Index) SearchByVector(ctx context.Context, v []float32, k int, optFns ...SearchOption) ([]Result, error) {
	o := applySearchOptions(optFns)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, ErrClosed
	}
	if err := idx.checkVector(v); err != nil {
		return nil, err
	}
	return idx.searchLocked(ctx, idx.forest.Query(v), k, -1, o)
}

func (idx *Index) searchLocked(ctx context.Context, p space.Point, k, exclude int, o searchOptions) (results []Result, err error) {
	start := time.Now()
	var stats forest.Stats
	defer func() {
		idx.opts.metricsCollector.RecordSearch(k, stats.Candidates, time.Since(start), err)
		idx.opts.logger.LogSearch(ctx, k, len(results), stats.Visited, err)
	}()

	if k <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidK, k)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	found, stats, err := idx.forest.Search(forest.Query{
		Point:   p,
		K:       k,
		Budget:  o.budget,
		Exclude: exclude,
	})
	if err != nil {
		return nil, translateError(err)
	}

	results = make([]Result, len(found))
	for i, r := range found {
		results[i].ID = r.ID
		if o.distances {
			results[i].Distance = idx.metric.Normalize(r.Distance)
		}
	}
	return results, nil
}

func applySearchOptions(optFns []SearchOption) searchOptions {
	var o searchOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
