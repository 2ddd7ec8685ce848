package vecforest

import (
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"time"

	"github.com/hupe1980/vecforest/distance"
	"github.com/hupe1980/vecforest/internal/conv"
	"github.com/hupe1980/vecforest/internal/forest"
	"github.com/hupe1980/vecforest/internal/format"
	"github.com/hupe1980/vecforest/internal/fs"
	"github.com/hupe1980/vecforest/internal/mmap"
	"github.com/hupe1980/vecforest/internal/nodestore"
	"github.com/hupe1980/vecforest/resource"
)

// headerLocked describes the current node store.
func (idx *Index) headerLocked(flags uint32) (format.FileHeader, error) {
	items, err := conv.IntToUint64(idx.forest.Items())
	if err != nil {
		return format.FileHeader{}, err
	}
	nodes, err := conv.IntToUint64(idx.forest.Store().Len())
	if err != nil {
		return format.FileHeader{}, err
	}
	trees, err := conv.IntToUint32(idx.forest.Trees())
	if err != nil {
		return format.FileHeader{}, err
	}

	h := format.NewHeader()
	h.Metric = uint32(idx.metric)
	h.Dimension = uint32(idx.layout.Dimension)       //nolint:gosec // checked in New
	h.LeafCapacity = uint32(idx.layout.LeafCapacity) //nolint:gosec // checked in New
	h.Stride = uint32(idx.layout.Stride)             //nolint:gosec // checked in NewLayout
	h.Items = items
	h.Nodes = nodes
	h.Trees = trees
	h.Flags = flags
	if idx.forest.Built() {
		h.Flags |= format.FlagBuilt
	}
	return h, nil
}

// snapshot streams a header and the node array through the IO limiter.
type snapshot struct {
	ctx    context.Context
	header format.FileHeader
	nodes  []byte
	rc     *resource.Controller
}

func (s *snapshot) WriteTo(w io.Writer) (int64, error) {
	rw := resource.NewRateLimitedWriter(s.ctx, w, s.rc)
	n, err := s.header.WriteTo(rw)
	if err != nil {
		return n, err
	}
	m, err := rw.Write(s.nodes)
	return n + int64(m), err
}

// Save writes the built index to path. The file is written next to path
// and renamed into place, so a failed save never leaves a partial file.
//
// An in-memory index is then re-opened from the written file as a
// read-only mapping (prefault warms the page cache), which releases its heap
// copy. An on-disk index saved to its own path only finalizes the header.
func (idx *Index) Save(ctx context.Context, path string, prefault bool) (err error) {
	start := time.Now()
	var written int64

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return ErrClosed
	}
	defer func() {
		idx.opts.metricsCollector.RecordSave(written, time.Since(start), err)
		idx.opts.logger.LogSave(ctx, path, written, err)
	}()

	if !idx.forest.Built() {
		return ErrNotBuilt
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if idx.onDisk && samePath(path, idx.path) {
		if err := idx.finalizeOnDiskLocked(); err != nil {
			return err
		}
		written = int64(format.HeaderSize) + int64(len(idx.forest.Store().Bytes()))
		return nil
	}

	var flags uint32
	if idx.onDisk {
		flags = format.FlagOnDisk
	}
	h, err := idx.headerLocked(flags)
	if err != nil {
		return err
	}

	written, err = fs.WriteFileAtomic(idx.opts.fs, path, &snapshot{
		ctx:    ctx,
		header: h,
		nodes:  idx.forest.Store().Bytes(),
		rc:     idx.opts.resource,
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	if idx.onDisk {
		return nil
	}
	if _, err := idx.openLocked(path, prefault); err != nil {
		return fmt.Errorf("reopen %s: %w", path, err)
	}
	return nil
}

// Load replaces the contents of the index with the file at path, mapped
// read-only without copying. The file must have been written for the same
// dimension, metric and leaf capacity; otherwise *ErrHeaderMismatch is
// returned. On failure the index keeps its previous state.
func (idx *Index) Load(ctx context.Context, path string, prefault bool) (err error) {
	start := time.Now()
	var size int64

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return ErrClosed
	}
	defer func() {
		idx.opts.metricsCollector.RecordLoad(size, time.Since(start), err)
		idx.opts.logger.LogLoad(ctx, path, idx.forest.Store().Len(), err)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	size, err = idx.openLocked(path, prefault)
	return err
}

// openLocked maps path and swaps it in as the node store.
func (idx *Index) openLocked(path string, prefault bool) (int64, error) {
	// Tree descents touch nodes in no particular order.
	opts := []mmap.OpenOption{mmap.WithAdvice(mmap.AdviceRandom)}
	if prefault {
		opts = append(opts, mmap.WithPrefault())
	}
	m, err := mmap.Open(path, opts...)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", path, err)
	}

	f, err := idx.attach(path, m)
	if err != nil {
		_ = m.Close()
		return 0, err
	}

	old := idx.forest.Store()
	idx.forest = f
	idx.loaded = true
	idx.onDisk = false
	idx.path = path

	if err := old.Close(); err != nil {
		idx.opts.logger.Warn("close previous node store", "error", err)
	}
	return int64(m.Size()), nil
}

// attach validates the header of m and wraps its node array.
func (idx *Index) attach(path string, m *mmap.Mapping) (*forest.Forest, error) {
	buf := m.Bytes()
	if len(buf) < format.HeaderSize {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupted, path, format.ErrShortHeader)
	}

	h, err := format.Decode(buf)
	if err != nil {
		return nil, translateError(err)
	}
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupted, path, err)
	}
	if err := idx.checkHeader(path, &h); err != nil {
		return nil, err
	}
	if err := h.VerifyChecksum(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupted, path, err)
	}

	if !h.HasFlag(format.FlagBuilt) || h.Trees == 0 {
		return nil, fmt.Errorf("%w: %s holds no trees", ErrCorrupted, path)
	}
	if h.Items+uint64(h.Trees) > h.Nodes {
		return nil, fmt.Errorf("%w: %s: %d items and %d trees exceed %d nodes", ErrCorrupted, path, h.Items, h.Trees, h.Nodes)
	}
	if h.TotalSize() < 0 || h.TotalSize() > int64(len(buf)) {
		return nil, fmt.Errorf("%w: %s: %d bytes, header describes %d", ErrCorrupted, path, len(buf), h.TotalSize())
	}

	nodes, err := conv.Uint64ToInt(h.Nodes)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupted, path, err)
	}
	items, err := conv.Uint64ToInt(h.Items)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupted, path, err)
	}
	trees, err := conv.Uint32ToInt(h.Trees)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupted, path, err)
	}

	store, err := nodestore.OpenMapped(m, idx.layout, format.HeaderSize, nodes)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupted, path, err)
	}
	f, err := forest.Open(idx.space, store, items, trees)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupted, path, err)
	}
	return f, nil
}

func (idx *Index) checkHeader(path string, h *format.FileHeader) error {
	mismatch := func(field string, expected, actual any) error {
		return &ErrHeaderMismatch{
			Path:     path,
			Field:    field,
			Expected: fmt.Sprint(expected),
			Actual:   fmt.Sprint(actual),
		}
	}

	if h.Dimension != uint32(idx.dim) { //nolint:gosec // checked in New
		return mismatch("dimension", idx.dim, h.Dimension)
	}
	if h.Metric != uint32(idx.metric) {
		actual := fmt.Sprint(h.Metric)
		if h.Metric <= math.MaxUint8 {
			actual = distance.Metric(h.Metric).String()
		}
		return mismatch("metric", idx.metric, actual)
	}
	if h.LeafCapacity != uint32(idx.layout.LeafCapacity) { //nolint:gosec // checked in New
		return mismatch("leaf capacity", idx.layout.LeafCapacity, h.LeafCapacity)
	}
	if h.Stride != uint32(idx.layout.Stride) { //nolint:gosec // checked in NewLayout
		return mismatch("stride", idx.layout.Stride, h.Stride)
	}
	return nil
}

// Unload releases the node store and returns the index to an empty,
// unbuilt in-memory state. An on-disk index file stays on disk.
func (idx *Index) Unload() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return ErrClosed
	}

	old := idx.forest.Store()
	idx.forest = forest.New(idx.space, nodestore.NewHeap(idx.layout, idx.opts.resource))
	idx.loaded = false
	idx.onDisk = false
	idx.path = ""

	idx.opts.logger.DebugContext(context.Background(), "index unloaded")
	return translateError(old.Close())
}

// OnDiskBuild binds an empty index to a new file at path. Items and trees
// are then written straight to the file instead of the heap, so the index
// may exceed available memory. Build finalizes the file, which can later be
// opened with Load.
func (idx *Index) OnDiskBuild(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	switch {
	case idx.closed:
		return ErrClosed
	case idx.loaded:
		return ErrReadOnly
	case idx.forest.Built():
		return ErrAlreadyBuilt
	case idx.forest.Items() > 0:
		return ErrNotEmpty
	}

	store, err := nodestore.CreateFile(path, idx.layout, format.HeaderSize)
	if err != nil {
		return translateError(err)
	}

	old := idx.forest.Store()
	idx.forest = forest.New(idx.space, store)
	idx.onDisk = true
	idx.path = path

	if err := idx.writeOnDiskHeaderLocked(); err != nil {
		idx.forest = forest.New(idx.space, old)
		idx.onDisk = false
		idx.path = ""
		_ = store.Close()
		return err
	}

	idx.opts.logger.InfoContext(context.Background(), "on-disk build started", "path", path)
	return translateError(old.Close())
}

// writeOnDiskHeaderLocked rewrites the header of an on-disk index and syncs
// the mapping.
func (idx *Index) writeOnDiskHeaderLocked() error {
	store := idx.forest.Store()
	h, err := idx.headerLocked(format.FlagOnDisk)
	if err != nil {
		return err
	}
	if err := h.Encode(store.Reserved()); err != nil {
		return translateError(err)
	}
	return translateError(store.Sync())
}

// finalizeOnDiskLocked shrinks an on-disk index file to its nodes and writes
// the final header.
func (idx *Index) finalizeOnDiskLocked() error {
	if err := idx.forest.Store().Trim(); err != nil {
		return translateError(err)
	}
	return idx.writeOnDiskHeaderLocked()
}

func samePath(a, b string) bool {
	aa, err := filepath.Abs(a)
	if err != nil {
		return false
	}
	bb, err := filepath.Abs(b)
	if err != nil {
		return false
	}
	return aa == bb
}
