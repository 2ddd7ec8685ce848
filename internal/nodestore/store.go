package nodestore

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/vecforest/internal/mmap"
	"github.com/hupe1980/vecforest/resource"
)

const minCapacity = 16

// Store is a growable array of fixed-stride node records.
type Store struct {
	layout Layout

	mu      sync.RWMutex
	backing backing
	data    []byte
	cap     int

	n      atomic.Int64
	closed atomic.Bool
}

// NewHeap creates an empty store on the Go heap. Growth is charged to rc,
// which may be nil.
func NewHeap(layout Layout, rc *resource.Controller) *Store {
	return &Store{layout: layout, backing: &heapBacking{rc: rc}}
}

// CreateFile creates a store that writes through to the file at path.
// The first reserved bytes of the file are left for the caller (see Reserved).
func CreateFile(path string, layout Layout, reserved int) (*Store, error) {
	f, err := mmap.CreateFile(path, reserved+minCapacity*layout.Stride)
	if err != nil {
		return nil, fmt.Errorf("nodestore: create %s: %w", path, err)
	}
	s := &Store{layout: layout, backing: &fileBacking{f: f, reserved: reserved}}
	s.refresh()
	return s, nil
}

// OpenMapped wraps a read-only mapping holding n records starting at offset.
// The store takes ownership of m.
func OpenMapped(m *mmap.Mapping, layout Layout, offset, n int) (*Store, error) {
	if offset < 0 || n < 0 {
		return nil, ErrOutOfRange
	}
	data, err := m.Slice(offset, n*layout.Stride)
	if err != nil {
		return nil, fmt.Errorf("nodestore: map %d nodes at %d: %w", n, offset, err)
	}
	s := &Store{layout: layout, backing: &mappedBacking{m: m, data: data}}
	s.refresh()
	s.n.Store(int64(n))
	return s, nil
}

func (s *Store) refresh() {
	s.data = s.backing.bytes()
	s.cap = len(s.data) / s.layout.Stride
}

// Layout returns the record geometry.
func (s *Store) Layout() Layout { return s.layout }

// Kind returns the backing kind.
func (s *Store) Kind() Kind { return s.backing.kind() }

// Len returns the number of allocated records.
func (s *Store) Len() int { return int(s.n.Load()) }

// Cap returns the number of records the store can hold without growing.
func (s *Store) Cap() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cap
}

// growLocked makes room for at least want records. Caller holds s.mu.
func (s *Store) growLocked(want int) error {
	if want <= s.cap {
		return nil
	}
	if s.backing.kind() == KindMapped {
		return ErrReadOnly
	}
	newCap := max(want, 2*s.cap, minCapacity)
	if err := s.backing.resize(newCap * s.layout.Stride); err != nil {
		s.refresh()
		return fmt.Errorf("%w: grow to %d nodes: %w", ErrAllocation, newCap, err)
	}
	s.refresh()
	return nil
}

// EnsureItem makes id addressable and extends the cursor past it. Records
// between the old cursor and id stay zeroed (TagEmpty).
func (s *Store) EnsureItem(id int) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if id < 0 {
		return ErrOutOfRange
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.growLocked(id + 1); err != nil {
		return err
	}
	if int64(id) >= s.n.Load() {
		s.n.Store(int64(id) + 1)
	}
	return nil
}

// Alloc reserves a new zeroed record and returns its id.
func (s *Store) Alloc() (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	if s.backing.kind() == KindMapped {
		return 0, ErrReadOnly
	}
	id := int(s.n.Add(1) - 1)

	s.mu.RLock()
	fits := id < s.cap
	s.mu.RUnlock()

	if !fits {
		s.mu.Lock()
		err := s.growLocked(id + 1)
		s.mu.Unlock()
		if err != nil {
			return 0, err
		}
	}

	s.mu.RLock()
	s.nodeLocked(id).Reset()
	s.mu.RUnlock()
	return id, nil
}

func (s *Store) nodeLocked(id int) Node {
	off := id * s.layout.Stride
	return Node(s.data[off : off+s.layout.Stride : off+s.layout.Stride])
}

// Update runs fn on record id under the read lock.
func (s *Store) Update(id int, fn func(Node)) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.backing.kind() == KindMapped {
		return ErrReadOnly
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || id >= s.cap || int64(id) >= s.n.Load() {
		return ErrOutOfRange
	}
	fn(s.nodeLocked(id))
	return nil
}

// Nodes is a read view over the store, valid for the duration of View.
type Nodes struct {
	data   []byte
	layout Layout
	n      int
}

// Node returns record id. The caller validates id against Len.
func (v Nodes) Node(id int) Node {
	off := id * v.layout.Stride
	return Node(v.data[off : off+v.layout.Stride : off+v.layout.Stride])
}

// Vector returns the vector of record id.
func (v Nodes) Vector(id int) []float32 {
	return v.Node(id).Vector(v.layout.Dimension)
}

// Len returns the number of records visible to the view.
func (v Nodes) Len() int { return v.n }

// Layout returns the record geometry.
func (v Nodes) Layout() Layout { return v.layout }

// View runs fn with a consistent view of the allocated records.
func (s *Store) View(fn func(Nodes) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := min(int(s.n.Load()), s.cap)
	return fn(Nodes{data: s.data, layout: s.layout, n: n})
}

// Truncate drops every record at or above n and zeroes the freed space.
// Capacity is kept; Trim releases it.
func (s *Store) Truncate(n int) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.backing.kind() == KindMapped {
		return ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := min(int(s.n.Load()), s.cap)
	if n < 0 || n > cur {
		return ErrOutOfRange
	}
	clear(s.data[n*s.layout.Stride : cur*s.layout.Stride])
	s.n.Store(int64(n))
	return nil
}

// Trim shrinks the backing to exactly the allocated records.
func (s *Store) Trim() error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.backing.kind() == KindMapped {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int(s.n.Load())
	if n == s.cap || n == 0 {
		return nil
	}
	if err := s.backing.resize(n * s.layout.Stride); err != nil {
		s.refresh()
		return fmt.Errorf("nodestore: trim to %d nodes: %w", n, err)
	}
	s.refresh()
	return nil
}

// Bytes returns the allocated records. The caller must not run Alloc,
// EnsureItem or Trim while holding the slice.
func (s *Store) Bytes() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[:min(int(s.n.Load()), s.cap)*s.layout.Stride]
}

// Reserved returns the caller-owned prefix of a file store, or nil.
func (s *Store) Reserved() []byte {
	fb, ok := s.backing.(*fileBacking)
	if !ok {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fb.f.Bytes()[:fb.reserved]
}

// Path returns the file behind a file store, or "".
func (s *Store) Path() string {
	if fb, ok := s.backing.(*fileBacking); ok {
		return fb.f.Name()
	}
	return ""
}

// Sync flushes a file store to disk.
func (s *Store) Sync() error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backing.sync()
}

// Close releases the backing. It is idempotent.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.backing.close()
	s.data = nil
	s.cap = 0
	if err != nil && !errors.Is(err, mmap.ErrClosed) {
		return fmt.Errorf("nodestore: close: %w", err)
	}
	return nil
}
