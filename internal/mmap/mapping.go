package mmap

import (
	"io"
	"os"
	"sync/atomic"
)

// Mapping is a read-only shared mapping of a whole file.
//
// Slices handed out by Bytes and Slice alias the mapping and must not be
// used after Close.
type Mapping struct {
	data   []byte
	unmap  func([]byte) error
	closed atomic.Bool
}

// Open maps the file at path read-only. Empty files yield an empty mapping.
func Open(path string, opts ...OpenOption) (*Mapping, error) {
	var cfg openConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	n := st.Size()
	switch {
	case n == 0:
		return &Mapping{}, nil
	case int64(int(n)) != n:
		return nil, ErrInvalidSize
	}

	data, unmap, err := osMap(f, int(n), cfg.prefault)
	if err != nil {
		return nil, err
	}
	if cfg.prefault && !populateOnMap {
		_ = osAdvise(data, AdviceWillNeed)
	}
	if cfg.advice != AdviceNormal {
		_ = osAdvise(data, cfg.advice)
	}
	return &Mapping{data: data, unmap: unmap}, nil
}

// Size returns the mapped length in bytes. It stays valid after Close.
func (m *Mapping) Size() int { return len(m.data) }

// Bytes returns the whole mapping, or nil once closed.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Slice returns the n bytes starting at off.
func (m *Mapping) Slice(off, n int) ([]byte, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if off < 0 || n < 0 || off > len(m.data)-n {
		return nil, ErrOutOfBounds
	}
	return m.data[off : off+n : off+n], nil
}

// Advise applies a paging hint to the whole mapping.
func (m *Mapping) Advise(a Advice) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return osAdvise(m.data, a)
}

// ReadAt copies mapped bytes into p. It implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	switch {
	case m.closed.Load():
		return 0, ErrClosed
	case off < 0:
		return 0, ErrInvalidOffset
	case off >= int64(len(m.data)):
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps the file. Further calls are no-ops.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) || m.data == nil {
		return nil
	}
	return m.unmap(m.data)
}
