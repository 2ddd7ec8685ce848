package nodestore

import (
	"fmt"

	"github.com/hupe1980/vecforest/internal/mmap"
	"github.com/hupe1980/vecforest/resource"
)

// Kind names the backing of a store.
type Kind uint8

const (
	KindHeap Kind = iota
	KindFile
	KindMapped
)

func (k Kind) String() string {
	switch k {
	case KindHeap:
		return "heap"
	case KindFile:
		return "file"
	case KindMapped:
		return "mapped"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

type backing interface {
	kind() Kind
	// bytes returns the node region; its length is a multiple of the stride.
	bytes() []byte
	// resize makes the node region exactly size bytes, preserving the prefix.
	resize(size int) error
	sync() error
	close() error
}

type heapBacking struct {
	data []byte
	rc   *resource.Controller
}

func (h *heapBacking) kind() Kind    { return KindHeap }
func (h *heapBacking) bytes() []byte { return h.data }
func (h *heapBacking) sync() error   { return nil }

func (h *heapBacking) resize(size int) error {
	delta := int64(size - len(h.data))
	if delta > 0 {
		if err := h.rc.AcquireMemory(delta); err != nil {
			return err
		}
	}
	data := make([]byte, size)
	copy(data, h.data)
	h.data = data
	if delta < 0 {
		h.rc.ReleaseMemory(-delta)
	}
	return nil
}

func (h *heapBacking) close() error {
	h.rc.ReleaseMemory(int64(len(h.data)))
	h.data = nil
	return nil
}

type fileBacking struct {
	f        *mmap.File
	reserved int
}

func (b *fileBacking) kind() Kind { return KindFile }

func (b *fileBacking) bytes() []byte {
	data := b.f.Bytes()
	if len(data) < b.reserved {
		return nil
	}
	return data[b.reserved:]
}

func (b *fileBacking) resize(size int) error {
	return b.f.Truncate(b.reserved + size)
}

func (b *fileBacking) sync() error  { return b.f.Sync() }
func (b *fileBacking) close() error { return b.f.Close() }

type mappedBacking struct {
	m    *mmap.Mapping
	data []byte
}

func (b *mappedBacking) kind() Kind            { return KindMapped }
func (b *mappedBacking) bytes() []byte         { return b.data }
func (b *mappedBacking) resize(size int) error { return ErrReadOnly }
func (b *mappedBacking) sync() error           { return nil }

func (b *mappedBacking) close() error {
	b.data = nil
	return b.m.Close()
}
