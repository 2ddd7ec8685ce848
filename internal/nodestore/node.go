package nodestore

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"
)

// Tag identifies the kind of a node record.
type Tag uint32

const (
	// TagEmpty marks an unused item id.
	TagEmpty Tag = iota
	// TagItem is a leaf holding one item vector.
	TagItem
	// TagList is a leaf holding a list of item ids.
	TagList
	// TagSplit is a hyperplane split.
	TagSplit
	// TagFallback is a split that halved its items by id; both sides rank equally.
	TagFallback
)

func (t Tag) String() string {
	switch t {
	case TagEmpty:
		return "empty"
	case TagItem:
		return "item"
	case TagList:
		return "list"
	case TagSplit:
		return "split"
	case TagFallback:
		return "fallback"
	default:
		return fmt.Sprintf("tag(%d)", uint32(t))
	}
}

const (
	offTag     = 0
	offCount   = 4
	offLeft    = 8
	offRight   = 12
	offAux     = 16
	offPayload = 24

	// HeaderBytes is the fixed part of every node record.
	HeaderBytes = offPayload
)

// DefaultLeafCapacity is the largest item list stored in a single leaf.
const DefaultLeafCapacity = 32

// Layout describes the record geometry shared by every node of an index.
type Layout struct {
	Dimension    int
	LeafCapacity int
	Slots        int
	Stride       int
}

// NewLayout computes the layout for vectors of dim values.
// A leafCapacity of 0 selects DefaultLeafCapacity.
func NewLayout(dim, leafCapacity int) (Layout, error) {
	if dim <= 0 {
		return Layout{}, fmt.Errorf("nodestore: invalid dimension %d", dim)
	}
	if leafCapacity == 0 {
		leafCapacity = DefaultLeafCapacity
	}
	if leafCapacity < 2 {
		return Layout{}, fmt.Errorf("nodestore: leaf capacity %d below 2", leafCapacity)
	}
	slots := max(dim, leafCapacity)
	if slots > (math.MaxInt32-HeaderBytes)/4 {
		return Layout{}, fmt.Errorf("nodestore: %d payload slots too large", slots)
	}
	return Layout{
		Dimension:    dim,
		LeafCapacity: leafCapacity,
		Slots:        slots,
		Stride:       HeaderBytes + 4*slots,
	}, nil
}

// Node is a view of one record. It is valid only while the store lock that
// produced it is held.
type Node []byte

// Tag returns the record kind.
func (n Node) Tag() Tag { return Tag(binary.LittleEndian.Uint32(n[offTag:])) }

// SetTag sets the record kind.
func (n Node) SetTag(t Tag) { binary.LittleEndian.PutUint32(n[offTag:], uint32(t)) }

// Count returns the number of items below the node.
func (n Node) Count() int { return int(int32(binary.LittleEndian.Uint32(n[offCount:]))) }

// SetCount sets the number of items below the node.
func (n Node) SetCount(c int) { binary.LittleEndian.PutUint32(n[offCount:], uint32(int32(c))) }

// Left returns the left child id.
func (n Node) Left() int { return int(int32(binary.LittleEndian.Uint32(n[offLeft:]))) }

// Right returns the right child id.
func (n Node) Right() int { return int(int32(binary.LittleEndian.Uint32(n[offRight:]))) }

// Child returns the left (side 0) or right (side 1) child id.
func (n Node) Child(side int) int {
	if side == 0 {
		return n.Left()
	}
	return n.Right()
}

// SetChildren sets both child ids.
func (n Node) SetChildren(left, right int) {
	binary.LittleEndian.PutUint32(n[offLeft:], uint32(int32(left)))
	binary.LittleEndian.PutUint32(n[offRight:], uint32(int32(right)))
}

// Aux returns the metric scalar of the node.
func (n Node) Aux() float32 { return math.Float32frombits(binary.LittleEndian.Uint32(n[offAux:])) }

// SetAux sets the metric scalar of the node.
func (n Node) SetAux(v float32) { binary.LittleEndian.PutUint32(n[offAux:], math.Float32bits(v)) }

// Vector returns the first dim payload values as float32. The slice aliases
// the record.
func (n Node) Vector(dim int) []float32 {
	return unsafe.Slice((*float32)(unsafe.Pointer(&n[offPayload])), dim) //nolint:gosec // records are 4-byte aligned
}

// Items returns the item ids of a list leaf. The slice aliases the record.
func (n Node) Items() []int32 {
	return unsafe.Slice((*int32)(unsafe.Pointer(&n[offPayload])), n.Count()) //nolint:gosec // records are 4-byte aligned
}

// SetItems writes a list leaf.
func (n Node) SetItems(ids []int32) {
	n.SetTag(TagList)
	n.SetCount(len(ids))
	dst := unsafe.Slice((*int32)(unsafe.Pointer(&n[offPayload])), len(ids)) //nolint:gosec // records are 4-byte aligned
	copy(dst, ids)
}

// Reset zeroes the record.
func (n Node) Reset() { clear(n) }
