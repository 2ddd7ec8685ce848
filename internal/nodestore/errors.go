package nodestore

import "errors"

var (
	// ErrAllocation is returned when the store cannot grow.
	ErrAllocation = errors.New("nodestore: allocation failed")
	// ErrReadOnly is returned when writing to a mapped store.
	ErrReadOnly = errors.New("nodestore: read-only")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("nodestore: closed")
	// ErrOutOfRange is returned for node ids outside the store.
	ErrOutOfRange = errors.New("nodestore: node id out of range")
)
