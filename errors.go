package vecforest

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecforest/internal/archive"
	"github.com/hupe1980/vecforest/internal/forest"
	"github.com/hupe1980/vecforest/internal/format"
	"github.com/hupe1980/vecforest/internal/nodestore"
	"github.com/hupe1980/vecforest/resource"
)

var (
	// ErrClosed is returned for any operation on a closed index.
	ErrClosed = errors.New("index closed")

	// ErrNotBuilt is returned when searching or saving an index without trees.
	ErrNotBuilt = errors.New("index not built")

	// ErrAlreadyBuilt is returned when adding items to or building a built index.
	ErrAlreadyBuilt = errors.New("index already built")

	// ErrReadOnly is returned when modifying a loaded (mapped) index.
	ErrReadOnly = errors.New("index is read-only")

	// ErrNotEmpty is returned by OnDiskBuild on an index that already holds items.
	ErrNotEmpty = errors.New("index not empty")

	// ErrEmptyIndex is returned when building an index without items.
	ErrEmptyIndex = errors.New("index has no items")

	// ErrNegativeItem is returned for negative item ids.
	ErrNegativeItem = errors.New("item id must be non-negative")

	// ErrItemOutOfRange is returned for reads of ids at or above the item count.
	ErrItemOutOfRange = errors.New("item id out of range")

	// ErrNoItem is returned for ids inside the item range that were never added.
	ErrNoItem = errors.New("no item with this id")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrInvalidTrees is returned when Build is asked for zero trees.
	ErrInvalidTrees = errors.New("tree count must be non-zero")

	// ErrInvalidMetric is returned for unknown metrics.
	ErrInvalidMetric = errors.New("invalid metric")

	// ErrInvalidLeafCapacity is returned for leaf capacities below 2.
	ErrInvalidLeafCapacity = errors.New("leaf capacity must be at least 2")

	// ErrCorrupted is returned when an index file fails validation.
	ErrCorrupted = errors.New("index file corrupted")

	// ErrAllocation is returned when the node store cannot grow.
	ErrAllocation = errors.New("node allocation failed")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
	cause     error
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

func (e *ErrInvalidDimension) Unwrap() error { return e.cause }

// ErrHeaderMismatch indicates that an index file was written for a different
// dimension, metric or node layout than the index loading it.
type ErrHeaderMismatch struct {
	Path     string
	Field    string
	Expected string
	Actual   string
}

func (e *ErrHeaderMismatch) Error() string {
	return fmt.Sprintf("header mismatch in %s: %s expected %s, got %s", e.Path, e.Field, e.Expected, e.Actual)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, forest.ErrNoItems):
		return fmt.Errorf("%w: %w", ErrEmptyIndex, err)
	case errors.Is(err, forest.ErrNoTrees):
		return fmt.Errorf("%w: %w", ErrNotBuilt, err)
	case errors.Is(err, forest.ErrBuilt):
		return fmt.Errorf("%w: %w", ErrAlreadyBuilt, err)
	case errors.Is(err, forest.ErrNoItem):
		return fmt.Errorf("%w: %w", ErrNoItem, err)
	case errors.Is(err, nodestore.ErrOutOfRange):
		return fmt.Errorf("%w: %w", ErrItemOutOfRange, err)
	case errors.Is(err, nodestore.ErrReadOnly):
		return fmt.Errorf("%w: %w", ErrReadOnly, err)
	case errors.Is(err, nodestore.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	case errors.Is(err, nodestore.ErrAllocation), errors.Is(err, resource.ErrMemoryLimitExceeded):
		return fmt.Errorf("%w: %w", ErrAllocation, err)
	case errors.Is(err, format.ErrInvalidMagic),
		errors.Is(err, format.ErrInvalidVersion),
		errors.Is(err, format.ErrCorrupted),
		errors.Is(err, format.ErrShortHeader),
		errors.Is(err, archive.ErrCorrupted),
		errors.Is(err, archive.ErrUnknownCodec),
		errors.Is(err, forest.ErrCorruptNode):
		return fmt.Errorf("%w: %w", ErrCorrupted, err)
	}

	return err
}
