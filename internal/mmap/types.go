package mmap

import "errors"

// Advice is a paging hint passed to madvise(2).
type Advice int

const (
	AdviceNormal Advice = iota
	AdviceSequential
	AdviceRandom
	AdviceWillNeed
	AdviceDontNeed
)

var (
	ErrClosed        = errors.New("mmap: mapping is closed")
	ErrInvalidSize   = errors.New("mmap: invalid file size")
	ErrOutOfBounds   = errors.New("mmap: range outside mapping")
	ErrInvalidOffset = errors.New("mmap: negative offset")
)

// OpenOption configures Open.
type OpenOption func(*openConfig)

type openConfig struct {
	prefault bool
	advice   Advice
}

// WithPrefault faults every page in before Open returns.
func WithPrefault() OpenOption {
	return func(c *openConfig) { c.prefault = true }
}

// WithAdvice applies a paging hint to the whole file once it is mapped.
func WithAdvice(a Advice) OpenOption {
	return func(c *openConfig) { c.advice = a }
}
