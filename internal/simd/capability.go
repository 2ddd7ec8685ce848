package simd

import (
	"os"
	"strings"
)

// ISA represents a kernel implementation family.
type ISA uint8

const (
	// Generic represents the pure Go implementation.
	Generic ISA = iota
	// AVX2 represents x86-64 AVX2+FMA kernels.
	AVX2
)

// String returns the string representation of an ISA.
func (i ISA) String() string {
	switch i {
	case Generic:
		return "generic"
	case AVX2:
		return "avx2"
	default:
		return "unknown"
	}
}

// ParseISA parses a string into an ISA value.
func ParseISA(s string) (ISA, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generic":
		return Generic, true
	case "avx2":
		return AVX2, true
	default:
		return Generic, false
	}
}

// Package-level state, written once during init.
var (
	activeISA   ISA
	hasOverride bool
	hasAVX2     bool
)

// initCapabilities is called from the platform init after feature detection.
func initCapabilities() {
	if override := os.Getenv("VECFOREST_SIMD"); override != "" {
		if isa, ok := ParseISA(override); ok {
			hasOverride = true
			if isISAAvailable(isa) {
				activate(isa)
				return
			}
		}
	}

	if hasAVX2 {
		activate(AVX2)
		return
	}
	activate(Generic)
}

func isISAAvailable(isa ISA) bool {
	switch isa {
	case Generic:
		return true
	case AVX2:
		return hasAVX2
	default:
		return false
	}
}

func activate(isa ISA) {
	activeISA = isa
	switch isa {
	case AVX2:
		useAccelerated()
	default:
		useGeneric()
	}
}

// ActiveISA returns the currently active ISA.
func ActiveISA() ISA {
	return activeISA
}

// IsOverridden returns true if VECFOREST_SIMD was set to a valid value.
func IsOverridden() bool {
	return hasOverride
}

// HasAVX2 returns true if x86-64 AVX2+FMA is available.
func HasAVX2() bool {
	return hasAVX2
}
