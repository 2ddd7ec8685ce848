package distance

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/hupe1980/vecforest/internal/simd"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	return simd.Dot(a, b)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	return simd.SquaredL2(a, b)
}

// L1 calculates the Manhattan distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func L1(a, b []float32) float32 {
	return simd.L1(a, b)
}

// Cosine returns the angular distance 2 - 2*cos(a, b).
// If either vector has zero norm the distance is 2.
func Cosine(a, b []float32) float32 {
	return CosineWithNorms(simd.Dot(a, b), simd.Dot(a, a), simd.Dot(b, b))
}

// CosineWithNorms computes the angular distance from a dot product and the two
// squared norms.
func CosineWithNorms(pq, pp, qq float32) float32 {
	ppqq := pp * qq
	if ppqq > 0 {
		return 2 - 2*pq/simd.Sqrt(ppqq)
	}
	return 2
}

// NegDot returns -dot(a, b).
func NegDot(a, b []float32) float32 {
	return -simd.Dot(a, b)
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := simd.Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := 1 / simd.Sqrt(norm2)
	simd.ScaleInPlace(v, inv)
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the distance metric used for vector comparison.
// The numeric value is persisted in index file headers.
type Metric uint8

const (
	Angular Metric = iota
	Euclidean
	Manhattan
	DotProduct
)

func (m Metric) String() string {
	switch m {
	case Angular:
		return "angular"
	case Euclidean:
		return "euclidean"
	case Manhattan:
		return "manhattan"
	case DotProduct:
		return "dot"
	default:
		return fmt.Sprintf("unknown(%d)", m)
	}
}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	return m <= DotProduct
}

// ParseMetric parses a metric name. "euclidian" is accepted as an alias
// for "euclidean"; the empty string selects Angular.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "angular", "cosine":
		return Angular, nil
	case "euclidean", "euclidian", "l2":
		return Euclidean, nil
	case "manhattan", "l1":
		return Manhattan, nil
	case "dot", "dotproduct", "dot_product", "ip":
		return DotProduct, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Metric) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown metric %d", m)
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(text []byte) error {
	v, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Distance returns the raw distance between a and b. Smaller is closer for
// every metric.
func (m Metric) Distance(a, b []float32) float32 {
	switch m {
	case Euclidean:
		return simd.SquaredL2(a, b)
	case Manhattan:
		return simd.L1(a, b)
	case DotProduct:
		return -simd.Dot(a, b)
	default:
		return Cosine(a, b)
	}
}

// Normalize converts a raw distance into the reported distance.
func (m Metric) Normalize(d float32) float32 {
	switch m {
	case Angular, Euclidean:
		return float32(math.Sqrt(float64(max(d, 0))))
	case Manhattan:
		return max(d, 0)
	case DotProduct:
		return -d
	default:
		return d
	}
}

// Func is a function type for distance calculation.
type Func func(a, b []float32) float32

// Provider returns the raw distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case Angular:
		return Cosine, nil
	case Euclidean:
		return SquaredL2, nil
	case Manhattan:
		return L1, nil
	case DotProduct:
		return NegDot, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
