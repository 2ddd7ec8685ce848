package simd

import (
	"github.com/viterin/vek/vek32"
	"gonum.org/v1/gonum/blas/gonum"
)

var blas gonum.Implementation

func useAccelerated() {
	kernelDot = dotVek
	kernelSquaredL2 = squaredL2Generic
	kernelL1 = l1Vek
	kernelScale = scaleBLAS
}

func dotVek(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return vek32.Dot(a, b)
}

func l1Vek(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return vek32.ManhattanDistance(a, b)
}

func scaleBLAS(a []float32, scalar float32) {
	if len(a) == 0 {
		return
	}
	blas.Sscal(len(a), scalar, a, 1)
}
