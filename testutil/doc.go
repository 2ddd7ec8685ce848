// Package testutil provides testing utilities for vecforest.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random vectors, computing exact
// nearest neighbors, and verifying search recall.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UniformVectors(1000, 64) // uniform [0, 1)
//	unit := rng.UnitVectors(1000, 64)    // on the hypersphere
//
// # Exact Search (Ground Truth)
//
//	truth := testutil.ExactTopK(vecs, query, k, distance.Euclidean)
//
// # Recall Verification
//
//	recall := testutil.ComputeRecall(truth, approx)
package testutil
