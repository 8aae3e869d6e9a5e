// Package testutil provides testing utilities for regionmap.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded RNG for access patterns and a position-dependent
// byte pattern that makes misplaced or stale views easy to spot.
//
// # Access Patterns
//
//	rng := testutil.NewRNG(seed)
//	positions := rng.Positions(1000, fileSize, 1)
//	walk := rng.Walk(1000, fileSize, regionSize, 0.1)
//
// # Pattern Files
//
//	testutil.WritePatternFile(path, size)
//	if i := testutil.CheckPattern(buf, position); i >= 0 { ... }
package testutil
