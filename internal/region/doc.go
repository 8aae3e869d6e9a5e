// Package region provides the arithmetic that splits a file into fixed-size,
// power-of-two regions.
//
// All operations are branch-free bit manipulations over a single immutable
// [Metrics] value which is shared read-only by every slot of a mapper:
//
//	m, _ := region.NewMetrics(64 << 10)
//	m.Offset(70000)   // 4464
//	m.Position(70000) // 65536
//	m.Index(70000)    // 1
package region
