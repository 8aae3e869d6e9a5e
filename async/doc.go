// Package async runs recurring units of work on a dedicated goroutine.
//
// A [Runtime] owns one goroutine locked to an OS thread. Each loop pass
// invokes every registered [Recurring] unit, sums the work they report and
// hands the sum to an [idle.Strategy]:
//
//	rt := async.New(idle.BusySpin{}, async.WithName("mapper"))
//	rt.Register(unit)
//	...
//	rt.Deregister(unit)
//	rt.Stop(false) // drain, then exit
//
// Registration is lock-free: the unit list is replaced copy-on-write with a
// compare-and-swap, so Register and Deregister may run concurrently with the
// loop reading its snapshot.
//
// Runtimes are explicit values. Mappers that want to share one pass the same
// *Runtime to every constructor; there is no process-wide default.
package async
