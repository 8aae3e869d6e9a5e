// Package slot implements the per-region state machine that owns at most one
// live OS mapping at a time.
//
// Two implementations share the [Slot] interface. [Sync] maps and unmaps
// inline on the caller goroutine. [Async] records the request and leaves the
// system calls to an async.Runtime goroutine that calls [Async.Execute].
//
// The async slot holds no mutex. The caller writes the requested region, the
// executor publishes an immutable outcome, and the two field groups sit on
// separate cache lines. Because only the caller issues requests, the executor
// only ever changes the published outcome in response to a new request, which
// lets the caller keep the last outcome it saw until it requests again.
package slot
