// Package wait bounds how long a caller polls for a result produced by
// another goroutine.
//
// A [Policy] pairs a maximum wait with the idle strategy applied between
// polls. A zero MaxWait never suspends: [Policy.Await] reports the current
// condition and returns. A [TimeoutHandler] decides what a timeout means for
// the caller: fail, ignore or log and then fail.
package wait
