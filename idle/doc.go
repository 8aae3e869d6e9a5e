// Package idle provides the strategies a polling loop applies between passes.
//
// A loop reports how much work its last pass did; the strategy decides how to
// back off when that count is zero:
//
//	s := idle.NewBackoff(100, 10, time.Microsecond, time.Millisecond)
//	for running {
//	    s.Idle(doWork())
//	}
//
// Time-critical loops (mapping regions the caller waits for) use BusySpin or
// Yield; loops off the critical path (unmapping) use Sleep or Backoff.
package idle
