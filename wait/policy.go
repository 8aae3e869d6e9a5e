package wait

import (
	"fmt"
	"time"

	"github.com/hupe1980/regionmap/idle"
)

// Policy is an immutable waiting policy.
type Policy struct {
	// MaxWait is the longest Await polls. Zero means no waiting.
	MaxWait time.Duration
	// Idle creates the strategy applied between polls. Nil means idle.BusySpin.
	Idle idle.Factory
}

// NoWait returns a policy that never waits.
func NoWait() Policy {
	return Policy{}
}

// Spin returns a policy that busy-spins for up to d.
func Spin(d time.Duration) Policy {
	return Policy{MaxWait: d, Idle: idle.MappingFactory}
}

// Backoff returns a policy that backs off from spinning to parking for up to d.
func Backoff(d time.Duration) Policy {
	return Policy{MaxWait: d, Idle: idle.UnmappingFactory}
}

// Default is used where no policy is configured.
func Default() Policy {
	return Spin(time.Second)
}

// Waits reports whether the policy ever suspends the caller.
func (p Policy) Waits() bool {
	return p.MaxWait > 0
}

// Validate reports an error for a negative MaxWait.
func (p Policy) Validate() error {
	if p.MaxWait < 0 {
		return fmt.Errorf("wait: negative max wait %s", p.MaxWait)
	}
	return nil
}

// Await polls cond until it holds or MaxWait elapsed. Cond is checked once
// more after the deadline so a result published right at the boundary is not
// reported as a timeout.
func (p Policy) Await(cond func() bool) bool {
	if cond() {
		return true
	}
	if p.MaxWait <= 0 {
		return false
	}

	factory := p.Idle
	if factory == nil {
		factory = idle.MappingFactory
	}
	strategy := factory()
	deadline := time.Now().Add(p.MaxWait)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		strategy.Idle(0)
	}
	return cond()
}

func (p Policy) String() string {
	if !p.Waits() {
		return "no-wait"
	}
	return fmt.Sprintf("wait(%s)", p.MaxWait)
}
