package idle

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Strategy is applied by a polling loop after each pass.
// Implementations are not safe for concurrent use; each loop owns one.
type Strategy interface {
	// Idle is called with the amount of work the last pass performed.
	Idle(workCount int)
	// Reset returns the strategy to its initial (most eager) state.
	Reset()
}

// Factory creates a fresh Strategy for a new waiter or loop.
type Factory func() Strategy

// BusySpin never gives up the processor.
type BusySpin struct{}

func (BusySpin) Idle(int) {}
func (BusySpin) Reset()   {}

// NoOp does nothing at all; it exists for loops that are driven externally.
type NoOp struct{}

func (NoOp) Idle(int) {}
func (NoOp) Reset()   {}

// Yield lets other goroutines run when there was no work.
type Yield struct{}

func (Yield) Idle(workCount int) {
	if workCount <= 0 {
		runtime.Gosched()
	}
}

func (Yield) Reset() {}

// Sleep parks the loop for a fixed duration when there was no work.
type Sleep struct {
	Duration time.Duration
}

func (s Sleep) Idle(workCount int) {
	if workCount <= 0 {
		time.Sleep(s.Duration)
	}
}

func (Sleep) Reset() {}

type backoffState int

const (
	stateNotIdle backoffState = iota
	stateSpinning
	stateYielding
	stateParking
)

// Backoff spins, then yields, then sleeps with exponentially growing park
// times capped at MaxPark. Any work resets it.
type Backoff struct {
	MaxSpins  int
	MaxYields int
	MinPark   time.Duration
	MaxPark   time.Duration

	state  backoffState
	spins  int
	yields int
	park   time.Duration
}

// NewBackoff creates a Backoff strategy.
func NewBackoff(maxSpins, maxYields int, minPark, maxPark time.Duration) *Backoff {
	if minPark <= 0 {
		minPark = time.Microsecond
	}
	if maxPark < minPark {
		maxPark = minPark
	}
	return &Backoff{
		MaxSpins:  maxSpins,
		MaxYields: maxYields,
		MinPark:   minPark,
		MaxPark:   maxPark,
	}
}

func (b *Backoff) Idle(workCount int) {
	if workCount > 0 {
		b.Reset()
		return
	}

	switch b.state {
	case stateNotIdle:
		b.state = stateSpinning
		b.spins++
	case stateSpinning:
		b.spins++
		if b.spins > b.MaxSpins {
			b.state = stateYielding
			b.yields = 0
		}
	case stateYielding:
		b.yields++
		if b.yields > b.MaxYields {
			b.state = stateParking
			b.park = b.MinPark
		} else {
			runtime.Gosched()
		}
	case stateParking:
		time.Sleep(b.park)
		b.park = min(b.park*2, b.MaxPark)
	}
}

func (b *Backoff) Reset() {
	b.state = stateNotIdle
	b.spins = 0
	b.yields = 0
	b.park = b.MinPark
}

// Parking reports whether the strategy reached the sleeping phase.
func (b *Backoff) Parking() bool {
	return b.state == stateParking
}

// Default strategies for the two kinds of loops.
var (
	// MappingFactory favours latency: callers are waiting for mapped regions.
	MappingFactory Factory = func() Strategy { return BusySpin{} }
	// UnmappingFactory favours CPU: nobody waits for an unmap.
	UnmappingFactory Factory = func() Strategy {
		return NewBackoff(100, 100, 10*time.Microsecond, time.Millisecond)
	}
)

// Parse returns a factory for a strategy name: "busy-spin", "yield",
// "no-op", "backoff" or "sleep:<duration>".
func Parse(name string) (Factory, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); {
	case n == "busy-spin" || n == "busyspin" || n == "spin":
		return func() Strategy { return BusySpin{} }, nil
	case n == "yield":
		return func() Strategy { return Yield{} }, nil
	case n == "no-op" || n == "noop":
		return func() Strategy { return NoOp{} }, nil
	case n == "backoff" || n == "":
		return UnmappingFactory, nil
	case strings.HasPrefix(n, "sleep:"):
		d, err := time.ParseDuration(strings.TrimPrefix(n, "sleep:"))
		if err != nil {
			return nil, fmt.Errorf("idle: invalid sleep duration in %q: %w", name, err)
		}
		return func() Strategy { return Sleep{Duration: d} }, nil
	default:
		return nil, fmt.Errorf("idle: unknown strategy %q", name)
	}
}
