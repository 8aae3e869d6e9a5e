package async

import (
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/regionmap/idle"
	"golang.org/x/sys/cpu"
)

// Recurring is a unit of work invoked on every loop pass.
// Execute returns the amount of work done; zero means idle.
type Recurring interface {
	Execute() int
}

// RecurringFunc adapts a function to Recurring. Because functions are not
// comparable, register a *RecurringFunc when it must be deregistered later.
type RecurringFunc func() int

func (f *RecurringFunc) Execute() int { return (*f)() }

const (
	runStateRunning int32 = iota
	runStateDraining
	runStateStopped
)

// Runtime executes registered Recurring units on one dedicated goroutine.
type Runtime struct {
	name     string
	logger   *slog.Logger
	strategy idle.Strategy
	autoStop bool

	units atomic.Pointer[[]Recurring]

	_     cpu.CacheLinePad
	state atomic.Int32
	_     cpu.CacheLinePad

	passes   atomic.Uint64
	panics   atomic.Uint64
	stopOnce sync.Once
	done     chan struct{}
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithName sets the name used in log records.
func WithName(name string) Option {
	return func(r *Runtime) {
		r.name = name
	}
}

// WithLogger sets the logger for recovered panics and lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithAutoStop stops the runtime gracefully once the last unit is deregistered.
func WithAutoStop() Option {
	return func(r *Runtime) {
		r.autoStop = true
	}
}

// New creates and starts a Runtime. A nil strategy means idle.BusySpin.
func New(strategy idle.Strategy, opts ...Option) *Runtime {
	if strategy == nil {
		strategy = idle.BusySpin{}
	}
	r := &Runtime{
		name:     "async",
		logger:   slog.New(slog.DiscardHandler),
		strategy: strategy,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	empty := []Recurring{}
	r.units.Store(&empty)

	go r.run()
	return r
}

// Register adds a unit. Registering the same unit twice is a no-op.
func (r *Runtime) Register(u Recurring) {
	for {
		cur := r.units.Load()
		if slices.Contains(*cur, u) {
			return
		}
		next := make([]Recurring, len(*cur), len(*cur)+1)
		copy(next, *cur)
		next = append(next, u)
		if r.units.CompareAndSwap(cur, &next) {
			return
		}
	}
}

// Deregister removes a unit. It reports whether the unit was registered.
func (r *Runtime) Deregister(u Recurring) bool {
	for {
		cur := r.units.Load()
		i := slices.Index(*cur, u)
		if i < 0 {
			return false
		}
		next := make([]Recurring, 0, len(*cur)-1)
		next = append(next, (*cur)[:i]...)
		next = append(next, (*cur)[i+1:]...)
		if r.units.CompareAndSwap(cur, &next) {
			if len(next) == 0 && r.autoStop {
				r.state.CompareAndSwap(runStateRunning, runStateDraining)
			}
			return true
		}
	}
}

// Units returns the number of registered units.
func (r *Runtime) Units() int {
	return len(*r.units.Load())
}

// Running reports whether the loop goroutine is still alive.
func (r *Runtime) Running() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Passes returns the number of completed loop passes.
func (r *Runtime) Passes() uint64 {
	return r.passes.Load()
}

// Panics returns the number of recovered unit panics.
func (r *Runtime) Panics() uint64 {
	return r.panics.Load()
}

// Stop stops the loop and blocks until the goroutine exited.
// With immediately set, the loop halts after the current pass; otherwise it
// keeps running passes until one reports no work. Stop is idempotent.
func (r *Runtime) Stop(immediately bool) {
	r.stopOnce.Do(func() {
		if immediately {
			r.state.Store(runStateStopped)
		} else {
			r.state.CompareAndSwap(runStateRunning, runStateDraining)
		}
	})
	<-r.done
}

// Done is closed once the loop goroutine exited.
func (r *Runtime) Done() <-chan struct{} {
	return r.done
}

func (r *Runtime) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(r.done)

	r.logger.Debug("runtime started", "runtime", r.name)
	for {
		state := r.state.Load()
		if state == runStateStopped {
			break
		}
		work := r.pass()
		r.passes.Add(1)
		if state == runStateDraining && work == 0 {
			break
		}
		r.strategy.Idle(work)
	}
	r.logger.Debug("runtime stopped", "runtime", r.name, "passes", r.passes.Load())
}

func (r *Runtime) pass() int {
	work := 0
	for _, u := range *r.units.Load() {
		work += r.execute(u)
	}
	return work
}

func (r *Runtime) execute(u Recurring) (work int) {
	defer func() {
		if v := recover(); v != nil {
			r.panics.Add(1)
			r.logger.Error("recurring unit panicked", "runtime", r.name, "unit", fmt.Sprintf("%T", u), "panic", v)
			work = 0
		}
	}()
	return u.Execute()
}
