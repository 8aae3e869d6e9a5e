package slot

import (
	"errors"
	"sync/atomic"

	"github.com/hupe1980/regionmap/filemap"
	"github.com/hupe1980/regionmap/internal/region"
	"github.com/hupe1980/regionmap/resource"
	"golang.org/x/sys/cpu"
)

// request is immutable once stored. Identity, not value, tells the executor
// that something new was asked for, so re-requesting a failed region retries.
type request struct {
	position int64
	close    bool
}

var noRequest = &request{position: -1}

// outcome is immutable once published.
type outcome struct {
	req   *request
	state State
	data  []byte
	gen   uint64
	err   error
}

// Async records requests on the caller goroutine and performs them when an
// async.Runtime calls Execute. One caller goroutine and one executor goroutine
// may use it concurrently.
type Async struct {
	base
	unmapper *Unmapper

	// Written by the caller.
	_         cpu.CacheLinePad
	requested atomic.Pointer[request]
	_         cpu.CacheLinePad

	// Written by the executor.
	published atomic.Pointer[outcome]
	done      atomic.Bool
	_         cpu.CacheLinePad

	// Executor-private.
	applied  *request
	data     []byte
	position int64
	gen      uint64

	// Caller-private.
	cached *outcome
}

var _ Slot = (*Async)(nil)

// NewAsync returns an unmapped asynchronous slot. It does nothing until it is
// registered with a runtime.
func NewAsync(m region.Metrics, fm filemap.FileMapper, opts ...Option) *Async {
	c := newConfig(opts)
	s := &Async{
		base:     newBase(m, fm, c),
		unmapper: c.unmapper,
		applied:  noRequest,
		position: -1,
	}
	s.requested.Store(noRequest)
	initial := &outcome{req: noRequest, state: Unmapped}
	s.published.Store(initial)
	s.cached = initial
	return s
}

// current returns the outcome for the caller's latest request, or nil while
// the executor has not answered it yet.
func (s *Async) current(req *request) *outcome {
	if s.cached.req == req && s.cached.state.Terminal() {
		return s.cached
	}
	o := s.published.Load()
	if o.req != req {
		return nil
	}
	s.cached = o
	return o
}

func (s *Async) State() State {
	req := s.requested.Load()
	o := s.current(req)
	if o == nil || o.state == Requested || o.state == Closing {
		if req.close {
			return Closing
		}
		return Requested
	}
	return o.state
}

func (s *Async) Err() error {
	if o := s.current(s.requested.Load()); o != nil {
		return o.err
	}
	return nil
}

func (s *Async) RequestLocal(position int64) bool {
	req := s.requested.Load()
	if req.close || req.position != s.metrics.Position(position) {
		return false
	}
	o := s.current(req)
	return o != nil && o.state == Mapped
}

func (s *Async) Request(position int64) bool {
	req := s.requested.Load()
	if req.close {
		return false
	}
	start := s.metrics.Position(position)
	if req.position == start {
		// Still in flight or already mapped. A failed request is retried.
		if o := s.current(req); o == nil || o.state != Failed {
			return true
		}
	}
	s.requested.Store(&request{position: start})
	return true
}

func (s *Async) View() View {
	req := s.requested.Load()
	o := s.current(req)
	if o == nil || o.state != Mapped {
		return View{}
	}
	return View{Data: o.data, Position: req.position, gen: o.gen, req: req, owner: s}
}

func (s *Async) Close() {
	if s.requested.Load().close {
		return
	}
	s.requested.Store(&request{position: -1, close: true})
}

// Done reports whether the executor applied Close. The owner deregisters the
// slot from its runtime once Done is true.
func (s *Async) Done() bool {
	return s.done.Load()
}

// Pending reports whether a request has not been applied yet.
func (s *Async) Pending() bool {
	return s.published.Load().req != s.requested.Load()
}

func (s *Async) valid(v View) bool {
	if s.requested.Load() != v.req {
		return false
	}
	o := s.published.Load()
	return o.state == Mapped && o.gen == v.gen
}

// Execute applies the latest request. It is called by the runtime goroutine,
// or inline by the owner once that runtime stopped.
func (s *Async) Execute() int {
	req := s.requested.Load()
	if req == s.applied {
		return 0
	}
	s.applied = req

	if s.data != nil {
		// Invalidate views before the memory goes away.
		s.gen++
		state := Requested
		if req.close {
			state = Closing
		}
		s.published.Store(&outcome{req: req, state: state, gen: s.gen})
		s.release()
	}

	if req.close {
		s.gen++
		s.published.Store(&outcome{req: req, state: Closed, gen: s.gen})
		s.done.Store(true)
		return 1
	}

	data, err := s.fm.Map(req.position, s.length)
	if err != nil && s.unmapper != nil && errors.Is(err, resource.ErrMemoryLimitExceeded) && s.unmapper.Execute() > 0 {
		// A queued unmap held the budget; it has been returned now.
		data, err = s.fm.Map(req.position, s.length)
	}
	s.gen++
	if err != nil {
		s.logger.Debug("map region failed", "position", req.position, "error", err)
		s.published.Store(&outcome{req: req, state: Failed, gen: s.gen, err: err})
		return 1
	}
	s.data = data
	s.position = req.position
	s.published.Store(&outcome{req: req, state: Mapped, data: data, gen: s.gen})
	return 1
}

func (s *Async) release() {
	data, position := s.data, s.position
	s.data = nil
	s.position = -1
	if s.unmapper != nil && s.unmapper.offer(s.fm, data, position, s.length) {
		return
	}
	s.fm.Unmap(data, position, s.length)
}
