package slot

import (
	"github.com/hupe1980/regionmap/filemap"
	"github.com/hupe1980/regionmap/internal/region"
)

// Sync maps and unmaps inline. It must only be used from one goroutine.
type Sync struct {
	base

	state    State
	position int64
	data     []byte
	gen      uint64
	err      error
}

var _ Slot = (*Sync)(nil)

// NewSync returns an unmapped synchronous slot.
func NewSync(m region.Metrics, fm filemap.FileMapper, opts ...Option) *Sync {
	return &Sync{
		base:     newBase(m, fm, newConfig(opts)),
		state:    Unmapped,
		position: -1,
	}
}

func (s *Sync) State() State { return s.state }

func (s *Sync) Err() error { return s.err }

func (s *Sync) RequestLocal(position int64) bool {
	return s.state == Mapped && s.metrics.Position(position) == s.position
}

func (s *Sync) Request(position int64) bool {
	if s.state == Closed || s.state == Closing {
		return false
	}
	start := s.metrics.Position(position)
	if s.state == Mapped && start == s.position {
		return true
	}

	s.release()
	s.state = Requested
	s.position = start

	data, err := s.fm.Map(start, s.length)
	s.gen++
	if err != nil {
		s.state = Failed
		s.err = err
		s.logger.Debug("map region failed", "position", start, "error", err)
		return false
	}
	s.data = data
	s.err = nil
	s.state = Mapped
	return true
}

func (s *Sync) View() View {
	if s.state != Mapped {
		return View{}
	}
	return View{Data: s.data, Position: s.position, gen: s.gen, owner: s}
}

func (s *Sync) Close() {
	if s.state == Closed {
		return
	}
	s.state = Closing
	s.release()
	s.state = Closed
	s.position = -1
}

func (s *Sync) release() {
	if s.data == nil {
		return
	}
	data := s.data
	s.data = nil
	s.gen++
	s.fm.Unmap(data, s.position, s.length)
}

func (s *Sync) valid(v View) bool {
	return s.state == Mapped && s.gen == v.gen && s.position == v.Position
}
