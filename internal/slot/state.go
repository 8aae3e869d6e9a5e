package slot

import (
	"log/slog"

	"github.com/hupe1980/regionmap/filemap"
	"github.com/hupe1980/regionmap/internal/region"
)

// State is the lifecycle state of a slot.
type State uint8

const (
	Unmapped State = iota
	Requested
	Mapped
	Closing
	Closed
	Failed
)

func (s State) String() string {
	switch s {
	case Unmapped:
		return "UNMAPPED"
	case Requested:
		return "REQUESTED"
	case Mapped:
		return "MAPPED"
	case Closing:
		return "CLOSING"
	case Closed:
		return "CLOSED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition happens without a new request.
func (s State) Terminal() bool {
	return s == Mapped || s == Failed || s == Closed || s == Unmapped
}

// Slot is a region slot.
type Slot interface {
	// State returns the current state as seen by the caller.
	State() State
	// RequestLocal reports whether position lies in the region that is
	// currently mapped. It never maps or unmaps.
	RequestLocal(position int64) bool
	// Request asks for the region containing position. It returns false if
	// the slot is closed, or for a sync slot, if mapping failed.
	Request(position int64) bool
	// View returns the mapped region. The zero View is returned unless the
	// state is Mapped.
	View() View
	// Err returns the failure of the last request, if any.
	Err() error
	// Close releases the mapping. It is terminal.
	Close()
}

// View is a region as mapped under one generation of its slot.
type View struct {
	// Data covers the whole region; Data[0] is the byte at Position.
	Data []byte
	// Position is the region start.
	Position int64

	gen   uint64
	req   *request
	owner validator
}

type validator interface {
	valid(v View) bool
}

// Valid reports whether the mapping the view was issued under is still live.
// A view becomes invalid as soon as its slot is asked for another region.
func (v View) Valid() bool {
	return v.owner != nil && v.owner.valid(v)
}

// Generation identifies the mapping the view was issued under.
func (v View) Generation() uint64 {
	return v.gen
}

type config struct {
	logger   *slog.Logger
	unmapper *Unmapper
}

// Option configures a slot.
type Option func(*config)

// WithLogger sets the logger for map failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUnmapper hands unmaps of async slots to u instead of running them
// inline on the mapping goroutine.
func WithUnmapper(u *Unmapper) Option {
	return func(c *config) {
		c.unmapper = u
	}
}

func newConfig(opts []Option) config {
	c := config{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	return c
}

// base holds what both slot kinds need to talk to the file mapper.
type base struct {
	metrics region.Metrics
	fm      filemap.FileMapper
	length  int
	logger  *slog.Logger
}

func newBase(m region.Metrics, fm filemap.FileMapper, c config) base {
	return base{metrics: m, fm: fm, length: int(m.Size()), logger: c.logger}
}
