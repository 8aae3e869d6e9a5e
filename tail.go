package regionmap

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/regionmap/filemap"
)

// tailPollInterval bounds the wait between readiness checks when no file
// event arrives. Writes through a shared mapping raise no events.
const tailPollInterval = 50 * time.Millisecond

// WaitReadable blocks until the region containing position lies inside its
// backing file, or ctx is done. It lets a reader follow a writer in another
// process without spinning on failed maps.
//
// The file mapper must report readiness (ReadOnly, Expandable and Rolled do).
func (m *Mapper) WaitReadable(ctx context.Context, position int64) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if position < 0 {
		return fmt.Errorf("%w: negative position %d", ErrInvalidArgument, position)
	}
	probe, ok := m.inner.(filemap.Probe)
	if !ok {
		return fmt.Errorf("%w: %T cannot report readiness", ErrInvalidArgument, m.inner)
	}

	start := m.metrics.Position(position)
	length := int(m.metrics.Size())
	if probe.Available(start, length) {
		return nil
	}

	path := probe.PathFor(start)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// The file may not exist yet, so watch its directory.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}

	ticker := time.NewTicker(tailPollInterval)
	defer ticker.Stop()
	for {
		if probe.Available(start, length) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return ErrClosed
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			m.logger.Debug("tail event", "path", ev.Name, "op", ev.Op.String())
		case err, ok := <-w.Errors:
			if !ok {
				return ErrClosed
			}
			return err
		case <-ticker.C:
		}
	}
}
