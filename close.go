package regionmap

import (
	"errors"
	"runtime"
)

// Close unmaps every region, stops runtimes the Mapper started, closes the
// file mapper and waits for pending archive uploads. It is idempotent.
func (m *Mapper) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.close()
	})
	return m.closeErr
}

func (m *Mapper) close() error {
	m.closed.Store(true)
	m.cache.Close()

	if m.async {
		m.awaitSlots()
		if m.unmapper != nil {
			m.unmapRT.Deregister(m.unmapper)
			for m.unmapper.Executed() < m.unmapper.Handed() {
				m.unmapper.Drain()
				runtime.Gosched()
			}
		}
		if m.ownsMapRT {
			m.mapRT.Stop(false)
		}
	}

	var errs []error
	if err := m.fm.Close(); err != nil {
		errs = append(errs, err)
	}
	if m.arch != nil {
		if err := m.arch.close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.logger.Debug("mapper closed", "mapped_bytes", m.rc.MappedBytes())
	return errors.Join(errs...)
}

// awaitSlots waits until the map runtime applied Close to every slot, and
// applies it inline once that runtime is gone.
func (m *Mapper) awaitSlots() {
	for _, s := range m.slots {
		for !s.Done() {
			if !m.mapRT.Running() {
				s.Execute()
				continue
			}
			runtime.Gosched()
		}
		m.mapRT.Deregister(s)
	}
}
