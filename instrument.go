package regionmap

import (
	"time"

	"github.com/hupe1980/regionmap/filemap"
	"github.com/hupe1980/regionmap/internal/mmap"
	"github.com/hupe1980/regionmap/resource"
)

// instrumentedMapper sits between the slots and the user's file mapper. It
// charges the memory budget, applies access advice and reports every OS call.
// Its methods run on whichever goroutine the slot maps on.
type instrumentedMapper struct {
	inner     filemap.FileMapper
	rc        *resource.Controller
	collector MetricsCollector
	logger    *Logger
	advice    Advice
}

var _ filemap.FileMapper = (*instrumentedMapper)(nil)

func (im *instrumentedMapper) Map(position int64, length int) ([]byte, error) {
	if err := im.rc.AcquireMapped(int64(length)); err != nil {
		err = &filemap.MapError{Op: "map", Position: position, Err: err}
		im.collector.RecordMap(0, err)
		im.logger.LogMap(position, length, 0, err)
		return nil, err
	}

	start := time.Now()
	data, err := im.inner.Map(position, length)
	d := time.Since(start)
	im.collector.RecordMap(d, err)
	im.logger.LogMap(position, length, d, err)
	if err != nil {
		im.rc.ReleaseMapped(int64(length))
		return nil, err
	}

	if im.advice != mmap.AccessDefault {
		if aerr := mmap.Advise(data, im.advice); aerr != nil {
			im.logger.Debug("advise failed", "position", position, "error", aerr)
		}
	}
	return data, nil
}

func (im *instrumentedMapper) Unmap(data []byte, position int64, length int) {
	start := time.Now()
	im.inner.Unmap(data, position, length)
	im.collector.RecordUnmap(time.Since(start))
	im.rc.ReleaseMapped(int64(length))
	im.logger.LogUnmap(position, length)
}

func (im *instrumentedMapper) Close() error {
	return im.inner.Close()
}
