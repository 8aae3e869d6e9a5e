package regionmap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/regionmap/blobstore"
	"github.com/hupe1980/regionmap/resource"
)

// archiver uploads sealed rolled files. Seals arrive on the goroutine that
// unmapped the file's last region; uploads run in the background, bounded by
// the controller's background slots and IO limit.
type archiver struct {
	store     blobstore.Store
	prefix    string
	rc        *resource.Controller
	logger    *Logger
	collector MetricsCollector

	ctx    context.Context
	cancel context.CancelFunc
	g      errgroup.Group

	archived atomic.Int64
	failed   atomic.Int64
	closed   atomic.Bool
}

func newArchiver(store blobstore.Store, prefix string, rc *resource.Controller, logger *Logger, mc MetricsCollector) *archiver {
	ctx, cancel := context.WithCancel(context.Background())
	return &archiver{
		store:     store,
		prefix:    prefix,
		rc:        rc,
		logger:    logger,
		collector: mc,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// onSeal is the rolled mapper's seal hook.
func (a *archiver) onSeal(index int64, path string) {
	a.logger.LogSeal(index, path)
	if a.closed.Load() {
		a.logger.Warn("seal after close not archived", "index", index, "path", path)
		return
	}
	a.g.Go(func() error {
		return a.upload(path)
	})
}

// BlobName returns the name under which a sealed file is archived.
func BlobName(prefix, path string) string {
	return filepath.ToSlash(filepath.Join(filepath.Base(prefix), filepath.Base(path)))
}

func (a *archiver) upload(path string) (err error) {
	name := BlobName(a.prefix, path)
	start := time.Now()
	var size int64
	defer func() {
		d := time.Since(start)
		a.collector.RecordArchive(size, d, err)
		a.logger.LogArchive(a.ctx, name, size, d, err)
		if err != nil {
			a.failed.Add(1)
		} else {
			a.archived.Add(1)
		}
	}()

	if !a.rc.TryAcquireBackground() {
		a.logger.Debug("archive waiting for a background slot", "name", name)
		if err := a.rc.AcquireBackground(a.ctx); err != nil {
			return err
		}
	}
	defer a.rc.ReleaseBackground()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	size = info.Size()

	r := resource.NewRateLimitedReader(a.ctx, f, a.rc)
	if err := a.store.Put(a.ctx, name, r, size); err != nil {
		return fmt.Errorf("archive %s: %w", name, err)
	}
	return nil
}

// close waits for queued uploads and returns the first upload error.
func (a *archiver) close() error {
	a.closed.Store(true)
	err := a.g.Wait()
	a.cancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
