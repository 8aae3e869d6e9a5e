package filemap

import (
	"errors"
	"fmt"
	"os"

	ifs "github.com/hupe1980/regionmap/internal/fs"
)

// lockFile takes the exclusive writer lock on f.
func lockFile(f ifs.File) error {
	if err := ifs.TryLock(f); err != nil {
		if errors.Is(err, ifs.ErrWouldBlock) {
			return fmt.Errorf("%w: %s", ErrLocked, f.Name())
		}
		return fmt.Errorf("filemap: lock %s: %w", f.Name(), err)
	}
	return nil
}

// openLocked opens path for writing, takes the writer lock and clears the
// file for ReadWriteClear.
func openLocked(fsys ifs.FileSystem, path string, mode Mode) (ifs.File, error) {
	f, err := fsys.OpenFile(path, mode.openFlags(), 0o644)
	if err != nil {
		return nil, fmt.Errorf("filemap: open %s: %w", path, err)
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	if mode == ReadWriteClear {
		if err := f.Truncate(0); err != nil {
			_ = ifs.Unlock(f)
			_ = f.Close()
			return nil, fmt.Errorf("filemap: clear %s: %w", path, err)
		}
	}
	return f, nil
}

// openRead opens an existing file for reading. A missing file is reported
// as ErrBeyondEOF since a writer may still create it.
func openRead(fsys ifs.FileSystem, path string) (ifs.File, error) {
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &MapError{Op: "open", Path: path, Err: fmt.Errorf("%w: %w", ErrBeyondEOF, err)}
		}
		return nil, fmt.Errorf("filemap: open %s: %w", path, err)
	}
	return f, nil
}
