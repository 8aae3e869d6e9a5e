//go:build windows

package fs

import (
	"errors"

	"golang.org/x/sys/windows"
)

func tryLockExclusive(fd uintptr) error {
	var ol windows.Overlapped
	// Lock the first byte; this is a common pattern for file-based mutexes.
	err := windows.LockFileEx(windows.Handle(fd), windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, 1, 0, &ol)
	if err != nil {
		if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
			return ErrWouldBlock
		}
		return err
	}
	return nil
}

func unlockFile(fd uintptr) error {
	var ol windows.Overlapped
	return windows.UnlockFileEx(windows.Handle(fd), 0, 1, 0, &ol)
}
