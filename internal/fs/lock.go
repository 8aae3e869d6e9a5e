package fs

import "errors"

// ErrWouldBlock is returned by TryLock when another process holds the lock.
var ErrWouldBlock = errors.New("lock would block")

// TryLock takes an exclusive advisory lock on f without waiting.
// The lock is released by Unlock or when f is closed.
func TryLock(f File) error {
	return tryLockExclusive(f.Fd())
}

// Unlock releases a lock taken with TryLock.
func Unlock(f File) error {
	return unlockFile(f.Fd())
}
