//go:build !windows

// Package lock provides the single-instance advisory lock the supervisor
// takes over its data directory at startup. No third-party advisory-lock
// library appears anywhere in the retrieved reference pack, so this is
// built directly on syscall.Flock.
package lock

import (
	"fmt"
	"os"
	"syscall"
)

// Lock is a held advisory file lock. Release drops it and closes the
// backing file.
type Lock struct {
	f *os.File
}

// ErrHeld indicates another process already holds the lock.
var ErrHeld = fmt.Errorf("lock: already held by another process")

// Acquire opens (creating if needed) the file at path and takes an
// exclusive, non-blocking advisory lock on it. The lock is automatically
// released if the process exits or dies, even uncleanly.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o640)
	if err != nil {
		return nil, fmt.Errorf("lock: open %s: %w", path, err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, ErrHeld
		}
		return nil, fmt.Errorf("lock: flock %s: %w", path, err)
	}
	return &Lock{f: f}, nil
}

// Release drops the lock and closes the file.
func (l *Lock) Release() error {
	if err := syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN); err != nil {
		_ = l.f.Close()
		return fmt.Errorf("lock: unlock: %w", err)
	}
	return l.f.Close()
}
