package kvfile

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// ErrLocked is returned by AcquireLock when another writer already holds
// the lock.
var ErrLocked = errors.New("kvfile: locked by another writer")

// Lock is an advisory, exclusive, non-blocking lock on a single file. It
// guards the writable-mode lifetime of an engine: at most one Lock on a
// given path can be held at a time, process-wide and across processes.
type Lock struct {
	f *os.File
}

// AcquireLock opens (creating if necessary) the lock file at path and
// takes an exclusive, non-blocking flock on it. If another process (or
// another handle in this process) already holds the lock, it returns
// ErrLocked without blocking.
func AcquireLock(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("kvfile: open lock %s: %w", path, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("kvfile: flock %s: %w", path, err)
	}

	return &Lock{f: f}, nil
}

// Release drops the lock and closes the file. The lock file itself is
// left on disk; it is reused by the next writer.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	if err != nil {
		return fmt.Errorf("kvfile: close lock file: %w", err)
	}
	return nil
}
