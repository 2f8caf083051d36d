// Package coord provides cross-process file coordination for the shared
// queue directory. All mutation of the directory goes through a Coordinator
// so that no process observes another's write in a half-complete state.
package coord

import (
	"fmt"
	"os"
	"syscall"
)

// Coordinator serializes file operations against other processes sharing the
// same queue directory. Implementations must make each operation atomic with
// respect to concurrent coordinated operations on the same path.
type Coordinator interface {
	// Read returns the full content of path.
	Read(path string) ([]byte, error)
	// Write creates or replaces path with data.
	Write(path string, data []byte) error
	// Move atomically renames oldpath to newpath. Both must be on the same
	// filesystem.
	Move(oldpath, newpath string) error
	// Remove deletes path.
	Remove(path string) error
}

// FileCoordinator implements Coordinator with an flock(2)-held lock file.
// Every process touching the queue directory coordinates through the same
// lock file, so a drain enumeration never races a commit rename or a
// concurrent delete of the same path.
type FileCoordinator struct {
	lockPath string
}

// NewFileCoordinator returns a coordinator backed by the given lock file.
// The lock file is created on first use.
func NewFileCoordinator(lockPath string) *FileCoordinator {
	return &FileCoordinator{lockPath: lockPath}
}

func (c *FileCoordinator) withLock(fn func() error) error {
	f, err := os.OpenFile(c.lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open coordination lock: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("acquire coordination lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN) }()

	return fn()
}

func (c *FileCoordinator) Read(path string) ([]byte, error) {
	var data []byte
	err := c.withLock(func() error {
		var readErr error
		data, readErr = os.ReadFile(path)
		return readErr
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *FileCoordinator) Write(path string, data []byte) error {
	return c.withLock(func() error {
		return os.WriteFile(path, data, 0644)
	})
}

func (c *FileCoordinator) Move(oldpath, newpath string) error {
	return c.withLock(func() error {
		return os.Rename(oldpath, newpath)
	})
}

func (c *FileCoordinator) Remove(path string) error {
	return c.withLock(func() error {
		return os.Remove(path)
	})
}
