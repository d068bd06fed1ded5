//go:build !windows

package instance

import (
	"fmt"
	"os"
	"syscall"
)

// AcquireLock takes an exclusive flock on pidFilePath+".lock" so a second
// daemon racing to start fails immediately instead of clobbering the
// first one's PID file.
func (m *InstanceManager) AcquireLock() error {
	lockPath := m.pidFilePath + ".lock"

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return fmt.Errorf("failed to acquire lock (another instance may be starting): %w", err)
	}

	if err := f.Truncate(0); err == nil {
		f.WriteString(fmt.Sprintf("%d", os.Getpid()))
	}

	m.lockState = f
	m.acquiredLock = true
	return nil
}

// ReleaseLock releases the flock and removes the lock file.
func (m *InstanceManager) ReleaseLock() error {
	if !m.acquiredLock {
		return nil
	}

	if f, ok := m.lockState.(*os.File); ok {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
	}
	m.lockState = nil

	lockPath := m.pidFilePath + ".lock"
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: Failed to remove lock file: %v\n", err)
	}

	m.acquiredLock = false
	return nil
}
