//go:build windows

package instance

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

// AcquireLock takes an exclusive, non-shared handle on pidFilePath+".lock"
// so a second daemon racing to start fails immediately instead of
// clobbering the first one's PID file.
func (m *InstanceManager) AcquireLock() error {
	lockPath := m.pidFilePath + ".lock"

	lockPathPtr, err := syscall.UTF16PtrFromString(lockPath)
	if err != nil {
		return fmt.Errorf("failed to convert lock path: %w", err)
	}

	handle, err := windows.CreateFile(
		lockPathPtr,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0, // no sharing: exclusive access
		nil,
		windows.CREATE_ALWAYS,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		return fmt.Errorf("failed to acquire lock (another instance may be starting): %w", err)
	}

	m.lockState = handle
	m.acquiredLock = true

	pidBytes := []byte(fmt.Sprintf("%d", os.Getpid()))
	var bytesWritten uint32
	if err := windows.WriteFile(handle, pidBytes, &bytesWritten, nil); err != nil {
		fmt.Printf("Warning: Failed to write PID to lock file: %v\n", err)
	}

	return nil
}

// ReleaseLock releases the exclusive lock and removes the lock file.
func (m *InstanceManager) ReleaseLock() error {
	if !m.acquiredLock {
		return nil
	}

	if handle, ok := m.lockState.(windows.Handle); ok && handle != 0 {
		if err := windows.CloseHandle(handle); err != nil {
			fmt.Printf("Warning: Failed to close lock handle: %v\n", err)
		}
	}
	m.lockState = nil

	lockPath := m.pidFilePath + ".lock"
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: Failed to remove lock file: %v\n", err)
	}

	m.acquiredLock = false
	return nil
}
