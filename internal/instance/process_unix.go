//go:build !windows

package instance

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// IsProcessRunning reports whether pid is alive and is, in fact, our own
// daemon binary — guarding against a PID getting reused by an unrelated
// process between runs.
func IsProcessRunning(pid int) (bool, error) {
	exists, err := process.PidExists(int32(pid))
	if err != nil {
		return false, fmt.Errorf("check pid %d: %w", pid, err)
	}
	if !exists {
		return false, nil
	}

	name, err := GetProcessName(pid)
	if err != nil {
		// Process exists but we couldn't confirm its name; assume it's ours
		// rather than treat a permission error as "not running".
		return true, nil
	}
	return strings.EqualFold(name, daemonProcessName), nil
}

// GetProcessName returns the base executable name for pid.
func GetProcessName(pid int) (string, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", fmt.Errorf("open pid %d: %w", pid, err)
	}
	exe, err := p.Exe()
	if err != nil {
		name, nameErr := p.Name()
		if nameErr != nil {
			return "", fmt.Errorf("get process name for pid %d: %w", pid, err)
		}
		return name, nil
	}
	return filepath.Base(exe), nil
}

// GetProcessStartTime returns when pid was created.
func GetProcessStartTime(pid int) (time.Time, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return time.Time{}, fmt.Errorf("open pid %d: %w", pid, err)
	}
	ms, err := p.CreateTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("get start time for pid %d: %w", pid, err)
	}
	return time.UnixMilli(ms), nil
}

// KillProcess sends SIGKILL to pid.
func KillProcess(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return fmt.Errorf("open pid %d: %w", pid, err)
	}
	if err := p.Kill(); err != nil {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	return nil
}
