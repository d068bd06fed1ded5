package instance

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// daemonProcessName is the executable name CheckExistingInstance verifies
// a live PID against, so a reused PID never gets mistaken for our own
// daemon.
const daemonProcessName = binaryName

// InstanceManager handles single-daemon lifecycle bookkeeping: the PID
// file that records who's running, and the exclusive lock that stops two
// daemons from racing to bind the same state.
type InstanceManager struct {
	pidFilePath string
	statePath   string
	port        int

	acquiredLock bool
	lockState    interface{} // platform-specific handle; see lock_unix.go / lock_windows.go
}

// InstanceInfo describes a running (or recently running) daemon found via
// its PID file.
type InstanceInfo struct {
	PID          int
	Port         int
	StartTime    time.Time
	IsRunning    bool
	IsResponding bool
	Version      string
	BasePath     string
}

// PIDFileData is the on-disk JSON shape of the PID file.
type PIDFileData struct {
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	StartedAt time.Time `json:"started_at"`
	Version   string    `json:"version"`
	BasePath  string    `json:"base_path"`
	Hostname  string    `json:"hostname"`
}

// NewManager creates an instance manager rooted at pidFilePath.
func NewManager(pidFilePath, statePath string, port int) *InstanceManager {
	return &InstanceManager{
		pidFilePath: pidFilePath,
		statePath:   statePath,
		port:        port,
	}
}

// CheckExistingInstance reports whether a daemon instance is already
// running, based on the PID file plus a live process + name check.
func (m *InstanceManager) CheckExistingInstance() (*InstanceInfo, error) {
	pidData, err := m.ReadPIDFile()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read PID file: %w", err)
	}

	running, err := IsProcessRunning(pidData.PID)
	if err != nil {
		return nil, fmt.Errorf("failed to check process: %w", err)
	}
	if !running {
		fmt.Printf("Detected stale PID file (process %d not running)\n", pidData.PID)
		m.RemovePIDFile()
		return nil, nil
	}

	name, err := GetProcessName(pidData.PID)
	if err != nil {
		fmt.Printf("Warning: Failed to get process name for PID %d: %v\n", pidData.PID, err)
	} else if name != daemonProcessName {
		fmt.Printf("Detected PID reuse (process %d is %s, not %s)\n", pidData.PID, name, daemonProcessName)
		m.RemovePIDFile()
		return nil, nil
	}

	responding := HealthCheck(pidData.Port) == nil

	return &InstanceInfo{
		PID:          pidData.PID,
		Port:         pidData.Port,
		StartTime:    pidData.StartedAt,
		IsRunning:    true,
		IsResponding: responding,
		Version:      pidData.Version,
		BasePath:     pidData.BasePath,
	}, nil
}

// WritePIDFile records the running daemon's identity to disk.
func (m *InstanceManager) WritePIDFile(pid, port int, basePath string) error {
	hostname, _ := os.Hostname()

	data := PIDFileData{
		PID:       pid,
		Port:      port,
		StartedAt: time.Now(),
		Version:   "1.0.0",
		BasePath:  basePath,
		Hostname:  hostname,
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal PID data: %w", err)
	}
	if err := os.WriteFile(m.pidFilePath, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// ReadPIDFile reads and parses the PID file.
func (m *InstanceManager) ReadPIDFile() (*PIDFileData, error) {
	jsonData, err := os.ReadFile(m.pidFilePath)
	if err != nil {
		return nil, err
	}
	var data PIDFileData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to parse PID file: %w", err)
	}
	return &data, nil
}

// RemovePIDFile deletes the PID file, ignoring a not-exist error.
func (m *InstanceManager) RemovePIDFile() error {
	if err := os.Remove(m.pidFilePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// GetPort returns the port this manager is configured for.
func (m *InstanceManager) GetPort() int {
	return m.port
}

// SetPort updates the port this manager is configured for.
func (m *InstanceManager) SetPort(port int) {
	m.port = port
}
