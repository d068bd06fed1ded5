package supervisor

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/sabachan/sabachan/internal/apierr"
	"github.com/sabachan/sabachan/internal/properties"
	"github.com/sabachan/sabachan/internal/types"
)

// ValidationResult reports the outcome of checking an instance's
// readiness to start.
type ValidationResult struct {
	OK       bool     `json:"ok"`
	Problems []string `json:"problems,omitempty"`
}

// ValidateInstance checks that the instance's executable exists, its
// working directory exists, its declared port looks free, and (for
// modules requiring it) the EULA has been accepted.
func (s *Supervisor) ValidateInstance(name string) (ValidationResult, error) {
	inst, mod, err := s.resolve(name)
	if err != nil {
		return ValidationResult{}, err
	}

	var problems []string

	execPath := inst.ExecutablePath
	if execPath == "" {
		execPath = mod.ExecutablePath
	}
	if execPath == "" {
		problems = append(problems, "no executable_path configured")
	} else if _, err := os.Stat(execPath); err != nil {
		problems = append(problems, fmt.Sprintf("executable not found: %s", execPath))
	}

	if inst.WorkingDir != "" {
		if fi, err := os.Stat(inst.WorkingDir); err != nil || !fi.IsDir() {
			problems = append(problems, fmt.Sprintf("working_dir missing: %s", inst.WorkingDir))
		}
	}

	if inst.Port > 0 && !portLooksFree(inst.Port) {
		problems = append(problems, fmt.Sprintf("port %d appears to be in use", inst.Port))
	}

	if mod.RequiresEULA {
		if _, err := os.Stat(filepath.Join(inst.WorkingDir, "eula.txt")); err != nil {
			problems = append(problems, "EULA has not been accepted")
		}
	}

	return ValidationResult{OK: len(problems) == 0, Problems: problems}, nil
}

// portLooksFree does a best-effort local bind probe; it cannot detect a
// port bound to a different interface, hence "looks free" rather than
// a hard guarantee.
func portLooksFree(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

// Diagnosis bundles recent error-level console output with tracker state
// for support/triage.
type Diagnosis struct {
	Status     types.InstanceStatus `json:"status"`
	PID        int                  `json:"pid,omitempty"`
	StartedAt  time.Time            `json:"started_at,omitempty"`
	ErrorLines []types.LogLine      `json:"error_lines"`
}

// DiagnoseInstance returns the instance's tracker state plus the last n
// error-or-above console lines, if it has a managed process.
func (s *Supervisor) DiagnoseInstance(name string, n int) (Diagnosis, error) {
	inst, _, err := s.resolve(name)
	if err != nil {
		return Diagnosis{}, err
	}

	d := Diagnosis{Status: inst.Status}
	if pid, err := s.Tracker.GetPID(inst.ID); err == nil {
		d.PID = pid
	}
	if t, err := s.Tracker.GetStartTime(inst.ID); err == nil {
		d.StartedAt = t
	}

	if mp, ok := s.Procs.Get(inst.ID); ok {
		recent := mp.GetRecentConsole(500)
		for _, line := range recent {
			if line.Level == types.LogLevelError || line.Level == types.LogLevelFatal {
				d.ErrorLines = append(d.ErrorLines, line)
			}
		}
		if len(d.ErrorLines) > n {
			d.ErrorLines = d.ErrorLines[len(d.ErrorLines)-n:]
		}
	}
	return d, nil
}

// ManageProperties reads, merges, or resets an instance's
// server.properties-style file.
func (s *Supervisor) ManageProperties(name, action string, settings map[string]string) (map[string]string, error) {
	inst, _, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	switch action {
	case "read":
		return properties.Read(inst.WorkingDir)
	case "write":
		return properties.Write(inst.WorkingDir, settings)
	case "reset":
		return properties.Reset(inst.WorkingDir, settings)
	default:
		return nil, fmt.Errorf("%w: unknown properties action %q", apierr.ErrValidation, action)
	}
}

// AcceptEULA writes the EULA marker file a module requires before start.
func (s *Supervisor) AcceptEULA(name string) error {
	inst, _, err := s.resolve(name)
	if err != nil {
		return err
	}
	return properties.AcceptEULA(inst.WorkingDir)
}

// ServerStatus is the reply shape for the status endpoint.
type ServerStatus struct {
	Name      string               `json:"name"`
	Module    string               `json:"module"`
	Status    types.InstanceStatus `json:"status"`
	PID       int                  `json:"pid,omitempty"`
	StartedAt time.Time            `json:"started_at,omitempty"`
}

// GetServerStatus reports an instance's tracked state.
func (s *Supervisor) GetServerStatus(name string) (ServerStatus, error) {
	inst, mod, err := s.resolve(name)
	if err != nil {
		return ServerStatus{}, err
	}

	status := ServerStatus{Name: inst.Name, Module: mod.Name, Status: inst.Status}
	if pid, err := s.Tracker.GetPID(inst.ID); err == nil {
		status.PID = pid
		status.Status = types.StatusRunning
	}
	if t, err := s.Tracker.GetStartTime(inst.ID); err == nil {
		status.StartedAt = t
	}
	return status, nil
}
