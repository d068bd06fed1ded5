package updater

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	gopsprocess "github.com/shirou/gopsutil/v3/process"
)

// ApplyPhase is one step of a foreground apply run.
type ApplyPhase string

const (
	PhasePreparing           ApplyPhase = "preparing"
	PhaseWaitingForProcesses ApplyPhase = "waiting_for_processes"
	PhaseApplying            ApplyPhase = "applying"
	PhaseRestarting          ApplyPhase = "restarting"
	PhaseCompleted           ApplyPhase = "completed"
	PhaseFailed              ApplyPhase = "failed"
)

// ApplyPreparation previews what a full apply run would do, before
// committing to it.
type ApplyPreparation struct {
	Components             []string
	RequiresRestart         bool
	RequiresDaemonRestart   bool
	RequiresSelfUpdate      bool
	EstimatedSeconds        int
}

// ApplyProgress is a snapshot of an in-flight apply run.
type ApplyProgress struct {
	Phase            ApplyPhase
	CurrentComponent string
	Total            int
	Done             int
	Message          string
}

// ForegroundApplier runs an apply pass after the daemon (or CLI) that
// depends on the updated files has stopped using them. Module updates
// need no process to stop; daemon/CLI updates do.
type ForegroundApplier struct {
	manager *UpdateManager

	daemonExecutable string
	cliExecutable    string

	progressMu sync.RWMutex
	progress   *ApplyProgress
}

// NewForegroundApplier builds an applier around manager.
func NewForegroundApplier(manager *UpdateManager) *ForegroundApplier {
	return &ForegroundApplier{manager: manager}
}

// SetDaemonExecutable records the daemon binary's path, used to relaunch
// it after a self-update.
func (a *ForegroundApplier) SetDaemonExecutable(path string) { a.daemonExecutable = path }

// SetCLIExecutable records the CLI binary's path.
func (a *ForegroundApplier) SetCLIExecutable(path string) { a.cliExecutable = path }

// Prepare reports what an apply-all run would need to do.
func (a *ForegroundApplier) Prepare() ApplyPreparation {
	pending := a.manager.GetPendingComponents()

	names := make([]string, len(pending))
	requiresRestart := false
	requiresDaemonRestart := false
	for i, cv := range pending {
		names[i] = cv.Component.DisplayName()
		if cv.Component.Kind == "cli" {
			requiresRestart = true
		}
		if cv.Component.Kind == "daemon" {
			requiresDaemonRestart = true
		}
	}

	estimate := len(pending)*5 + boolSeconds(requiresRestart, 10) + boolSeconds(requiresDaemonRestart, 10)

	return ApplyPreparation{
		Components:           names,
		RequiresRestart:       requiresRestart,
		RequiresDaemonRestart: requiresDaemonRestart,
		RequiresSelfUpdate:    requiresRestart,
		EstimatedSeconds:      estimate,
	}
}

func boolSeconds(b bool, seconds int) int {
	if b {
		return seconds
	}
	return 0
}

// Progress returns the current apply run's progress, or nil if none is
// in flight.
func (a *ForegroundApplier) Progress() *ApplyProgress {
	a.progressMu.RLock()
	defer a.progressMu.RUnlock()
	return a.progress
}

func (a *ForegroundApplier) setProgress(p ApplyProgress) {
	a.progressMu.Lock()
	a.progress = &p
	a.progressMu.Unlock()
}

// ApplyModulesOnly applies every pending module component; no process
// needs to stop for these.
func (a *ForegroundApplier) ApplyModulesOnly() ([]string, error) {
	a.setProgress(ApplyProgress{Phase: PhaseApplying, Message: "applying module updates..."})

	var modules []ComponentVersion
	for _, cv := range a.manager.GetPendingComponents() {
		if cv.Component.Kind == "module" {
			modules = append(modules, cv)
		}
	}

	var applied []string
	for i, cv := range modules {
		a.setProgress(ApplyProgress{
			Phase:            PhaseApplying,
			CurrentComponent: cv.Component.DisplayName(),
			Total:            len(modules),
			Done:             i,
			Message:          fmt.Sprintf("applying %s...", cv.Component.DisplayName()),
		})

		result, err := a.manager.ApplySingleComponent(cv.Component)
		if err != nil {
			return applied, err
		}
		if result.Success {
			applied = append(applied, cv.Component.DisplayName())
		}
	}

	a.setProgress(ApplyProgress{
		Phase:   PhaseCompleted,
		Total:   len(modules),
		Done:    len(applied),
		Message: fmt.Sprintf("%d module(s) updated", len(applied)),
	})
	return applied, nil
}

// ApplyAll applies every pending component. Call this only after the
// daemon/CLI processes that need restarting have already stopped.
func (a *ForegroundApplier) ApplyAll() (ApplyResult, error) {
	a.setProgress(ApplyProgress{Phase: PhasePreparing, Message: "preparing update..."})
	a.setProgress(ApplyProgress{Phase: PhaseApplying, Message: "applying update..."})

	applied, err := a.manager.ApplyUpdates()
	if err != nil {
		a.setProgress(ApplyProgress{Phase: PhaseFailed, Message: err.Error()})
		return ApplyResult{}, err
	}

	results := make([]ComponentApplyResult, len(applied))
	for i, name := range applied {
		results[i] = ComponentApplyResult{Message: fmt.Sprintf("%s updated", name)}
	}

	a.setProgress(ApplyProgress{
		Phase:   PhaseCompleted,
		Total:   len(applied),
		Done:    len(applied),
		Message: "update applied",
	})

	return ApplyResult{Results: results}, nil
}

// RelaunchDaemon spawns a fresh daemon process after a self-update,
// detached from the updater's own process tree.
func (a *ForegroundApplier) RelaunchDaemon(afterUpdate bool) error {
	if a.daemonExecutable == "" {
		return fmt.Errorf("updater: no daemon executable configured for relaunch")
	}
	args := []string{}
	if afterUpdate {
		args = append(args, "--after-update")
	}
	return spawnDetached(a.daemonExecutable, args)
}

// RelaunchCLI spawns a fresh CLI process after a self-update.
func (a *ForegroundApplier) RelaunchCLI(args []string, afterUpdate bool) error {
	if a.cliExecutable == "" {
		return fmt.Errorf("updater: no CLI executable configured for relaunch")
	}
	if afterUpdate {
		args = append(append([]string{}, args...), "--after-update")
	}
	return spawnDetached(a.cliExecutable, args)
}

func spawnDetached(executable string, args []string) error {
	cmd := exec.Command(executable, args...)
	setDetachedProcAttr(cmd)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Start()
}

// SelfUpdater spawns the updater binary itself to apply an update to a
// component that's currently running (the daemon or the CLI), then
// expects the caller to exit so the updater can replace its files.
type SelfUpdater struct {
	updaterExecutable string
	component         Component
	stagedPath        string
	relaunchExe       string
	relaunchArgs      []string
}

// NewSelfUpdater builds a SelfUpdater that will apply component from
// stagedPath.
func NewSelfUpdater(updaterExecutable string, component Component, stagedPath string) *SelfUpdater {
	return &SelfUpdater{updaterExecutable: updaterExecutable, component: component, stagedPath: stagedPath}
}

// SetRelaunch configures the executable (and its args) to start back up
// once the self-update completes.
func (s *SelfUpdater) SetRelaunch(exe string, args []string) {
	s.relaunchExe = exe
	s.relaunchArgs = args
}

// Execute spawns the updater binary in apply mode. The caller is
// expected to exit immediately afterward.
func (s *SelfUpdater) Execute() error {
	args := []string{"--cli", "apply", "--component", s.component.ManifestKey(), "--staged", s.stagedPath}
	if s.relaunchExe != "" {
		args = append(args, "--relaunch", s.relaunchExe)
		for _, a := range s.relaunchArgs {
			args = append(args, "--relaunch-arg", a)
		}
	}
	if err := spawnDetached(s.updaterExecutable, args); err != nil {
		return fmt.Errorf("updater: spawn self-updater: %w", err)
	}
	return nil
}

// ProcessChecker answers "is this executable still running", used to
// gate a daemon/CLI self-update on the old process actually having
// exited. gopsutil gives this a single cross-platform implementation
// instead of shelling out to tasklist/pgrep per OS.
type ProcessChecker struct{}

// IsRunning reports whether any process's executable basename matches
// name (case-insensitive, extension-insensitive so "sabachand" matches
// "sabachand.exe" on Windows).
func (ProcessChecker) IsRunning(name string) bool {
	procs, err := gopsprocess.Processes()
	if err != nil {
		return false
	}
	want := strings.ToLower(strings.TrimSuffix(name, ".exe"))
	for _, p := range procs {
		exeName, err := p.Name()
		if err != nil {
			continue
		}
		if strings.ToLower(strings.TrimSuffix(exeName, ".exe")) == want {
			return true
		}
	}
	return false
}

// WaitForExit polls until name is no longer running or timeout elapses,
// returning whether it exited in time.
func (c ProcessChecker) WaitForExit(name string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !c.IsRunning(name) {
			return true
		}
		time.Sleep(500 * time.Millisecond)
	}
	return !c.IsRunning(name)
}

// IsDaemonRunning reports whether the saba-chan daemon process is alive.
func (c ProcessChecker) IsDaemonRunning() bool { return c.IsRunning(daemonProcessName()) }

// IsCLIRunning reports whether the saba-chan CLI process is alive.
func (c ProcessChecker) IsCLIRunning() bool { return c.IsRunning(cliProcessName()) }

func daemonProcessName() string {
	if isWindows() {
		return "sabachand.exe"
	}
	return "sabachand"
}

func cliProcessName() string {
	if isWindows() {
		return "sabachan-cli.exe"
	}
	return "sabachan-cli"
}

func isWindows() bool {
	return os.PathSeparator == '\\'
}
