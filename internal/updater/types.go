package updater

import "fmt"

// Component identifies one independently-versioned, independently
// downloadable part of a saba-chan deployment.
type Component struct {
	Kind string // "daemon", "cli", or "module"
	Name string // module name, empty for daemon/cli
}

// ManifestKey is the key this component is looked up under in
// manifest.json ("core_daemon", "cli", or "module-<name>").
func (c Component) ManifestKey() string {
	switch c.Kind {
	case "daemon":
		return "core_daemon"
	case "cli":
		return "cli"
	default:
		return "module-" + c.Name
	}
}

// DisplayName is a human-readable label for logs and notifications.
func (c Component) DisplayName() string {
	switch c.Kind {
	case "daemon":
		return "Daemon"
	case "cli":
		return "CLI"
	default:
		return fmt.Sprintf("Module: %s", c.Name)
	}
}

// ComponentVersion pairs one component's installed and available
// versions.
type ComponentVersion struct {
	Component       Component
	Current         string
	Latest          string
	UpdateAvailable bool
}

// UpdateStatus is the result of a version check: every known
// component's current/latest version and when the check ran.
// CheckForUpdates does not fill in NextCheck; it stays empty.
type UpdateStatus struct {
	Components []ComponentVersion
	LastCheck  string
	NextCheck  string
}

// ComponentApplyResult is the outcome of applying one component's
// staged update.
type ComponentApplyResult struct {
	Component         Component
	Success           bool
	Message           string
	StoppedProcesses  []string
	RestartNeeded     bool
}

// ApplyResult is the outcome of an apply-all run.
type ApplyResult struct {
	Results               []ComponentApplyResult
	SelfUpdateComponents  []Component
}
