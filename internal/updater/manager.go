package updater

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// UpdateManager tracks installed component versions, resolves the
// newest available version of each against GitHub releases, and applies
// staged downloads in place.
type UpdateManager struct {
	mu sync.RWMutex

	client            *GitHubClient
	includePrerelease bool

	installRoot string
	stagingDir  string
	versionsPath string

	installed map[string]string // manifest key -> installed version
	resolved  map[string]ResolvedComponent
	manifest  ReleaseManifest

	lastCheck time.Time
	nextCheck time.Time

	// moduleNames reports the modules currently installed, so a version
	// check also covers module components without the caller having to
	// enumerate them up front.
	moduleNames func() []string
}

// NewUpdateManager builds a manager rooted at installRoot (where
// components are installed) staging downloads under stagingDir.
func NewUpdateManager(owner, repo, installRoot, stagingDir string, moduleNames func() []string) *UpdateManager {
	m := &UpdateManager{
		client:       NewGitHubClient(owner, repo),
		installRoot:  installRoot,
		stagingDir:   stagingDir,
		versionsPath: filepath.Join(installRoot, "versions.json"),
		installed:    make(map[string]string),
		resolved:     make(map[string]ResolvedComponent),
		moduleNames:  moduleNames,
	}
	m.loadInstalledVersions()
	return m
}

// SetIncludePrerelease controls whether prerelease GitHub releases are
// considered during resolution.
func (m *UpdateManager) SetIncludePrerelease(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.includePrerelease = v
}

func (m *UpdateManager) loadInstalledVersions() {
	data, err := os.ReadFile(m.versionsPath)
	if err != nil {
		return
	}
	var versions map[string]string
	if err := json.Unmarshal(data, &versions); err != nil {
		log.Printf("[updater] discarding corrupt %s: %v", m.versionsPath, err)
		return
	}
	m.installed = versions
}

func (m *UpdateManager) saveInstalledVersions() error {
	if err := os.MkdirAll(filepath.Dir(m.versionsPath), 0o755); err != nil {
		return fmt.Errorf("updater: mkdir for versions.json: %w", err)
	}
	data, err := json.MarshalIndent(m.installed, "", "  ")
	if err != nil {
		return fmt.Errorf("updater: marshal versions.json: %w", err)
	}
	return os.WriteFile(m.versionsPath, data, 0o644)
}

// InstalledVersion returns the recorded installed version of a
// component, or "" if never installed.
func (m *UpdateManager) InstalledVersion(c Component) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.installed[c.ManifestKey()]
}

// CheckForUpdates fetches releases, resolves the latest downloadable
// version of every known component, and compares against what's
// installed.
func (m *UpdateManager) CheckForUpdates() (UpdateStatus, error) {
	releases, err := m.client.FetchReleases(30)
	if err != nil {
		return UpdateStatus{}, err
	}

	m.mu.Lock()
	includePrerelease := m.includePrerelease
	m.mu.Unlock()

	manifest, resolved, err := ResolveComponentsAcrossReleases(releases, includePrerelease)
	if err != nil {
		return UpdateStatus{}, err
	}

	components := []Component{{Kind: "daemon"}, {Kind: "cli"}}
	if m.moduleNames != nil {
		for _, name := range m.moduleNames() {
			components = append(components, Component{Kind: "module", Name: name})
		}
	}

	m.mu.Lock()
	m.manifest = manifest
	m.resolved = resolved
	m.lastCheck = time.Now()
	m.nextCheck = time.Time{}
	m.mu.Unlock()

	var versions []ComponentVersion
	for _, c := range components {
		key := c.ManifestKey()
		info, known := manifest.Components[key]
		if !known {
			continue
		}
		current := m.InstalledVersion(c)
		latestVer, err := ParseSemVer(info.Version)
		updateAvailable := false
		if err == nil {
			if current == "" {
				updateAvailable = true
			} else if currentVer, err2 := ParseSemVer(current); err2 == nil {
				updateAvailable = latestVer.IsNewerThan(currentVer)
			}
		}
		versions = append(versions, ComponentVersion{
			Component:       c,
			Current:         current,
			Latest:          info.Version,
			UpdateAvailable: updateAvailable,
		})
	}

	return UpdateStatus{
		Components: versions,
		LastCheck:  m.lastCheck.Format(time.RFC3339),
	}, nil
}

// GetPendingComponents returns every component from the last check
// whose latest version is newer than what's installed.
func (m *UpdateManager) GetPendingComponents() []ComponentVersion {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pending []ComponentVersion
	for key, info := range m.manifest.Components {
		current := m.installed[key]
		latestVer, err := ParseSemVer(info.Version)
		if err != nil {
			continue
		}
		updateAvailable := current == ""
		if current != "" {
			if currentVer, err2 := ParseSemVer(current); err2 == nil {
				updateAvailable = latestVer.IsNewerThan(currentVer)
			}
		}
		if !updateAvailable {
			continue
		}
		pending = append(pending, ComponentVersion{
			Component: componentFromKey(key),
			Current:   current,
			Latest:    info.Version,
			UpdateAvailable: true,
		})
	}
	return pending
}

func componentFromKey(key string) Component {
	switch key {
	case "core_daemon":
		return Component{Kind: "daemon"}
	case "cli":
		return Component{Kind: "cli"}
	default:
		return Component{Kind: "module", Name: trimModulePrefix(key)}
	}
}

func trimModulePrefix(key string) string {
	const prefix = "module-"
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):]
	}
	return key
}

// stagedPath is where a component's downloaded asset is kept pending apply.
func (m *UpdateManager) stagedPath(c Component, version string) string {
	return filepath.Join(m.stagingDir, fmt.Sprintf("%s-%s.zip", c.ManifestKey(), version))
}

// DownloadComponent downloads one component's resolved asset into the
// staging directory.
func (m *UpdateManager) DownloadComponent(c Component) error {
	m.mu.RLock()
	rc, ok := m.resolved[c.ManifestKey()]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("updater: no resolved download source for %s", c.DisplayName())
	}

	data, err := m.client.DownloadAsset(Asset{
		Name:               rc.AssetName,
		BrowserDownloadURL: rc.DownloadURL,
	})
	if err != nil {
		return err
	}

	dest := m.stagedPath(c, rc.LatestVersion)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("updater: mkdir staging dir: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("updater: write staged asset: %w", err)
	}
	return nil
}

// DownloadAvailableUpdates downloads every component with an update
// pending, returning the display names of what it staged.
func (m *UpdateManager) DownloadAvailableUpdates() ([]string, error) {
	var downloaded []string
	for _, cv := range m.GetPendingComponents() {
		if err := m.DownloadComponent(cv.Component); err != nil {
			return downloaded, err
		}
		downloaded = append(downloaded, cv.Component.DisplayName())
	}
	return downloaded, nil
}

// ApplySingleComponent extracts a component's staged zip over its
// install directory. The existing install directory is renamed to a
// ".bak" sibling first; on extraction failure the ".bak" is restored so
// a failed apply never leaves a component half-installed.
func (m *UpdateManager) ApplySingleComponent(c Component) (ComponentApplyResult, error) {
	m.mu.RLock()
	rc, ok := m.resolved[c.ManifestKey()]
	m.mu.RUnlock()
	if !ok {
		return ComponentApplyResult{}, fmt.Errorf("updater: no resolved component for %s", c.DisplayName())
	}

	staged := m.stagedPath(c, rc.LatestVersion)
	if _, err := os.Stat(staged); err != nil {
		return ComponentApplyResult{}, fmt.Errorf("updater: %s not downloaded: %w", c.DisplayName(), err)
	}

	installDir := m.installRoot
	if rc.InstallDir != "" {
		installDir = filepath.Join(m.installRoot, rc.InstallDir)
	}
	backupDir := installDir + ".bak"

	if _, err := os.Stat(installDir); err == nil {
		os.RemoveAll(backupDir)
		if err := os.Rename(installDir, backupDir); err != nil {
			return ComponentApplyResult{}, fmt.Errorf("updater: back up %s: %w", installDir, err)
		}
	}

	if err := extractZip(staged, installDir); err != nil {
		os.RemoveAll(installDir)
		if _, statErr := os.Stat(backupDir); statErr == nil {
			os.Rename(backupDir, installDir)
		}
		return ComponentApplyResult{
			Component: c,
			Success:   false,
			Message:   err.Error(),
		}, nil
	}
	os.RemoveAll(backupDir)

	m.mu.Lock()
	m.installed[c.ManifestKey()] = rc.LatestVersion
	saveErr := m.saveInstalledVersions()
	m.mu.Unlock()
	if saveErr != nil {
		log.Printf("[updater] applied %s but failed to persist versions.json: %v", c.DisplayName(), saveErr)
	}

	return ComponentApplyResult{
		Component:     c,
		Success:       true,
		Message:       fmt.Sprintf("%s updated to %s", c.DisplayName(), rc.LatestVersion),
		RestartNeeded: c.Kind == "daemon" || c.Kind == "cli",
	}, nil
}

// ApplyUpdates applies every pending component, stopping at the first
// failure so a caller can decide whether to retry or roll forward.
func (m *UpdateManager) ApplyUpdates() ([]string, error) {
	var applied []string
	for _, cv := range m.GetPendingComponents() {
		result, err := m.ApplySingleComponent(cv.Component)
		if err != nil {
			return applied, err
		}
		if !result.Success {
			return applied, fmt.Errorf("updater: apply %s: %s", cv.Component.DisplayName(), result.Message)
		}
		applied = append(applied, cv.Component.DisplayName())
	}
	return applied, nil
}

// extractZip unpacks src into destDir, creating it if necessary. Entries
// with a path that would escape destDir (via ".." components) are
// rejected, matching the original implementation's zip-slip guard.
func extractZip(src, destDir string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("updater: open %s: %w", src, err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("updater: mkdir %s: %w", destDir, err)
	}

	for _, f := range r.File {
		target := filepath.Join(destDir, f.Name)
		if !isWithinDir(destDir, target) {
			return fmt.Errorf("updater: zip entry %q escapes destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractZipFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractZipFile(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("updater: open zip entry %s: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return fmt.Errorf("updater: create %s: %w", target, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("updater: write %s: %w", target, err)
	}
	return nil
}

func isWithinDir(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !filepathHasDotDotPrefix(rel)
}

func filepathHasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.' &&
		(len(rel) == 2 || os.IsPathSeparator(rel[2]))
}
