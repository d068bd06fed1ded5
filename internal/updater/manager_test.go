package updater

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeTestZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write zip: %v", err)
	}
}

func TestApplySingleComponentInstallsAndRecordsVersion(t *testing.T) {
	root := t.TempDir()
	staging := filepath.Join(root, "staging")

	m := NewUpdateManager("owner", "repo", root, staging, nil)
	m.resolved["module-test_game"] = ResolvedComponent{
		LatestVersion: "2.0.0",
		InstallDir:    "modules/test_game",
		AssetName:     "module-test_game.zip",
	}

	component := Component{Kind: "module", Name: "test_game"}
	writeTestZip(t, m.stagedPath(component, "2.0.0"), map[string]string{
		"module.toml": "name = \"test_game\"",
	})

	result, err := m.ApplySingleComponent(component)
	if err != nil {
		t.Fatalf("ApplySingleComponent: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}

	installed := filepath.Join(root, "modules/test_game", "module.toml")
	if _, err := os.Stat(installed); err != nil {
		t.Fatalf("expected %s to exist: %v", installed, err)
	}
	if v := m.InstalledVersion(component); v != "2.0.0" {
		t.Fatalf("installed version = %q, want 2.0.0", v)
	}
}

func TestApplySingleComponentRollsBackOnBadZip(t *testing.T) {
	root := t.TempDir()
	staging := filepath.Join(root, "staging")

	m := NewUpdateManager("owner", "repo", root, staging, nil)
	installDir := filepath.Join(root, "modules/test_game")
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(installDir, "module.toml"), []byte("original"), 0o644); err != nil {
		t.Fatalf("seed original file: %v", err)
	}

	m.resolved["module-test_game"] = ResolvedComponent{
		LatestVersion: "2.0.0",
		InstallDir:    "modules/test_game",
		AssetName:     "module-test_game.zip",
	}
	component := Component{Kind: "module", Name: "test_game"}

	badPath := m.stagedPath(component, "2.0.0")
	if err := os.MkdirAll(filepath.Dir(badPath), 0o755); err != nil {
		t.Fatalf("mkdir staging: %v", err)
	}
	if err := os.WriteFile(badPath, []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("write bad zip: %v", err)
	}

	result, err := m.ApplySingleComponent(component)
	if err != nil {
		t.Fatalf("ApplySingleComponent returned unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure applying a corrupt zip")
	}

	data, err := os.ReadFile(filepath.Join(installDir, "module.toml"))
	if err != nil {
		t.Fatalf("expected original file restored: %v", err)
	}
	if string(data) != "original" {
		t.Fatalf("restored content = %q, want \"original\"", data)
	}
}

func TestSemVerCompareDrivesUpdateAvailable(t *testing.T) {
	root := t.TempDir()
	m := NewUpdateManager("owner", "repo", root, filepath.Join(root, "staging"), nil)
	m.installed["core_daemon"] = "1.0.0"
	m.manifest = ReleaseManifest{
		Components: map[string]ComponentInfo{
			"core_daemon": {Version: "1.1.0", Asset: "daemon.zip"},
		},
	}
	m.resolved["core_daemon"] = ResolvedComponent{LatestVersion: "1.1.0"}

	pending := m.GetPendingComponents()
	if len(pending) != 1 || pending[0].Component.Kind != "daemon" {
		t.Fatalf("expected daemon pending update, got %+v", pending)
	}
}
