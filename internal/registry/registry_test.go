package registry

import (
	"os"
	"path/filepath"
	"testing"
)

const testManifest = `
[module]
name = "test_game"
game_name = "Test Game"
display_name = "테스트 게임"

[protocols]
interaction_mode = "console"

[aliases]
module_aliases = ["tg", "테겜"]

[aliases.commands.say]
aliases = ["말하기", "speak"]

[aliases.commands.save]
aliases = ["저장", "backup"]

[[commands.fields]]
name = "say"
description = "Send a message"
method = "rcon"

[[commands.fields]]
name = "save"
description = "Save the world"
method = "rcon"
`

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	modDir := filepath.Join(dir, "test_game")
	if err := os.MkdirAll(modDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(modDir, "module.toml"), []byte(testManifest), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return Load(dir)
}

func TestLoadModules(t *testing.T) {
	reg := newTestRegistry(t)
	if len(reg.modules) != 1 {
		t.Fatalf("len(modules) = %d, want 1", len(reg.modules))
	}
	m := reg.modules[0]
	if m.Name != "test_game" || m.GameName != "Test Game" || m.DisplayName != "테스트 게임" {
		t.Errorf("module = %+v, unexpected fields", m)
	}
}

func TestModuleNames(t *testing.T) {
	reg := newTestRegistry(t)
	names := reg.ModuleNames()
	if len(names) != 1 || names[0] != "test_game" {
		t.Errorf("ModuleNames() = %v, want [test_game]", names)
	}
}

func TestResolveModuleNameCanonical(t *testing.T) {
	reg := newTestRegistry(t)
	if name, ok := reg.ResolveModuleName("test_game"); !ok || name != "test_game" {
		t.Errorf("ResolveModuleName(test_game) = %q, %v", name, ok)
	}
}

func TestResolveModuleNameAlias(t *testing.T) {
	reg := newTestRegistry(t)
	cases := map[string]string{
		"tg":         "test_game",
		"테겜":         "test_game",
		"test game":  "test_game",
		"테스트 게임":     "test_game",
	}
	for input, want := range cases {
		if got, ok := reg.ResolveModuleName(input); !ok || got != want {
			t.Errorf("ResolveModuleName(%q) = %q, %v; want %q", input, got, ok, want)
		}
	}
}

func TestResolveModuleNameCaseInsensitive(t *testing.T) {
	reg := newTestRegistry(t)
	if got, ok := reg.ResolveModuleName("TEST_GAME"); !ok || got != "test_game" {
		t.Errorf("ResolveModuleName(TEST_GAME) = %q, %v", got, ok)
	}
	if got, ok := reg.ResolveModuleName("TG"); !ok || got != "test_game" {
		t.Errorf("ResolveModuleName(TG) = %q, %v", got, ok)
	}
}

func TestResolveModuleNameUnknown(t *testing.T) {
	reg := newTestRegistry(t)
	if _, ok := reg.ResolveModuleName("unknown_mod"); ok {
		t.Errorf("ResolveModuleName(unknown_mod) should miss")
	}
}

func TestResolveCommandCanonical(t *testing.T) {
	reg := newTestRegistry(t)
	if got, ok := reg.ResolveCommand("test_game", "say"); !ok || got != "say" {
		t.Errorf("ResolveCommand(say) = %q, %v", got, ok)
	}
	if got, ok := reg.ResolveCommand("test_game", "save"); !ok || got != "save" {
		t.Errorf("ResolveCommand(save) = %q, %v", got, ok)
	}
}

func TestResolveCommandAlias(t *testing.T) {
	reg := newTestRegistry(t)
	cases := map[string]string{
		"말하기": "say",
		"speak": "say",
		"저장":   "save",
		"backup": "save",
	}
	for input, want := range cases {
		if got, ok := reg.ResolveCommand("test_game", input); !ok || got != want {
			t.Errorf("ResolveCommand(%q) = %q, %v; want %q", input, got, ok, want)
		}
	}
}

func TestResolveCommandUnknown(t *testing.T) {
	reg := newTestRegistry(t)
	if _, ok := reg.ResolveCommand("test_game", "nosuchcmd"); ok {
		t.Errorf("ResolveCommand(nosuchcmd) should miss")
	}
	if _, ok := reg.ResolveCommand("no_module", "say"); ok {
		t.Errorf("ResolveCommand on unknown module should miss")
	}
}

func TestGetModule(t *testing.T) {
	reg := newTestRegistry(t)
	m, ok := reg.GetModule("test_game")
	if !ok {
		t.Fatalf("GetModule(test_game) missing")
	}
	if len(m.Commands) != 2 {
		t.Errorf("len(Commands) = %d, want 2", len(m.Commands))
	}
	if _, ok := reg.GetModule("nonexistent"); ok {
		t.Errorf("GetModule(nonexistent) should miss")
	}
}

func TestGetCommandDef(t *testing.T) {
	reg := newTestRegistry(t)
	cmd, ok := reg.GetCommandDef("test_game", "say")
	if !ok {
		t.Fatalf("GetCommandDef(say) missing")
	}
	if cmd.Method != "rcon" || cmd.Description != "Send a message" {
		t.Errorf("GetCommandDef(say) = %+v, unexpected fields", cmd)
	}
	if _, ok := reg.GetCommandDef("test_game", "nosuch"); ok {
		t.Errorf("GetCommandDef(nosuch) should miss")
	}
}

func TestLoadEmptyDir(t *testing.T) {
	reg := Load(t.TempDir())
	if len(reg.modules) != 0 || len(reg.ModuleNames()) != 0 {
		t.Errorf("Load(empty dir) should yield no modules")
	}
}

func TestLoadNonexistentDir(t *testing.T) {
	reg := Load("/nonexistent/path/that/does/not/exist")
	if len(reg.modules) != 0 {
		t.Errorf("Load(nonexistent dir) should yield no modules")
	}
}

func TestLifecycleCommands(t *testing.T) {
	for _, c := range []string{"start", "stop", "restart", "status"} {
		if !IsLifecycleCommand(c) {
			t.Errorf("IsLifecycleCommand(%q) = false, want true", c)
		}
	}
	if IsLifecycleCommand("say") {
		t.Errorf("IsLifecycleCommand(say) = true, want false")
	}
}
