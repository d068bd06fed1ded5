// Package registry loads module.toml manifests and resolves the aliases
// they declare — module aliases ("tg", "테겜" -> "test_game") and, within
// a module, per-command aliases ("말하기"/"speak" -> "say").
package registry

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// LifecycleCommands are universal across every module and are never part
// of a module's own command table.
var LifecycleCommands = []string{"start", "stop", "restart", "status"}

// CommandInput describes one field a module command accepts.
type CommandInput struct {
	Name     string `toml:"name"`
	Type     string `toml:"type"` // "text", "number", "select", "password", "file"
	Required bool   `toml:"required"`
}

// Command is one entry from a module's [[commands.fields]] table.
type Command struct {
	Name        string         `toml:"name"`
	Description string         `toml:"description"`
	Method      string         `toml:"method"` // "rest", "rcon", "stdin", "dual"
	Inputs      []CommandInput `toml:"inputs"`
}

// MigrationItem is one glob pattern classified by what kind of data it
// matches, used by the migration scanner to group discovered files.
type MigrationItem struct {
	Pattern string `toml:"pattern"`
	Kind    string `toml:"kind"` // "world", "config", "mods", "logs", "other"
	Label   string `toml:"label"`
}

// Migration is a module's heuristics for detecting and classifying an
// existing native install, read from module.toml's [migration] section.
type Migration struct {
	CommonPaths     []string        `toml:"common_paths"`
	ProcessPatterns []string        `toml:"process_patterns"`
	Items           []MigrationItem `toml:"items"`
}

// StartProfile describes how to launch a module's server: an argv
// template (each entry may contain `{{setting_name}}` placeholders filled
// from the instance's Settings map plus the fixed fields "port" and
// "working_dir") and extra environment variables passed through verbatim.
type StartProfile struct {
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
	StopCmd string            `toml:"stop_command"`
}

// Module is everything parsed out of one module.toml.
type Module struct {
	Name            string       `json:"name"`
	GameName        string       `json:"game_name"`
	DisplayName     string       `json:"display_name"`
	InteractionMode string       `json:"interaction_mode"` // "console" or "commands"
	DefaultPort     int          `json:"default_port,omitempty"`
	ExecutablePath  string       `json:"executable_path,omitempty"`
	InstallSubdir   string       `json:"install_subdir"`
	RequiresEULA    bool         `json:"requires_eula"`
	Commands        []Command    `json:"commands,omitempty"`
	Migration       Migration    `json:"migration"`
	Start           StartProfile `json:"start"`
}

// manifest mirrors module.toml's shape for BurntSushi/toml decoding.
type manifest struct {
	Module struct {
		Name           string `toml:"name"`
		GameName       string `toml:"game_name"`
		DisplayName    string `toml:"display_name"`
		DefaultPort    int    `toml:"default_port"`
		ExecutablePath string `toml:"executable_path"`
	} `toml:"module"`
	Protocols struct {
		InteractionMode string `toml:"interaction_mode"`
	} `toml:"protocols"`
	Aliases struct {
		ModuleAliases []string              `toml:"module_aliases"`
		Commands      map[string]aliasEntry `toml:"commands"`
	} `toml:"aliases"`
	Commands struct {
		Fields []Command `toml:"fields"`
	} `toml:"commands"`
	Install struct {
		InstallSubdir string `toml:"install_subdir"`
		RequiresEULA  bool   `toml:"requires_eula"`
	} `toml:"install"`
	Migration Migration    `toml:"migration"`
	Start     StartProfile `toml:"start"`
}

type aliasEntry struct {
	Aliases []string `toml:"aliases"`
}

// Registry is the in-memory alias table built from every module.toml
// found under a modules directory.
type Registry struct {
	modules      []Module
	aliasToName  map[string]string            // lowercase alias -> canonical module name
	cmdAliases   map[string]map[string]string // module name -> (lowercase alias -> canonical command)
}

// Load scans modulesDir for <name>/module.toml files and builds the
// alias tables. A missing directory, or one with no manifests, yields an
// empty (not nil-panicking) Registry, matching the original loader's
// tolerant behavior.
func Load(modulesDir string) *Registry {
	reg := &Registry{
		aliasToName: make(map[string]string),
		cmdAliases:  make(map[string]map[string]string),
	}

	entries, err := os.ReadDir(modulesDir)
	if err != nil {
		return reg
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		tomlPath := filepath.Join(modulesDir, entry.Name(), "module.toml")
		if _, err := os.Stat(tomlPath); err != nil {
			continue
		}

		var m manifest
		if _, err := toml.DecodeFile(tomlPath, &m); err != nil {
			continue
		}

		name := m.Module.Name
		if name == "" {
			continue
		}
		gameName := m.Module.GameName
		if gameName == "" {
			gameName = name
		}
		displayName := m.Module.DisplayName
		if displayName == "" {
			displayName = name
		}

		reg.aliasToName[strings.ToLower(name)] = name
		reg.aliasToName[strings.ToLower(gameName)] = name
		reg.aliasToName[strings.ToLower(displayName)] = name
		for _, alias := range m.Aliases.ModuleAliases {
			reg.aliasToName[strings.ToLower(alias)] = name
		}

		cmdAliases := make(map[string]string)
		for cmdName, entry := range m.Aliases.Commands {
			cmdAliases[strings.ToLower(cmdName)] = cmdName
			for _, alias := range entry.Aliases {
				cmdAliases[strings.ToLower(alias)] = cmdName
			}
		}
		reg.cmdAliases[name] = cmdAliases

		installSubdir := m.Install.InstallSubdir
		if installSubdir == "" {
			installSubdir = "server"
		}

		reg.modules = append(reg.modules, Module{
			Name:            name,
			GameName:        gameName,
			DisplayName:     displayName,
			InteractionMode: m.Protocols.InteractionMode,
			DefaultPort:     m.Module.DefaultPort,
			ExecutablePath:  m.Module.ExecutablePath,
			InstallSubdir:   installSubdir,
			RequiresEULA:    m.Install.RequiresEULA,
			Commands:        m.Commands.Fields,
			Migration:       m.Migration,
			Start:           m.Start,
		})
	}

	return reg
}

// ResolveModuleName resolves input (a canonical name or any alias) to the
// module's canonical name.
func (r *Registry) ResolveModuleName(input string) (string, bool) {
	name, ok := r.aliasToName[strings.ToLower(input)]
	return name, ok
}

// GetModule returns the module by canonical name.
func (r *Registry) GetModule(name string) (*Module, bool) {
	for i := range r.modules {
		if r.modules[i].Name == name {
			return &r.modules[i], true
		}
	}
	return nil, false
}

// ResolveCommand resolves input (a command name or alias) within
// moduleName to the command's canonical name.
func (r *Registry) ResolveCommand(moduleName, input string) (string, bool) {
	aliases, ok := r.cmdAliases[moduleName]
	if !ok {
		return "", false
	}
	name, ok := aliases[strings.ToLower(input)]
	return name, ok
}

// GetCommandDef returns the full command definition for a canonical
// command name within a module.
func (r *Registry) GetCommandDef(moduleName, cmdName string) (*Command, bool) {
	mod, ok := r.GetModule(moduleName)
	if !ok {
		return nil, false
	}
	for i := range mod.Commands {
		if mod.Commands[i].Name == cmdName {
			return &mod.Commands[i], true
		}
	}
	return nil, false
}

// ModuleNames returns every registered module's canonical name.
func (r *Registry) ModuleNames() []string {
	names := make([]string, len(r.modules))
	for i, m := range r.modules {
		names[i] = m.Name
	}
	return names
}

// IsLifecycleCommand reports whether name is one of the universal
// lifecycle commands rather than a module-declared one.
func IsLifecycleCommand(name string) bool {
	for _, c := range LifecycleCommands {
		if c == name {
			return true
		}
	}
	return false
}
