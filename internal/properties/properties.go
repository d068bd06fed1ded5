// Package properties manages an instance's server.properties-style
// key=value config file: read, write (merge), and reset to a module's
// declared defaults, plus the Minecraft EULA-accept file.
package properties

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const propertiesFileName = "server.properties"

// Read parses workingDir/server.properties into a key-value map. A
// missing file yields an empty map, not an error, matching a freshly
// installed server that hasn't been started yet.
func Read(workingDir string) (map[string]string, error) {
	path := filepath.Join(workingDir, propertiesFileName)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("properties: open %s: %w", path, err)
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("properties: scan %s: %w", path, err)
	}
	return out, nil
}

// Write merges settings into the existing file (or creates one) and
// rewrites it, keys sorted for a deterministic, diffable file.
func Write(workingDir string, settings map[string]string) (map[string]string, error) {
	current, err := Read(workingDir)
	if err != nil {
		return nil, err
	}
	for k, v := range settings {
		current[k] = v
	}
	if err := writeAll(workingDir, current); err != nil {
		return nil, err
	}
	return current, nil
}

// Reset replaces the properties file with exactly defaults, discarding
// any keys not present in defaults.
func Reset(workingDir string, defaults map[string]string) (map[string]string, error) {
	if err := writeAll(workingDir, defaults); err != nil {
		return nil, err
	}
	return defaults, nil
}

func writeAll(workingDir string, settings map[string]string) error {
	if err := os.MkdirAll(workingDir, 0o755); err != nil {
		return fmt.Errorf("properties: mkdir %s: %w", workingDir, err)
	}

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, settings[k])
	}

	path := filepath.Join(workingDir, propertiesFileName)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("properties: write %s: %w", path, err)
	}
	return nil
}

// AcceptEULA writes "eula=true" to workingDir/eula.txt, the file Mojang's
// server refuses to start without.
func AcceptEULA(workingDir string) error {
	path := filepath.Join(workingDir, "eula.txt")
	content := "eula=true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("properties: write %s: %w", path, err)
	}
	return nil
}
