// Package migration scans an existing native (non-saba-chan) server
// install, classifies its files against a module's declared heuristics,
// and copies or moves the selected ones into a new instance directory.
package migration

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sabachan/sabachan/internal/registry"
)

// Kind classifies one discovered data item.
type Kind string

const (
	KindWorld  Kind = "world"
	KindConfig Kind = "config"
	KindMods   Kind = "mods"
	KindLogs   Kind = "logs"
	KindOther  Kind = "other"
)

// defaultSelected reports whether items of this kind are selected by
// default in a freshly scanned plan: world, config and mods data
// travels; logs and unclassified items don't.
func defaultSelected(k Kind) bool {
	switch k {
	case KindWorld, KindConfig, KindMods:
		return true
	default:
		return false
	}
}

// Item is one file or directory discovered during a scan.
type Item struct {
	Path     string `json:"path"` // absolute path under the source dir
	Kind     Kind   `json:"kind"`
	Label    string `json:"label"`
	SizeB    int64  `json:"size_bytes"`
	Selected bool   `json:"selected"`
}

// Plan is the result of scanning a source directory, ready for review
// (toggling Items[i].Selected) before Execute.
type Plan struct {
	ModuleName string `json:"module_name"`
	SourceDir  string `json:"source_dir"`
	Items      []Item `json:"items"`
}

// Scan walks sourceDir, matching every entry against mod's declared
// migration items (glob patterns classified by kind) and returns a Plan
// the caller can edit before Execute. Unmatched files are reported as
// Kind "other" with Selected=false so nothing is silently dropped from
// view, but nothing unclassified is migrated unless the caller opts in.
func Scan(mod *registry.Module, sourceDir string) (*Plan, error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("migration: source dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("migration: %s is not a directory", sourceDir)
	}

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("migration: read source dir: %w", err)
	}

	plan := &Plan{ModuleName: mod.Name, SourceDir: sourceDir}
	for _, entry := range entries {
		kind, label := classify(mod, entry.Name())
		size, err := sizeOf(filepath.Join(sourceDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		plan.Items = append(plan.Items, Item{
			Path:     filepath.Join(sourceDir, entry.Name()),
			Kind:     kind,
			Label:    label,
			SizeB:    size,
			Selected: defaultSelected(kind),
		})
	}
	return plan, nil
}

// classify matches name against the module's declared migration items
// (in declaration order, first match wins), falling back to "other".
func classify(mod *registry.Module, name string) (Kind, string) {
	for _, item := range mod.Migration.Items {
		if matched, _ := filepath.Match(item.Pattern, name); matched {
			return Kind(item.Kind), item.Label
		}
	}
	return KindOther, name
}

// sizeOf returns the total size of a file, or the recursive total of a
// directory's contents.
func sizeOf(path string) (int64, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, fmt.Errorf("migration: stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	var total int64
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("migration: walk %s: %w", path, err)
	}
	return total, nil
}

// Result summarizes an executed migration.
type Result struct {
	ItemsMigrated []string `json:"items_migrated"`
	ItemsSkipped  []string `json:"items_skipped"`
	DestDir       string   `json:"dest_dir"`
}

// Execute copies (or moves, if moveFiles) every selected item in plan
// into destDir, which the caller has already created as the new
// instance's install subdirectory.
func Execute(plan *Plan, destDir string, moveFiles bool) (*Result, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("migration: mkdir dest: %w", err)
	}

	result := &Result{DestDir: destDir}
	for _, item := range plan.Items {
		if !item.Selected {
			result.ItemsSkipped = append(result.ItemsSkipped, item.Path)
			continue
		}

		dest := filepath.Join(destDir, filepath.Base(item.Path))
		if err := transfer(item.Path, dest, moveFiles); err != nil {
			return nil, fmt.Errorf("migration: transfer %s: %w", item.Path, err)
		}
		result.ItemsMigrated = append(result.ItemsMigrated, item.Path)
	}
	return result, nil
}

// transfer moves src to dest if move is true, falling back to copy+remove
// when rename fails (typically because src and dest are on different
// filesystems); otherwise it always copies.
func transfer(src, dest string, move bool) error {
	if move {
		if err := os.Rename(src, dest); err == nil {
			return nil
		}
		if err := copyAny(src, dest); err != nil {
			return err
		}
		return os.RemoveAll(src)
	}
	return copyAny(src, dest)
}

func copyAny(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return copyDir(src, dest)
	}
	return copyFile(src, dest, info.Mode())
}

func copyDir(src, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		destPath := filepath.Join(dest, entry.Name())
		if entry.IsDir() {
			if err := copyDir(srcPath, destPath); err != nil {
				return err
			}
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		if err := copyFile(srcPath, destPath, info.Mode()); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
