package supervisor

import (
	"fmt"

	"github.com/sabachan/sabachan/internal/migration"
)

// ScanMigration scans sourceDir for an existing native install of the
// instance's module, classifying entries against the module's declared
// migration heuristics, and returns a reviewable Plan.
func (s *Supervisor) ScanMigration(name, sourceDir string) (*migration.Plan, error) {
	_, mod, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	return migration.Scan(mod, sourceDir)
}

// ExecuteMigration runs a reviewed Plan's selected items into the
// instance's store directory, moving rather than copying when moveFiles
// is set, and records the result on the activity log.
func (s *Supervisor) ExecuteMigration(name string, plan *migration.Plan, moveFiles bool) (*migration.Result, error) {
	inst, _, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	destDir := s.Store.GetInstanceDir(inst.ID)
	result, err := migration.Execute(plan, destDir, moveFiles)
	if err != nil {
		return nil, err
	}

	s.record(inst.ID, "migration", fmt.Sprintf("migrated %d item(s) into %s, skipped %d", len(result.ItemsMigrated), destDir, len(result.ItemsSkipped)))
	return result, nil
}
