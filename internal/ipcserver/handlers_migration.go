package ipcserver

import (
	"fmt"
	"net/http"

	"github.com/sabachan/sabachan/internal/apierr"
	"github.com/sabachan/sabachan/internal/migration"
)

// migrationScanRequest is the body of POST /instance/{id}/migration/scan:
// the directory of an existing native install to classify.
type migrationScanRequest struct {
	SourceDir string `json:"source_dir"`
}

func (s *Server) handleMigrationScan(w http.ResponseWriter, r *http.Request) {
	inst, err := s.lookupInstance(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req migrationScanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", apierr.ErrValidation, err))
		return
	}

	plan, err := s.Supervisor.ScanMigration(inst.Name, req.SourceDir)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// migrationExecuteRequest is the body of POST /instance/{id}/migration/execute:
// a Plan (normally the one returned by scan, with Items[].Selected edited
// by the operator) plus whether to move rather than copy.
type migrationExecuteRequest struct {
	Plan      migration.Plan `json:"plan"`
	MoveFiles bool           `json:"move_files"`
}

func (s *Server) handleMigrationExecute(w http.ResponseWriter, r *http.Request) {
	inst, err := s.lookupInstance(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req migrationExecuteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", apierr.ErrValidation, err))
		return
	}

	result, err := s.Supervisor.ExecuteMigration(inst.Name, &req.Plan, req.MoveFiles)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
