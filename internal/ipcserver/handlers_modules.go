package ipcserver

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sabachan/sabachan/internal/apierr"
)

func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Supervisor.ListModules())
}

func (s *Server) handleGetModule(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	mod, ok := s.Supervisor.Registry().GetModule(name)
	if !ok {
		writeError(w, fmt.Errorf("%w: module %q", apierr.ErrNotFound, name))
		return
	}
	writeJSON(w, http.StatusOK, mod)
}

func (s *Server) handleRefreshModules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Supervisor.RefreshModules())
}

// handleModuleVersions and handleModuleInstall forward to the Updater's
// HTTP surface when one is embedded in the daemon process; otherwise
// they report 501 so a caller can fall back to a standalone updater.
func (s *Server) handleModuleVersions(w http.ResponseWriter, r *http.Request) {
	if s.Updater == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "no updater configured"})
		return
	}
	statuses, err := s.Updater.Statuses()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleModuleInstall(w http.ResponseWriter, r *http.Request) {
	if s.Updater == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "no updater configured"})
		return
	}
	result, err := s.Updater.CheckNow()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
