package ipcserver

import "net/http"

// handleUpdateStatuses and handleUpdateCheck forward to the Updater's
// background-worker surface when one is embedded in this process (see
// internal/updater); spec.md allows the daemon to either embed the
// updater or leave clients to talk to the standalone updater binary
// directly, so a nil Updater here is a valid deployment, not an error.
func (s *Server) handleUpdateStatuses(w http.ResponseWriter, r *http.Request) {
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

func (s *Server) handleUpdateCheck(w http.ResponseWriter, r *http.Request) {
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
