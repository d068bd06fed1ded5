package ipcserver

import (
	"net/http"
	"strconv"
)

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	inst, err := s.lookupInstance(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.Supervisor.ValidateInstance(inst.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	inst, err := s.lookupInstance(r)
	if err != nil {
		writeError(w, err)
		return
	}

	n := 50
	if nStr := r.URL.Query().Get("lines"); nStr != "" {
		if parsed, err := strconv.Atoi(nStr); err == nil {
			n = parsed
		}
	}

	diagnosis, err := s.Supervisor.DiagnoseInstance(inst.Name, n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diagnosis)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	inst, err := s.lookupInstance(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.Supervisor.Activity == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}

	limit := 100
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		if parsed, err := strconv.Atoi(limStr); err == nil {
			limit = parsed
		}
	}

	entries, err := s.Supervisor.Activity.Recent(inst.ID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
