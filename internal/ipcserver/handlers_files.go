package ipcserver

import (
	"fmt"
	"net/http"

	"github.com/sabachan/sabachan/internal/apierr"
)

func (s *Server) handleGetProperties(w http.ResponseWriter, r *http.Request) {
	inst, err := s.lookupInstance(r)
	if err != nil {
		writeError(w, err)
		return
	}
	props, err := s.Supervisor.ManageProperties(inst.Name, "read", nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

func (s *Server) handlePutProperties(w http.ResponseWriter, r *http.Request) {
	inst, err := s.lookupInstance(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var settings map[string]string
	if err := decodeJSON(r, &settings); err != nil {
		writeError(w, fmt.Errorf("%w: %v", apierr.ErrValidation, err))
		return
	}

	props, err := s.Supervisor.ManageProperties(inst.Name, "write", settings)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

func (s *Server) handleResetProperties(w http.ResponseWriter, r *http.Request) {
	inst, err := s.lookupInstance(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var settings map[string]string
	_ = decodeJSON(r, &settings)

	props, err := s.Supervisor.ManageProperties(inst.Name, "reset", settings)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

func (s *Server) handleAcceptEULA(w http.ResponseWriter, r *http.Request) {
	inst, err := s.lookupInstance(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Supervisor.AcceptEULA(inst.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}
