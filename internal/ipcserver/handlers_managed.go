package ipcserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/sabachan/sabachan/internal/apierr"
)

func (s *Server) handleManagedStart(w http.ResponseWriter, r *http.Request) {
	inst, err := s.lookupInstance(r)
	if err != nil {
		writeError(w, err)
		return
	}
	started, err := s.Supervisor.StartServer(r.Context(), inst.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	s.broadcastInstanceState(started)
	writeJSON(w, http.StatusOK, started)
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	inst, err := s.lookupInstance(r)
	if err != nil {
		writeError(w, err)
		return
	}

	mp, ok := s.Supervisor.Procs.Get(inst.ID)
	if !ok {
		writeError(w, fmt.Errorf("%w: instance %q has no managed process", apierr.ErrNotRunning, inst.Name))
		return
	}

	q := r.URL.Query()
	if sinceStr := q.Get("since"); sinceStr != "" {
		since, err := strconv.ParseUint(sinceStr, 10, 64)
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid since cursor %q", apierr.ErrValidation, sinceStr))
			return
		}
		writeJSON(w, http.StatusOK, mp.GetConsoleSince(since))
		return
	}

	count := 200
	if countStr := q.Get("count"); countStr != "" {
		n, err := strconv.Atoi(countStr)
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid count %q", apierr.ErrValidation, countStr))
			return
		}
		count = n
	}
	writeJSON(w, http.StatusOK, mp.GetRecentConsole(count))
}

func (s *Server) handleStdin(w http.ResponseWriter, r *http.Request) {
	inst, err := s.lookupInstance(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		Line string `json:"line"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, fmt.Errorf("%w: %v", apierr.ErrValidation, err))
		return
	}

	mp, ok := s.Supervisor.Procs.Get(inst.ID)
	if !ok {
		writeError(w, fmt.Errorf("%w: instance %q has no managed process", apierr.ErrNotRunning, inst.Name))
		return
	}
	if err := mp.SendStdin(body.Line); err != nil {
		writeError(w, fmt.Errorf("%w: %v", apierr.ErrProtocol, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
