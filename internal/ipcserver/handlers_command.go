package ipcserver

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sabachan/sabachan/internal/apierr"
	"github.com/sabachan/sabachan/internal/types"
)

// commandRequest is the body of POST /instance/{id}/command: Name is a
// command or alias known to the instance's module.
type commandRequest struct {
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	inst, err := s.lookupInstance(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req commandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", apierr.ErrValidation, err))
		return
	}

	resp, err := s.Supervisor.ExecuteCommand(r.Context(), inst.Name, req.Name, req.Args)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// rawRCONRequest is the body of POST /instance/{id}/rcon: a verbatim
// console command line.
type rawRCONRequest struct {
	Command string `json:"command"`
}

func (s *Server) handleRCON(w http.ResponseWriter, r *http.Request) {
	inst, err := s.lookupInstance(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req rawRCONRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", apierr.ErrValidation, err))
		return
	}

	resp, err := s.Supervisor.SendRaw(r.Context(), inst.Name, types.ProtocolRCON, types.ServerCommand{Raw: req.Command})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// rawRESTRequest is the body of POST /instance/{id}/rest: an endpoint
// path plus HTTP method and optional raw JSON body, forwarded verbatim to
// the module's own REST control API.
type rawRESTRequest struct {
	Endpoint string `json:"endpoint"`
	Method   string `json:"method,omitempty"`
	Body     string `json:"body,omitempty"`
}

func (s *Server) handleREST(w http.ResponseWriter, r *http.Request) {
	inst, err := s.lookupInstance(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req rawRESTRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", apierr.ErrValidation, err))
		return
	}

	cmd := types.ServerCommand{
		Name: req.Endpoint,
		Raw:  req.Body,
		Meta: map[string]string{"method": req.Method},
	}
	resp, err := s.Supervisor.SendRaw(r.Context(), inst.Name, types.ProtocolREST, cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) lookupInstance(r *http.Request) (*types.Instance, error) {
	id := mux.Vars(r)["id"]
	return s.Store.Get(id)
}
