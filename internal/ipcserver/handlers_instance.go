package ipcserver

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sabachan/sabachan/internal/apierr"
	"github.com/sabachan/sabachan/internal/types"
)

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.List())
}

func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	var inst types.Instance
	if err := decodeJSON(r, &inst); err != nil {
		writeError(w, fmt.Errorf("%w: %v", apierr.ErrValidation, err))
		return
	}
	created, err := s.Store.Create(&inst)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.Bus != nil {
		s.Bus.PublishLifecycle(created.ID, "created")
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	inst, err := s.Store.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Store.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	s.Supervisor.Metrics.RemoveInstance(id)
	if s.Bus != nil {
		s.Bus.PublishLifecycle(id, "deleted")
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// instancePatch is the set of fields PATCH /instance/{id} may update.
// Only non-nil fields are applied, so a client can change one setting
// without resending the whole record.
type instancePatch struct {
	Name           *string             `json:"name"`
	ExecutablePath *string             `json:"executable_path"`
	WorkingDir     *string             `json:"working_dir"`
	Protocol       *types.ProtocolKind `json:"protocol"`
	ManagedStart   *bool               `json:"managed_start"`
	Port           *int                `json:"port"`
	RCONPort       *int                `json:"rcon_port"`
	RCONPassword   *string             `json:"rcon_password"`
	RESTBaseURL    *string             `json:"rest_base_url"`
	RESTUsername   *string             `json:"rest_username"`
	RESTPassword   *string             `json:"rest_password"`
	Settings       map[string]string   `json:"settings"`
	ServerVersion  *string             `json:"server_version"`
}

func (s *Server) handlePatchInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var patch instancePatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, fmt.Errorf("%w: %v", apierr.ErrValidation, err))
		return
	}

	updated, err := s.Store.Update(id, func(inst *types.Instance) {
		if patch.Name != nil {
			inst.Name = *patch.Name
		}
		if patch.ExecutablePath != nil {
			inst.ExecutablePath = *patch.ExecutablePath
		}
		if patch.WorkingDir != nil {
			inst.WorkingDir = *patch.WorkingDir
		}
		if patch.Protocol != nil {
			inst.Protocol = *patch.Protocol
		}
		if patch.ManagedStart != nil {
			inst.ManagedStart = *patch.ManagedStart
		}
		if patch.Port != nil {
			inst.Port = *patch.Port
		}
		if patch.RCONPort != nil {
			inst.RCONPort = *patch.RCONPort
		}
		if patch.RCONPassword != nil {
			inst.RCONPassword = *patch.RCONPassword
		}
		if patch.RESTBaseURL != nil {
			inst.RESTBaseURL = *patch.RESTBaseURL
		}
		if patch.RESTUsername != nil {
			inst.RESTUsername = *patch.RESTUsername
		}
		if patch.RESTPassword != nil {
			inst.RESTPassword = *patch.RESTPassword
		}
		if patch.Settings != nil {
			inst.Settings = patch.Settings
		}
		if patch.ServerVersion != nil {
			inst.ServerVersion = *patch.ServerVersion
		}
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleReorderInstances(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, fmt.Errorf("%w: %v", apierr.ErrValidation, err))
		return
	}
	if err := s.Store.Reorder(body.IDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Store.List())
}
