package ipcserver

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sabachan/sabachan/internal/types"
)

func (s *Server) handleStartServer(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	s.tracer.Record(name)

	inst, err := s.Supervisor.StartServer(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	s.broadcastInstanceState(inst)
	if s.Bus != nil {
		s.Bus.PublishLifecycle(inst.ID, "started")
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleStopServer(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	s.tracer.Record(name)

	var body struct {
		Force bool `json:"force"`
	}
	_ = decodeJSON(r, &body)

	inst, err := s.Supervisor.StopServer(r.Context(), name, body.Force)
	if err != nil {
		writeError(w, err)
		return
	}
	s.broadcastInstanceState(inst)
	if s.Bus != nil {
		s.Bus.PublishLifecycle(inst.ID, "stopped")
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleServerStatus(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	status, err := s.Supervisor.GetServerStatus(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	instances := s.Store.List()
	out := make([]map[string]interface{}, 0, len(instances))
	for _, inst := range instances {
		out = append(out, map[string]interface{}{
			"id":             inst.ID,
			"name":           inst.Name,
			"module_name":    inst.ModuleName,
			"status":         inst.Status,
			"last_action_at": s.tracer.LastActionAt(inst.Name),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) broadcastInstanceState(inst *types.Instance) {
	s.hub.BroadcastJSON(types.WSMessage{Type: types.WSTypeInstanceState, Data: inst})
}
