package ipcserver

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sabachan/sabachan/internal/apierr"
	"github.com/sabachan/sabachan/internal/process"
)

func (s *Server) handleClientRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Kind   string `json:"kind"` // "gui" or "cli"
		BotPID int    `json:"bot_pid,omitempty"`
	}
	_ = decodeJSON(r, &body)

	id, interval, ttl := s.clients.Register(body.BotPID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":                 id,
		"heartbeat_interval": interval.Seconds(),
		"ttl":                ttl.Seconds(),
	})
}

func (s *Server) handleClientHeartbeat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.clients.Heartbeat(id) {
		writeError(w, fmt.Errorf("%w: client %q", apierr.ErrNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClientUnregister(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	botPID, ok := s.clients.Unregister(id)
	if !ok {
		writeError(w, fmt.Errorf("%w: client %q", apierr.ErrNotFound, id))
		return
	}
	if botPID > 0 {
		_ = process.KillPID(botPID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unregistered"})
}
