package ipcserver

import (
	"net/http"
	"time"
)

// handleHealth lets a CheckExistingInstance probe (or a load balancer)
// confirm the daemon is up and answering requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleShutdown asks the daemon to stop gracefully; Start's select loop
// picks this up and shuts the HTTP server down the same way a cancelled
// context would.
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutting_down"})
	go func() {
		time.Sleep(100 * time.Millisecond)
		select {
		case <-s.shutdownCh:
		default:
			close(s.shutdownCh)
		}
	}()
}
