package ipcserver

import (
	"net/http"

	"github.com/sabachan/sabachan/internal/types"
)

// handleMetrics returns the latest health metrics the Supervisor's
// collector has recorded for every instance.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Supervisor.Metrics.GetAllMetrics())
}

// handleAlerts runs the alert engine against the current metrics and
// instance statuses on demand, so the dashboard can poll it without
// waiting for the next background alert-loop tick.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	instances := make(map[string]*types.Instance)
	for _, inst := range s.Store.List() {
		instances[inst.ID] = inst
	}

	alerts := s.Supervisor.Alerts.CheckMetrics(s.Supervisor.Metrics.GetAllMetrics())
	alerts = append(alerts, s.Supervisor.Alerts.CheckInstanceStatus(instances)...)
	writeJSON(w, http.StatusOK, alerts)
}

// handleInstanceMetrics returns one instance's health metrics, 404 if the
// collector has never seen that instance.
func (s *Server) handleInstanceMetrics(w http.ResponseWriter, r *http.Request) {
	inst, err := s.lookupInstance(r)
	if err != nil {
		writeError(w, err)
		return
	}

	m := s.Supervisor.Metrics.GetInstanceMetrics(inst.ID)
	if m == nil {
		writeJSON(w, http.StatusOK, map[string]string{"instance_id": inst.ID, "status": "no metrics recorded yet"})
		return
	}
	writeJSON(w, http.StatusOK, m)
}
