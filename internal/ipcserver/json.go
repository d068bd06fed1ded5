package ipcserver

import (
	"encoding/json"
	"net/http"

	"github.com/sabachan/sabachan/internal/apierr"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps a domain error onto a status code via apierr and writes
// a {"error": "..."} body, matching spec.md's uniform error envelope.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apierr.StatusFor(err), map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
