package ipcserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/sabachan/sabachan/internal/registry"
	"github.com/sabachan/sabachan/internal/store"
	"github.com/sabachan/sabachan/internal/supervisor"
	"github.com/sabachan/sabachan/internal/types"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	modulesDir := t.TempDir()
	moduleDir := filepath.Join(modulesDir, "test_game")
	if err := os.MkdirAll(moduleDir, 0o755); err != nil {
		t.Fatalf("mkdir module dir: %v", err)
	}
	manifest := `
[module]
name = "test_game"
display_name = "Test Game"

[protocols]
interaction_mode = "console"

[start]
stop_command = "stop"
`
	if err := os.WriteFile(filepath.Join(moduleDir, "module.toml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	reg := registry.Load(modulesDir)
	st, err := store.New(filepath.Join(t.TempDir(), "instances.json"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	sup := supervisor.New(st, reg, modulesDir, nil)

	return New(sup, st, nil)
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	return rec
}

func TestInstanceCRUDOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	catPath, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not available on this system")
	}

	rec := doJSON(t, srv, http.MethodPost, "/api/instance", types.Instance{
		Name:           "survival",
		ModuleName:     "test_game",
		ExecutablePath: catPath,
		Protocol:       types.ProtocolManaged,
		ManagedStart:   true,
		Port:           25565,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created types.Instance
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal created: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected created instance to have an id")
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/instances", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list []types.Instance
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list length = %d, want 1", len(list))
	}

	rec = doJSON(t, srv, http.MethodPatch, "/api/instance/"+created.ID, map[string]interface{}{
		"settings": map[string]string{"motd": "hello"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/instance/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/instance/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get-after-delete status = %d, want 404", rec.Code)
	}
}

func TestServerLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	catPath, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not available on this system")
	}

	rec := doJSON(t, srv, http.MethodPost, "/api/instance", types.Instance{
		Name:           "survival",
		ModuleName:     "test_game",
		ExecutablePath: catPath,
		Protocol:       types.ProtocolManaged,
		ManagedStart:   true,
		Port:           25565,
	})
	var created types.Instance
	json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doJSON(t, srv, http.MethodPost, "/api/server/survival/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/server/survival/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var status map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status["status"] != string(types.StatusRunning) {
		t.Fatalf("status = %v, want running", status["status"])
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/server/survival/stop", map[string]bool{"force": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestClientRegisterHeartbeatUnregister(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/client/register", map[string]string{"kind": "gui"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d", rec.Code)
	}
	var reg map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &reg)
	id, _ := reg["id"].(string)
	if id == "" {
		t.Fatalf("expected a client id, got %v", reg)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/client/"+id+"/heartbeat", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("heartbeat status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/client/"+id+"/unregister", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unregister status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/client/"+id+"/heartbeat", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("heartbeat-after-unregister status = %d, want 404", rec.Code)
	}
}

func TestModulesEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/modules", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("modules status = %d", rec.Code)
	}
	var mods []map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &mods)
	if len(mods) != 1 || mods[0]["name"] != "test_game" {
		t.Fatalf("modules = %v", mods)
	}
}
