package supervisor

import (
	"context"
	"encoding/binary"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/sabachan/sabachan/internal/registry"
	"github.com/sabachan/sabachan/internal/store"
	"github.com/sabachan/sabachan/internal/types"
)

func newTestSupervisor(t *testing.T) (*Supervisor, *types.Instance) {
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
	writeFile(t, moduleDir, "module.toml", manifest)

	reg := registry.Load(modulesDir)
	st, err := store.New(filepath.Join(t.TempDir(), "instances.json"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}

	sup := New(st, reg, modulesDir, nil)

	catPath, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not available on this system")
	}

	inst, err := st.Create(&types.Instance{
		Name:           "survival",
		ModuleName:     "test_game",
		ExecutablePath: catPath,
		Protocol:       types.ProtocolManaged,
		ManagedStart:   true,
		Port:           25565,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return sup, inst
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writeFile %s: %v", path, err)
	}
}

func TestStartStopManagedLifecycle(t *testing.T) {
	sup, inst := newTestSupervisor(t)
	ctx := context.Background()

	started, err := sup.StartServer(ctx, inst.Name)
	if err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	if started.Status != types.StatusRunning {
		t.Fatalf("status after start = %v, want running", started.Status)
	}
	if !sup.Tracker.IsTracked(inst.ID) {
		t.Fatalf("expected instance to be tracked after start")
	}

	if _, err := sup.StartServer(ctx, inst.Name); err == nil {
		t.Fatalf("starting an already-running instance should error")
	}

	stopped, err := sup.StopServer(ctx, inst.Name, true)
	if err != nil {
		t.Fatalf("StopServer: %v", err)
	}
	if stopped.Status != types.StatusStopped {
		t.Fatalf("status after stop = %v, want stopped", stopped.Status)
	}
	if sup.Tracker.IsTracked(inst.ID) {
		t.Fatalf("expected instance to be untracked after stop")
	}
}

func TestStopNotRunningErrors(t *testing.T) {
	sup, inst := newTestSupervisor(t)
	if _, err := sup.StopServer(context.Background(), inst.Name, false); err == nil {
		t.Fatalf("stopping a non-running instance should error")
	}
}

func TestExecuteCommandStatusLifecycle(t *testing.T) {
	sup, inst := newTestSupervisor(t)
	resp, err := sup.ExecuteCommand(context.Background(), inst.Name, "status", nil)
	if err != nil {
		t.Fatalf("ExecuteCommand(status): %v", err)
	}
	if !resp.OK || resp.Output != string(types.StatusStopped) {
		t.Fatalf("status response = %+v", resp)
	}
}

func TestValidateInstanceReportsProblems(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	st, err := store.New(filepath.Join(t.TempDir(), "instances.json"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	sup.Store = st

	bad, err := st.Create(&types.Instance{
		Name:           "broken",
		ModuleName:     "test_game",
		ExecutablePath: "/does/not/exist",
		Protocol:       types.ProtocolManaged,
		Port:           25566,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	result, err := sup.ValidateInstance(bad.Name)
	if err != nil {
		t.Fatalf("ValidateInstance: %v", err)
	}
	if result.OK {
		t.Fatalf("expected validation to fail for a missing executable")
	}
}

func TestManagePropertiesRoundtrip(t *testing.T) {
	sup, inst := newTestSupervisor(t)
	if _, err := sup.ManageProperties(inst.Name, "write", map[string]string{"motd": "hi"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := sup.ManageProperties(inst.Name, "read", nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["motd"] != "hi" {
		t.Fatalf("properties = %v, want motd=hi", got)
	}
}

func TestAcceptEULACreatesMarker(t *testing.T) {
	sup, inst := newTestSupervisor(t)
	if err := sup.AcceptEULA(inst.Name); err != nil {
		t.Fatalf("AcceptEULA: %v", err)
	}
	if _, err := os.Stat(filepath.Join(inst.WorkingDir, "eula.txt")); err != nil {
		t.Fatalf("eula.txt not created: %v", err)
	}
	if _, err := sup.ValidateInstance(inst.Name); err != nil {
		t.Fatalf("ValidateInstance: %v", err)
	}
}

// fakeRCONServer is a minimal Source-engine RCON stand-in for exercising
// the rcon dispatch path without a real game server.
func fakeRCONServer(t *testing.T, password string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		for i := 0; i < 2; i++ {
			var size, id, ptype int32
			if err := binary.Read(conn, binary.LittleEndian, &size); err != nil {
				return
			}
			buf := make([]byte, size)
			if _, err := conn.Read(buf); err != nil {
				return
			}
			id = int32(binary.LittleEndian.Uint32(buf[0:4]))
			ptype = int32(binary.LittleEndian.Uint32(buf[4:8]))
			_ = ptype

			if i == 0 {
				writeRCONReply(conn, id, 2, "")
			} else {
				writeRCONReply(conn, id, 0, "ok")
			}
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func writeRCONReply(conn net.Conn, id, ptype int32, body string) {
	payload := append([]byte(body), 0, 0)
	size := int32(4 + 4 + len(payload))
	binary.Write(conn, binary.LittleEndian, size)
	binary.Write(conn, binary.LittleEndian, id)
	binary.Write(conn, binary.LittleEndian, ptype)
	conn.Write(payload)
}

func TestDispatchProtocolPrefersRCONWhenPasswordSet(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	addr := fakeRCONServer(t, "secret")
	_, portStr, _ := net.SplitHostPort(addr)
	var port int
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}

	inst, _, err := sup.resolve("survival")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	inst.RCONPort = port
	inst.RCONPassword = "secret"
	inst.Protocol = types.ProtocolDual

	resp, err := sup.dispatchProtocol(inst, &registry.Module{}, types.ServerCommand{Raw: "list"})
	if err != nil {
		t.Fatalf("dispatchProtocol: %v", err)
	}
	if resp.Output != "ok" {
		t.Fatalf("dispatchProtocol response = %+v, want output=ok", resp)
	}
}
