package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/sabachan/sabachan/internal/apierr"
	"github.com/sabachan/sabachan/internal/types"
)

func newTestInstance(name string) *types.Instance {
	return &types.Instance{
		Name:           name,
		ModuleName:     "test_game",
		ExecutablePath: "/srv/test_game/server.jar",
		Protocol:       types.ProtocolRCON,
		Port:           25565,
	}
}

func TestStoreCreateAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instances.json")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	inst, err := s.Create(newTestInstance("survival"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inst.ID == "" {
		t.Errorf("Create should assign an ID")
	}
	if inst.WorkingDir != "/srv/test_game" {
		t.Errorf("WorkingDir = %q, want derived from executable_path", inst.WorkingDir)
	}
	if inst.RCONPassword == "" {
		t.Errorf("Create should auto-generate an RCON password")
	}

	got, err := s.Get(inst.ID)
	if err != nil || got.Name != "survival" {
		t.Fatalf("Get(%s) = %v, %v", inst.ID, got, err)
	}
}

func TestStoreNameUniqueness(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instances.json")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := s.Create(newTestInstance("survival")); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err = s.Create(newTestInstance("survival"))
	if !errors.Is(err, apierr.ErrAlreadyExists) {
		t.Fatalf("second Create error = %v, want ErrAlreadyExists", err)
	}
}

func TestStorePersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instances.json")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Create(newTestInstance("survival")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	list := reloaded.List()
	if len(list) != 1 || list[0].Name != "survival" {
		t.Fatalf("reloaded list = %+v, want one survival instance", list)
	}
}

func TestStoreUpdateAndDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instances.json")
	s, _ := New(path)
	inst, _ := s.Create(newTestInstance("survival"))

	updated, err := s.Update(inst.ID, func(i *types.Instance) {
		i.Status = types.StatusRunning
		i.PID = 4242
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != types.StatusRunning || updated.PID != 4242 {
		t.Errorf("Update did not apply: %+v", updated)
	}

	if err := s.Delete(inst.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(inst.ID); !errors.Is(err, apierr.ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
}

func TestStoreUpdateRejectsInvalidMutation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instances.json")
	s, _ := New(path)
	inst, _ := s.Create(newTestInstance("survival"))

	_, err := s.Update(inst.ID, func(i *types.Instance) {
		i.ModuleName = ""
	})
	if !errors.Is(err, apierr.ErrValidation) {
		t.Fatalf("Update with invalid mutation = %v, want ErrValidation", err)
	}

	got, _ := s.Get(inst.ID)
	if got.ModuleName == "" {
		t.Errorf("rejected mutation should not have been applied")
	}
}
