// Package store implements the Instance Store: a JSON-persisted, ordered
// list of instance records with atomic writes and name-uniqueness.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sabachan/sabachan/internal/apierr"
	"github.com/sabachan/sabachan/internal/types"
)

// Store is a sync.RWMutex-guarded, JSON-file-backed ordered list of
// instances. Every mutation is immediately persisted with an atomic
// temp-file-then-rename write so a concurrent reader never observes a
// partially-written file.
type Store struct {
	mu   sync.RWMutex
	path string
	byID map[string]*types.Instance
	order []string // instance IDs in creation order
}

// New loads path (an instances.json file) if it exists, or starts empty.
func New(path string) (*Store, error) {
	s := &Store{path: path, byID: make(map[string]*types.Instance)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("instance store: read %s: %w", path, err)
	}

	var list []*types.Instance
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("instance store: parse %s: %w", path, err)
	}
	for _, inst := range list {
		s.byID[inst.ID] = inst
		s.order = append(s.order, inst.ID)
	}
	return s, nil
}

// save writes the full instance list atomically: write to a temp file in
// the same directory, fsync it, then rename over the target path. The
// caller must already hold s.mu.
func (s *Store) save() error {
	list := make([]*types.Instance, 0, len(s.order))
	for _, id := range s.order {
		list = append(list, s.byID[id])
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("instance store: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("instance store: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".instances-*.tmp")
	if err != nil {
		return fmt.Errorf("instance store: create temp: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("instance store: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("instance store: fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("instance store: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("instance store: rename into place: %w", err)
	}
	return nil
}

// Create validates, fills in defaults (ID, working dir, RCON password)
// and persists a new instance. Fails if the name is already taken.
func (s *Store) Create(inst *types.Instance) (*types.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		if s.byID[id].Name == inst.Name {
			return nil, fmt.Errorf("instance name %q already exists: %w", inst.Name, apierr.ErrAlreadyExists)
		}
	}

	if inst.ID == "" {
		inst.ID = uuid.NewString()
	}
	if inst.WorkingDir == "" && inst.ExecutablePath != "" {
		inst.WorkingDir = filepath.Dir(inst.ExecutablePath)
	}
	if (inst.Protocol == types.ProtocolRCON || inst.Protocol == types.ProtocolDual) && inst.RCONPassword == "" {
		inst.RCONPassword = types.NewRCONPassword()
	}
	if inst.Status == "" {
		inst.Status = types.StatusStopped
	}
	inst.CreatedAt = time.Now()

	if err := inst.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apierr.ErrValidation, err)
	}

	s.byID[inst.ID] = inst
	s.order = append(s.order, inst.ID)

	if err := s.save(); err != nil {
		// roll back the in-memory mutation so the store stays consistent
		// with what's actually on disk
		delete(s.byID, inst.ID)
		s.order = s.order[:len(s.order)-1]
		return nil, err
	}
	return inst, nil
}

// Get returns the instance by ID.
func (s *Store) Get(id string) (*types.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("instance %s: %w", id, apierr.ErrNotFound)
	}
	return inst, nil
}

// GetByName returns the instance by its unique name.
func (s *Store) GetByName(name string) (*types.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if s.byID[id].Name == name {
			return s.byID[id], nil
		}
	}
	return nil, fmt.Errorf("instance %q: %w", name, apierr.ErrNotFound)
}

// GetInstanceDir returns the per-instance directory migrations land in:
// {store_root}/instances/{id}, where store_root is the directory holding
// instances.json.
func (s *Store) GetInstanceDir(id string) string {
	return filepath.Join(filepath.Dir(s.path), "instances", id)
}

// List returns every instance, in creation order.
func (s *Store) List() []*types.Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Instance, len(s.order))
	for i, id := range s.order {
		out[i] = s.byID[id]
	}
	return out
}

// Update applies mutate to the instance and persists the result.
func (s *Store) Update(id string, mutate func(*types.Instance)) (*types.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("instance %s: %w", id, apierr.ErrNotFound)
	}
	before := *inst
	mutate(inst)
	if err := inst.Validate(); err != nil {
		*inst = before
		return nil, fmt.Errorf("%w: %v", apierr.ErrValidation, err)
	}
	if err := s.save(); err != nil {
		*inst = before
		return nil, err
	}
	return inst, nil
}

// Delete removes an instance record.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("instance %s: %w", id, apierr.ErrNotFound)
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return s.save()
}

// Reorder replaces the store's ordering with ids, which must be a
// permutation of the currently-stored instance IDs.
func (s *Store) Reorder(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) != len(s.order) {
		return fmt.Errorf("%w: reorder list has %d ids, store has %d", apierr.ErrValidation, len(ids), len(s.order))
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.byID[id]; !ok {
			return fmt.Errorf("%w: unknown instance id %q in reorder list", apierr.ErrValidation, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate instance id %q in reorder list", apierr.ErrValidation, id)
		}
		seen[id] = true
	}

	before := s.order
	s.order = ids
	if err := s.save(); err != nil {
		s.order = before
		return err
	}
	return nil
}
