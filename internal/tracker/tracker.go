// Package tracker is a simple instance id -> (PID, start time) map. It
// does not probe liveness itself; that's the process-monitor
// collaborator's job (internal/instance).
package tracker

import (
	"sync"
	"time"

	"github.com/sabachan/sabachan/internal/apierr"
)

type entry struct {
	pid       int
	startedAt time.Time
}

// Tracker records which instance ids currently have a tracked PID.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{entries: make(map[string]entry)}
}

// Track records pid as the running process for instanceID, replacing
// any prior record.
func (t *Tracker) Track(instanceID string, pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[instanceID] = entry{pid: pid, startedAt: time.Now()}
}

// Untrack removes instanceID's record. It is idempotent: untracking an
// id that isn't tracked is not an error.
func (t *Tracker) Untrack(instanceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, instanceID)
}

// GetPID returns the tracked PID for instanceID.
func (t *Tracker) GetPID(instanceID string) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[instanceID]
	if !ok {
		return 0, apierr.ErrNotFound
	}
	return e.pid, nil
}

// GetStartTime returns when instanceID was tracked.
func (t *Tracker) GetStartTime(instanceID string) (time.Time, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[instanceID]
	if !ok {
		return time.Time{}, apierr.ErrNotFound
	}
	return e.startedAt, nil
}

// IsTracked reports whether instanceID currently has a tracked PID.
func (t *Tracker) IsTracked(instanceID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.entries[instanceID]
	return ok
}
