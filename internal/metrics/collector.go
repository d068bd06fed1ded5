package metrics

import (
	"sync"
	"time"

	"github.com/sabachan/sabachan/internal/types"
)

// Collector aggregates and stores per-instance health metrics.
type Collector interface {
	UpdateInstanceMetrics(instanceID string, metrics *types.InstanceMetrics)
	GetInstanceMetrics(instanceID string) *types.InstanceMetrics
	GetAllMetrics() map[string]*types.InstanceMetrics
	SetInstanceIdle(instanceID string)
	SetInstanceActive(instanceID string)
	TakeSnapshot() types.MetricsSnapshot
	GetHistory() []types.MetricsSnapshot
	ResetHistory()
	IncrementRestartCount(instanceID string)
	IncrementCrashCount(instanceID string)
	ResetRestartCount(instanceID string)
	RemoveInstance(instanceID string)
}

// MetricsCollector implements Collector.
type MetricsCollector struct {
	mu         sync.RWMutex
	metrics    map[string]*types.InstanceMetrics
	history    []types.MetricsSnapshot
	maxHistory int
}

// NewCollector creates a new metrics collector.
func NewCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics:    make(map[string]*types.InstanceMetrics),
		history:    []types.MetricsSnapshot{},
		maxHistory: 1000,
	}
}

// UpdateInstanceMetrics updates or creates metrics for an instance.
func (c *MetricsCollector) UpdateInstanceMetrics(instanceID string, metrics *types.InstanceMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.metrics[instanceID]
	if existing == nil {
		c.metrics[instanceID] = metrics
		return
	}

	// Merge: only update non-zero values
	if metrics.RestartCount > 0 {
		existing.RestartCount = metrics.RestartCount
	}
	if metrics.CrashCount > 0 {
		existing.CrashCount = metrics.CrashCount
	}
	if !metrics.StartedAt.IsZero() {
		existing.StartedAt = metrics.StartedAt
	}
	existing.LastUpdated = time.Now()
}

// GetInstanceMetrics returns metrics for a specific instance.
func (c *MetricsCollector) GetInstanceMetrics(instanceID string) *types.InstanceMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if m, ok := c.metrics[instanceID]; ok {
		copy := *m
		return &copy
	}
	return nil
}

// GetAllMetrics returns all instance metrics.
func (c *MetricsCollector) GetAllMetrics() map[string]*types.InstanceMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]*types.InstanceMetrics)
	for k, v := range c.metrics {
		copy := *v
		result[k] = &copy
	}
	return result
}

// SetInstanceIdle marks an instance as idle, recording idle start time.
func (c *MetricsCollector) SetInstanceIdle(instanceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.metrics[instanceID]; ok {
		if m.IdleSince.IsZero() {
			m.IdleSince = time.Now()
		}
	} else {
		c.metrics[instanceID] = &types.InstanceMetrics{
			InstanceID:  instanceID,
			IdleSince:   time.Now(),
			LastUpdated: time.Now(),
		}
	}
}

// SetInstanceActive clears idle status and records activity.
func (c *MetricsCollector) SetInstanceActive(instanceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.metrics[instanceID]; ok {
		m.IdleSince = time.Time{}
		m.LastActivityAt = time.Now()
		m.LastUpdated = time.Now()
	} else {
		c.metrics[instanceID] = &types.InstanceMetrics{
			InstanceID:     instanceID,
			LastActivityAt: time.Now(),
			LastUpdated:    time.Now(),
		}
	}
}

// TakeSnapshot captures the current metrics state.
func (c *MetricsCollector) TakeSnapshot() types.MetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := types.MetricsSnapshot{
		Timestamp: time.Now(),
		Instances: make(map[string]*types.InstanceMetrics),
	}

	for k, v := range c.metrics {
		copy := *v
		snapshot.Instances[k] = &copy
	}

	c.history = append(c.history, snapshot)
	if len(c.history) > c.maxHistory {
		// Prune to exactly maxHistory items
		c.history = c.history[len(c.history)-c.maxHistory:]
	}

	return snapshot
}

// GetHistory returns metrics history.
func (c *MetricsCollector) GetHistory() []types.MetricsSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]types.MetricsSnapshot, len(c.history))
	copy(result, c.history)
	return result
}

// ResetHistory clears metrics history.
func (c *MetricsCollector) ResetHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = []types.MetricsSnapshot{}
}

// IncrementRestartCount increases an instance's restart count, used when
// the Supervisor's RestartServer restarts an instance.
func (c *MetricsCollector) IncrementRestartCount(instanceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.metrics[instanceID]; ok {
		m.RestartCount++
		m.LastUpdated = time.Now()
	} else {
		c.metrics[instanceID] = &types.InstanceMetrics{
			InstanceID:   instanceID,
			RestartCount: 1,
			LastUpdated:  time.Now(),
		}
	}
}

// IncrementCrashCount increases an instance's observed-crash count.
func (c *MetricsCollector) IncrementCrashCount(instanceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.metrics[instanceID]; ok {
		m.CrashCount++
		m.LastUpdated = time.Now()
	} else {
		c.metrics[instanceID] = &types.InstanceMetrics{
			InstanceID:  instanceID,
			CrashCount:  1,
			LastUpdated: time.Now(),
		}
	}
}

// ResetRestartCount clears an instance's restart count, used once an
// operator acknowledges a flapping instance.
func (c *MetricsCollector) ResetRestartCount(instanceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.metrics[instanceID]; ok {
		m.RestartCount = 0
		m.LastUpdated = time.Now()
	}
}

// RemoveInstance removes an instance's metrics, called once it's deleted
// from the Instance Store.
func (c *MetricsCollector) RemoveInstance(instanceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.metrics, instanceID)
}
