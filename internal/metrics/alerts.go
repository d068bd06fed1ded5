package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sabachan/sabachan/internal/types"
)

// AlertEngine checks metrics against thresholds and generates alerts.
type AlertEngine interface {
	SetThresholds(thresholds types.AlertThresholds)
	GetThresholds() types.AlertThresholds
	CheckMetrics(metrics map[string]*types.InstanceMetrics) []*types.Alert
	CheckInstanceStatus(instances map[string]*types.Instance) []*types.Alert
	CheckQueueDepth(pendingCount int) *types.Alert
}

// AlertChecker implements AlertEngine.
type AlertChecker struct {
	mu         sync.RWMutex
	thresholds types.AlertThresholds
	// Track alerts to avoid duplicates
	recentAlerts map[string]time.Time
}

// NewAlertEngine creates a new alert engine.
func NewAlertEngine(thresholds types.AlertThresholds) *AlertChecker {
	return &AlertChecker{
		thresholds:   thresholds,
		recentAlerts: make(map[string]time.Time),
	}
}

// SetThresholds updates alert thresholds.
func (a *AlertChecker) SetThresholds(thresholds types.AlertThresholds) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.thresholds = thresholds
}

// GetThresholds returns current thresholds.
func (a *AlertChecker) GetThresholds() types.AlertThresholds {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.thresholds
}

// shouldAlert checks if we should create an alert (avoids duplicates).
func (a *AlertChecker) shouldAlert(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Clean old alerts (older than 5 minutes)
	now := time.Now()
	for k, t := range a.recentAlerts {
		if now.Sub(t) > 5*time.Minute {
			delete(a.recentAlerts, k)
		}
	}

	if _, exists := a.recentAlerts[key]; exists {
		return false
	}

	a.recentAlerts[key] = now
	return true
}

// CheckMetrics examines all instance metrics and returns alerts.
func (a *AlertChecker) CheckMetrics(metrics map[string]*types.InstanceMetrics) []*types.Alert {
	a.mu.RLock()
	thresholds := a.thresholds
	a.mu.RUnlock()

	var alerts []*types.Alert

	for instanceID, m := range metrics {
		if thresholds.CrashCountMax > 0 && m.CrashCount >= thresholds.CrashCountMax {
			key := fmt.Sprintf("crash_count_%s", instanceID)
			if a.shouldAlert(key) {
				alerts = append(alerts, &types.Alert{
					ID:         uuid.New().String(),
					Type:       "crash_count",
					InstanceID: instanceID,
					Message:    fmt.Sprintf("instance %s has crashed %d times (threshold: %d)", instanceID, m.CrashCount, thresholds.CrashCountMax),
					Severity:   "critical",
					CreatedAt:  time.Now(),
				})
			}
		}

		if thresholds.RestartCountMax > 0 && m.RestartCount >= thresholds.RestartCountMax {
			key := fmt.Sprintf("restart_count_%s", instanceID)
			if a.shouldAlert(key) {
				alerts = append(alerts, &types.Alert{
					ID:         uuid.New().String(),
					Type:       "restart_count",
					InstanceID: instanceID,
					Message:    fmt.Sprintf("instance %s has restarted %d times (threshold: %d)", instanceID, m.RestartCount, thresholds.RestartCountMax),
					Severity:   "warning",
					CreatedAt:  time.Now(),
				})
			}
		}

		if thresholds.IdleTimeMaxSeconds > 0 && !m.IdleSince.IsZero() {
			idleSeconds := int(time.Since(m.IdleSince).Seconds())
			if idleSeconds >= thresholds.IdleTimeMaxSeconds {
				key := fmt.Sprintf("idle_%s", instanceID)
				if a.shouldAlert(key) {
					alerts = append(alerts, &types.Alert{
						ID:         uuid.New().String(),
						Type:       "idle_timeout",
						InstanceID: instanceID,
						Message:    fmt.Sprintf("instance %s has had no console activity for %d seconds", instanceID, idleSeconds),
						Severity:   "warning",
						CreatedAt:  time.Now(),
					})
				}
			}
		}
	}

	return alerts
}

// CheckInstanceStatus checks tracked instances for crashed/stopping states
// the operator should be told about.
func (a *AlertChecker) CheckInstanceStatus(instances map[string]*types.Instance) []*types.Alert {
	var alerts []*types.Alert

	for id, inst := range instances {
		if inst.Status == types.StatusCrashed {
			key := fmt.Sprintf("crashed_%s", id)
			if a.shouldAlert(key) {
				alerts = append(alerts, &types.Alert{
					ID:         uuid.New().String(),
					Type:       "instance_crashed",
					InstanceID: id,
					Message:    fmt.Sprintf("instance %q has crashed", inst.Name),
					Severity:   "critical",
					CreatedAt:  time.Now(),
				})
			}
		}
	}

	return alerts
}

// CheckQueueDepth checks the Supervisor's pending start/stop request backlog.
func (a *AlertChecker) CheckQueueDepth(pendingCount int) *types.Alert {
	a.mu.RLock()
	thresholds := a.thresholds
	a.mu.RUnlock()

	if thresholds.QueueDepthMax <= 0 {
		return nil
	}

	if pendingCount >= thresholds.QueueDepthMax {
		key := "queue_depth"
		if a.shouldAlert(key) {
			return &types.Alert{
				ID:        uuid.New().String(),
				Type:      "queue_depth",
				Message:   fmt.Sprintf("supervisor request queue has %d pending items (threshold: %d)", pendingCount, thresholds.QueueDepthMax),
				Severity:  "critical",
				CreatedAt: time.Now(),
			}
		}
	}

	return nil
}
