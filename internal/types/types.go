// Package types holds the data shapes shared across saba-chan's packages:
// instance records, module manifests, server commands/responses and the
// websocket envelope used to push live updates to the dashboard.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProtocolKind names how a running instance accepts commands.
type ProtocolKind string

const (
	ProtocolRCON    ProtocolKind = "rcon"
	ProtocolREST    ProtocolKind = "rest"
	ProtocolManaged ProtocolKind = "managed" // stdin of a captured child process
	ProtocolStdin   ProtocolKind = "stdin"   // alias of ProtocolManaged
	ProtocolDual    ProtocolKind = "dual"    // prefers rcon, falls back to rest
)

// IsManagedStdin reports whether a protocol dispatches commands over a
// captured child process's stdin rather than a network client.
func (p ProtocolKind) IsManagedStdin() bool {
	return p == ProtocolManaged || p == ProtocolStdin
}

// NewRCONPassword generates the 16-character alphanumeric auto-password
// used for rcon/dual instances that don't declare one of their own.
func NewRCONPassword() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// InstanceStatus is the observed lifecycle state of an instance.
type InstanceStatus string

const (
	StatusStopped  InstanceStatus = "stopped"
	StatusStarting InstanceStatus = "starting"
	StatusRunning  InstanceStatus = "running"
	StatusStopping InstanceStatus = "stopping"
	StatusCrashed  InstanceStatus = "crashed"
)

// Instance is one configured dedicated-server install tracked by the store.
type Instance struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	ModuleName     string            `json:"module_name"`
	ExecutablePath string            `json:"executable_path"`
	WorkingDir     string            `json:"working_dir"`
	Protocol       ProtocolKind      `json:"protocol"`
	ManagedStart   bool              `json:"managed_start"`
	Port           int               `json:"port"`
	RCONPort       int               `json:"rcon_port,omitempty"`
	RCONPassword   string            `json:"rcon_password,omitempty"`
	RESTBaseURL    string            `json:"rest_base_url,omitempty"`
	RESTUsername   string            `json:"rest_username,omitempty"`
	RESTPassword   string            `json:"rest_password,omitempty"`
	Settings       map[string]string `json:"settings,omitempty"`
	ServerVersion  string            `json:"server_version,omitempty"`
	Status         InstanceStatus    `json:"status"`
	PID            int               `json:"pid,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	LastStartedAt  time.Time         `json:"last_started_at,omitempty"`
	RestartCount   int               `json:"restart_count"`
}

// Validate checks the invariants the Instance Store enforces before persisting.
func (i *Instance) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("instance name must not be empty")
	}
	if i.ModuleName == "" {
		return fmt.Errorf("instance %q: module_name must not be empty", i.Name)
	}
	if i.ExecutablePath == "" {
		return fmt.Errorf("instance %q: executable_path must not be empty", i.Name)
	}
	switch i.Protocol {
	case ProtocolRCON, ProtocolREST, ProtocolManaged, ProtocolStdin, ProtocolDual:
	default:
		return fmt.Errorf("instance %q: unknown protocol %q", i.Name, i.Protocol)
	}
	return nil
}

// ServerCommand is the uniform request sent through any Protocol Client.
type ServerCommand struct {
	Name string            `json:"name"`
	Args []string          `json:"args,omitempty"`
	Raw  string            `json:"raw,omitempty"` // verbatim line, used by managed stdin
	Meta map[string]string `json:"meta,omitempty"`
}

// ServerResponse is the uniform reply from any Protocol Client.
type ServerResponse struct {
	OK       bool          `json:"ok"`
	Output   string        `json:"output"`
	Latency  time.Duration `json:"latency"`
	Protocol ProtocolKind  `json:"protocol"`
}

// LogSource distinguishes stdout from stderr in the console ring buffer.
type LogSource string

const (
	LogSourceStdout LogSource = "stdout"
	LogSourceStderr LogSource = "stderr"
	LogSourceSystem LogSource = "system" // supervisor-injected lines (start/stop markers)
)

// LogLevel is the best-effort severity parsed out of a console line.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

// LogLine is one entry in a ManagedProcess's console ring buffer.
type LogLine struct {
	ID        uint64    `json:"id"`
	Source    LogSource `json:"source"`
	Level     LogLevel  `json:"level"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// WSMessage is the envelope pushed to dashboard websocket subscribers.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	WSTypeConsoleLine   = "console_line"
	WSTypeInstanceState = "instance_state"
	WSTypeActivity      = "activity"
	WSTypeUpdateEvent   = "update_event"
)

// ClientRegistration tracks an IPC client (dashboard/bot) for the heartbeat reaper.
type ClientRegistration struct {
	ID       string    `json:"id"`
	BotPID   int       `json:"bot_pid,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}

// InstanceMetrics is the rolling health/activity record the metrics
// collector keeps per instance: how long it's been up, how often it has
// needed restarting, and when it last produced console activity.
type InstanceMetrics struct {
	InstanceID     string    `json:"instance_id"`
	RestartCount   int       `json:"restart_count"`
	CrashCount     int       `json:"crash_count"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	LastActivityAt time.Time `json:"last_activity_at,omitempty"`
	IdleSince      time.Time `json:"idle_since,omitempty"`
	LastUpdated    time.Time `json:"last_updated"`
}

// MetricsSnapshot captures every tracked instance's metrics at one point
// in time, appended to the collector's rolling history.
type MetricsSnapshot struct {
	Timestamp time.Time                   `json:"timestamp"`
	Instances map[string]*InstanceMetrics `json:"instances"`
}

// AlertThresholds configures when the metrics collector should raise an
// alert about an instance's health.
type AlertThresholds struct {
	RestartCountMax    int `json:"restart_count_max"`
	CrashCountMax      int `json:"crash_count_max"`
	IdleTimeMaxSeconds int `json:"idle_time_max_seconds"`
	QueueDepthMax      int `json:"queue_depth_max"` // pending start/stop requests backed up in the Supervisor
}

// Alert is a single threshold breach surfaced to the dashboard/notification
// channels.
type Alert struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	InstanceID string    `json:"instance_id,omitempty"`
	Message    string    `json:"message"`
	Severity   string    `json:"severity"`
	CreatedAt  time.Time `json:"created_at"`
}

// DefaultThresholds returns the alert thresholds saba-chan ships with.
func DefaultThresholds() AlertThresholds {
	return AlertThresholds{
		RestartCountMax:    5,
		CrashCountMax:      3,
		IdleTimeMaxSeconds: 1800,
		QueueDepthMax:      20,
	}
}
