// Package notifyevent is the event shape the notification router and its
// Discord/Slack/email/toast channels dispatch on — saba-chan instance
// lifecycle and updater events, not the domain objects themselves.
package notifyevent

import (
	"time"

	"github.com/google/uuid"
)

// EventType names the kind of saba-chan event being routed to a
// notification channel.
type EventType string

const (
	EventInstanceStarted EventType = "instance_started"
	EventInstanceStopped EventType = "instance_stopped"
	EventInstanceCrashed EventType = "instance_crashed"
	EventUpdateAvailable EventType = "update_available"
	EventUpdateApplied   EventType = "update_applied"
	EventUpdateFailed    EventType = "update_failed"
	EventAlertRaised     EventType = "alert_raised"
)

// Priority constants for events, lower is more urgent.
const (
	PriorityCritical = 1
	PriorityHigh     = 2
	PriorityNormal   = 3
	PriorityLow      = 4
)

// Event is one notification-worthy occurrence, routed to every channel
// whose ShouldNotify accepts it.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"` // instance ID, or "updater"
	Target    string                 `json:"target"` // instance name, or component name
	Priority  int                    `json:"priority"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
}

// New creates an Event with an auto-generated ID and current timestamp.
func New(eventType EventType, source, target string, priority int, payload map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Target:    target,
		Priority:  priority,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}
