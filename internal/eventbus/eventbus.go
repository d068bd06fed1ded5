// Package eventbus embeds a local NATS server and publishes saba-chan
// lifecycle/console/update events to it, so an out-of-process dashboard
// can subscribe without going through the HTTP API at all.
package eventbus

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// Subjects saba-chan publishes on. "*" is the instance ID.
const (
	SubjectConsolePrefix   = "sabachan.instance." // + <id> + ".console"
	SubjectLifecyclePrefix = "sabachan.instance." // + <id> + ".lifecycle"
	SubjectUpdaterEvents   = "sabachan.updater.events"
)

// Bus owns an embedded NATS server and the publisher connection into it.
type Bus struct {
	srv  *server.Server
	conn *nats.Conn
}

// Start launches an embedded NATS server on port (0 picks any free port)
// and connects a publisher to it.
func Start(port int) (*Bus, error) {
	opts := &server.Options{
		Host:       "127.0.0.1",
		Port:       port,
		NoLog:      true,
		NoSigs:     true,
		MaxPayload: 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("eventbus: create embedded server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		return nil, fmt.Errorf("eventbus: embedded server did not become ready")
	}

	conn, err := nats.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("eventbus: connect publisher: %w", err)
	}

	log.Printf("[EVENTBUS] embedded NATS ready at %s", ns.ClientURL())
	return &Bus{srv: ns, conn: conn}, nil
}

// PublishConsoleLine fans a console line out to sabachan.instance.<id>.console.
func (b *Bus) PublishConsoleLine(instanceID string, line interface{}) {
	b.publish(SubjectConsolePrefix+instanceID+".console", line)
}

// PublishLifecycle fans a lifecycle transition out to
// sabachan.instance.<id>.lifecycle.
func (b *Bus) PublishLifecycle(instanceID string, event interface{}) {
	b.publish(SubjectLifecyclePrefix+instanceID+".lifecycle", event)
}

// PublishUpdaterEvent fans an updater worker event out to
// sabachan.updater.events.
func (b *Bus) PublishUpdaterEvent(event interface{}) {
	b.publish(SubjectUpdaterEvents, event)
}

func (b *Bus) publish(subject string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[EVENTBUS] marshal failed for subject %s: %v", subject, err)
		return
	}
	if err := b.conn.Publish(subject, data); err != nil {
		log.Printf("[EVENTBUS] publish failed for subject %s: %v", subject, err)
	}
}

// ClientURL returns the URL other local processes can nats.Connect to.
func (b *Bus) ClientURL() string {
	return b.srv.ClientURL()
}

// Close shuts down the publisher connection and the embedded server.
func (b *Bus) Close() {
	b.conn.Close()
	b.srv.Shutdown()
}
