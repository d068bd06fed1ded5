package eventbus

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Message is a received NATS message, decoupled from the nats.go types so
// callers outside this package never need to import nats.go directly.
type Message struct {
	Subject string
	Data    []byte
}

// Subscriber is a standalone connection into a saba-chan event bus, for
// processes other than the daemon itself (a dashboard, a Discord bot) that
// want to tail console/lifecycle/updater events without polling the HTTP
// API.
type Subscriber struct {
	conn *nats.Conn
}

// Connect dials an already-running bus (local or remote) and returns a
// Subscriber with indefinite auto-reconnect.
func Connect(url string) (*Subscriber, error) {
	opts := []nats.Option{
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[EVENTBUS] disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("[EVENTBUS] reconnected to %s", c.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect: %w", err)
	}
	return &Subscriber{conn: conn}, nil
}

// Subscribe registers an async handler for subject, which may use NATS
// wildcards ("sabachan.instance.*.console", "sabachan.instance.>").
func (s *Subscriber) Subscribe(subject string, handler func(Message)) (*nats.Subscription, error) {
	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(Message{Subject: msg.Subject, Data: msg.Data})
	})
	if err != nil {
		return nil, fmt.Errorf("eventbus: subscribe %s: %w", subject, err)
	}
	return sub, nil
}

// SubscribeJSON is Subscribe but unmarshals the payload into a fresh
// value of type T each time before invoking handler; decode failures are logged and
// swallowed rather than killing the subscription.
func SubscribeJSON[T any](s *Subscriber, subject string, handler func(T)) (*nats.Subscription, error) {
	return s.Subscribe(subject, func(msg Message) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			log.Printf("[EVENTBUS] decode failed for subject %s: %v", msg.Subject, err)
			return
		}
		handler(v)
	})
}

// IsConnected reports whether the subscriber currently has a live
// connection to the bus.
func (s *Subscriber) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

// Close releases the underlying connection.
func (s *Subscriber) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}
