package ipcserver

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sabachan/sabachan/internal/process"
	"github.com/sabachan/sabachan/internal/types"
)

// heartbeatInterval and clientTTL match spec.md's client registration
// contract: clients are expected to heartbeat every 30s; missing it for
// 90s expires the registration.
const (
	heartbeatInterval = 30 * time.Second
	clientTTL         = 90 * time.Second
)

// ClientRegistry tracks dashboard/CLI/bot clients for the heartbeat
// reaper, independent of instance tracking.
type ClientRegistry struct {
	mu      sync.Mutex
	clients map[string]*types.ClientRegistration
}

// NewClientRegistry returns an empty registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*types.ClientRegistration)}
}

// Register creates a new client record and returns its id plus the
// heartbeat contract (interval, ttl).
func (c *ClientRegistry) Register(botPID int) (id string, interval, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id = uuid.NewString()
	c.clients[id] = &types.ClientRegistration{ID: id, BotPID: botPID, LastSeen: time.Now()}
	return id, heartbeatInterval, clientTTL
}

// Heartbeat bumps a client's last-seen time. Returns false if the client
// isn't registered (e.g. it already expired).
func (c *ClientRegistry) Heartbeat(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg, ok := c.clients[id]
	if !ok {
		return false
	}
	reg.LastSeen = time.Now()
	return true
}

// Unregister removes a client immediately, returning its bot PID (0 if
// none) so the caller can kill it.
func (c *ClientRegistry) Unregister(id string) (botPID int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg, ok := c.clients[id]
	if !ok {
		return 0, false
	}
	delete(c.clients, id)
	return reg.BotPID, true
}

// RunReaper expires clients missing heartbeats for clientTTL, killing any
// bot PID they owned, until ctx is cancelled. onExpire is called (outside
// the registry lock) for every expired client, for logging.
func (c *ClientRegistry) RunReaper(ctx context.Context, onExpire func(id string, botPID int)) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.reapOnce(onExpire)
		}
	}
}

func (c *ClientRegistry) reapOnce(onExpire func(id string, botPID int)) {
	now := time.Now()

	c.mu.Lock()
	var expired []*types.ClientRegistration
	for id, reg := range c.clients {
		if now.Sub(reg.LastSeen) > clientTTL {
			expired = append(expired, reg)
			delete(c.clients, id)
		}
	}
	c.mu.Unlock()

	for _, reg := range expired {
		if reg.BotPID > 0 {
			_ = process.KillPID(reg.BotPID)
		}
		if onExpire != nil {
			onExpire(reg.ID, reg.BotPID)
		}
	}
}
