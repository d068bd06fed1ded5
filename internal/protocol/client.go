// Package protocol implements the uniform Client interface that lets the
// Supervisor dispatch a ServerCommand to a running instance without caring
// whether it speaks Source RCON, a REST control API, or a managed
// process's stdin.
package protocol

import (
	"context"

	"github.com/sabachan/sabachan/internal/types"
)

// Client sends one ServerCommand to a running instance and returns its
// ServerResponse. Implementations may retry internally; the reported
// Latency is measured from the first attempt, so it includes any retries.
type Client interface {
	Send(ctx context.Context, cmd types.ServerCommand) (types.ServerResponse, error)
	Close() error
}
