// Package registry maps worker names to the addresses that serve them.
package registry

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Discover when no instance serves a worker name.
var ErrNotFound = errors.New("registry: no instance registered")

// Instance is one listening worker process.
type Instance struct {
	Name    string // Worker name, the "destination" a caller addresses
	Addr    string // Routable host:port
	Weight  int    // Weight for weighted placement
	Version string
}

type Registry interface {
	Register(ctx context.Context, instance Instance, ttl int64) error
	Deregister(ctx context.Context, name string, addr string) error
	Discover(ctx context.Context, name string) ([]Instance, error)
	Watch(ctx context.Context, name string) <-chan []Instance
}
