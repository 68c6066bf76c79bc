// Package loadbalance places modules on one of the instances registered under a worker name.
//
//   - RoundRobin:      spread modules evenly
//   - WeightedRandom:  heterogeneous instances (different CPU/memory)
//   - ConsistentHash:  the same module name always lands on the same instance
package loadbalance

import (
	"errors"
	"fmt"

	"remote-module/registry"
)

// ErrNoInstances is returned when there is nothing to pick from.
var ErrNoInstances = errors.New("loadbalance: no instances available")

// Balancer picks the instance a module is created on.
// key is the module name; strategies that do not need affinity ignore it.
// Implementations must be goroutine-safe.
type Balancer interface {
	Pick(key string, instances []registry.Instance) (*registry.Instance, error)
	Name() string
}

// New returns the balancer registered under name ("round_robin", "weighted_random", "consistent_hash").
func New(name string) (Balancer, error) {
	switch name {
	case "", "round_robin":
		return &RoundRobinBalancer{}, nil
	case "weighted_random":
		return &WeightedRandomBalancer{}, nil
	case "consistent_hash":
		return NewConsistentHashBalancer(100), nil
	default:
		return nil, fmt.Errorf("loadbalance: unknown strategy %q", name)
	}
}
