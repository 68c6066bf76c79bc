package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/remote-module/workers/"

// EtcdRegistry implements Registry on etcd v3.
//
// Registration uses TTL leases: if a worker crashes, the lease expires and its
// entry disappears.
//
//	Key:   /remote-module/workers/{Name}/{Addr}
//	Value: JSON-encoded Instance
type EtcdRegistry struct {
	client *clientv3.Client

	mu     sync.Mutex
	leases map[string]context.CancelFunc // key → stops its KeepAlive
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, dialTimeout time.Duration) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect etcd: %w", err)
	}
	return &EtcdRegistry{client: c, leases: make(map[string]context.CancelFunc)}, nil
}

func instanceKey(name, addr string) string {
	return keyPrefix + name + "/" + addr
}

// Register stores instance under a lease of ttl seconds and keeps the lease alive
// until Deregister or Close.
//
// The lease id stays local to this call so several workers can share one EtcdRegistry.
func (r *EtcdRegistry) Register(ctx context.Context, instance Instance, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("grant lease: %w", err)
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	key := instanceKey(instance.Name, instance.Addr)
	if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	// KeepAlive must outlive the caller's ctx.
	kaCtx, cancel := context.WithCancel(context.Background())
	ch, err := r.client.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		cancel()
		return fmt.Errorf("keep lease alive: %w", err)
	}

	r.mu.Lock()
	if prev, ok := r.leases[key]; ok {
		prev()
	}
	r.leases[key] = cancel
	r.mu.Unlock()

	// Drain keep-alive responses so the channel never fills up.
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes an instance and stops renewing its lease.
func (r *EtcdRegistry) Deregister(ctx context.Context, name string, addr string) error {
	key := instanceKey(name, addr)

	r.mu.Lock()
	if cancel, ok := r.leases[key]; ok {
		cancel()
		delete(r.leases, key)
	}
	r.mu.Unlock()

	if _, err := r.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Watch emits the full instance list for name every time it changes, until ctx is done.
func (r *EtcdRegistry) Watch(ctx context.Context, name string) <-chan []Instance {
	ch := make(chan []Instance, 1)
	prefix := keyPrefix + name + "/"

	go func() {
		defer close(ch)
		for range r.client.Watch(ctx, prefix, clientv3.WithPrefix()) {
			// Re-read the whole prefix; simpler than applying individual events.
			instances, err := r.Discover(ctx, name)
			if err != nil && !errors.Is(err, ErrNotFound) {
				continue
			}
			select {
			case ch <- instances:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Discover returns every instance registered under name.
func (r *EtcdRegistry) Discover(ctx context.Context, name string) ([]Instance, error) {
	resp, err := r.client.Get(ctx, keyPrefix+name+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", name, err)
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance Instance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			continue // skip malformed entries
		}
		instances = append(instances, instance)
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return instances, nil
}

// Close stops all keep-alives and closes the etcd client.
func (r *EtcdRegistry) Close() error {
	r.mu.Lock()
	for key, cancel := range r.leases {
		cancel()
		delete(r.leases, key)
	}
	r.mu.Unlock()
	return r.client.Close()
}
