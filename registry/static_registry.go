package registry

import (
	"context"
	"fmt"
	"sync"
)

// StaticRegistry keeps instances in memory. It backs single-host setups and
// tests, and is seeded from configuration.
type StaticRegistry struct {
	mu        sync.RWMutex
	instances map[string][]Instance
	watchers  map[string][]chan []Instance
}

func NewStaticRegistry(instances ...Instance) *StaticRegistry {
	r := &StaticRegistry{
		instances: make(map[string][]Instance),
		watchers:  make(map[string][]chan []Instance),
	}
	for _, inst := range instances {
		r.instances[inst.Name] = append(r.instances[inst.Name], inst)
	}
	return r
}

// Register adds or replaces the instance. ttl is ignored.
func (r *StaticRegistry) Register(_ context.Context, instance Instance, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	insts := r.instances[instance.Name]
	for i := range insts {
		if insts[i].Addr == instance.Addr {
			insts[i] = instance
			r.notifyLocked(instance.Name)
			return nil
		}
	}
	r.instances[instance.Name] = append(insts, instance)
	r.notifyLocked(instance.Name)
	return nil
}

func (r *StaticRegistry) Deregister(_ context.Context, name string, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	insts := r.instances[name]
	for i, inst := range insts {
		if inst.Addr == addr {
			r.instances[name] = append(insts[:i:i], insts[i+1:]...)
			break
		}
	}
	r.notifyLocked(name)
	return nil
}

func (r *StaticRegistry) Discover(_ context.Context, name string) ([]Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	insts := r.instances[name]
	if len(insts) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	out := make([]Instance, len(insts))
	copy(out, insts)
	return out, nil
}

// Watch emits the instance list for name after every change, until ctx is done.
func (r *StaticRegistry) Watch(ctx context.Context, name string) <-chan []Instance {
	ch := make(chan []Instance, 1)

	r.mu.Lock()
	r.watchers[name] = append(r.watchers[name], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		ws := r.watchers[name]
		for i, w := range ws {
			if w == ch {
				r.watchers[name] = append(ws[:i:i], ws[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

// notifyLocked must be called with mu held. Slow watchers only see the latest list.
func (r *StaticRegistry) notifyLocked(name string) {
	snapshot := make([]Instance, len(r.instances[name]))
	copy(snapshot, r.instances[name])
	for _, w := range r.watchers[name] {
		select {
		case <-w:
		default:
		}
		select {
		case w <- snapshot:
		default:
		}
	}
}
