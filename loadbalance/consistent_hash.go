package loadbalance

import (
	"fmt"
	"hash/crc32"
	"remote-module/registry"
	"sort"
	"strings"
	"sync"
)

// ConsistentHashBalancer maps module names onto a hash ring of instances, so a
// name recreated after a restart lands where it was before.
//
// Each instance owns `replicas` virtual nodes to keep the ring balanced.
//
//	Hash Ring:
//	                  0
//	                ╱   ╲
//	         B ●               ● A
//	           │    key ◆──►   │   (clockwise to nearest node → A)
//	         C ●               ● A' (virtual node of A)
//	                ╲   ╱
type ConsistentHashBalancer struct {
	replicas int

	mu      sync.Mutex
	members string                        // fingerprint of the instance set the ring was built from
	ring    []uint32                      // sorted virtual node hashes
	nodes   map[uint32]*registry.Instance // virtual node hash → instance
}

func NewConsistentHashBalancer(replicas int) *ConsistentHashBalancer {
	if replicas <= 0 {
		replicas = 100
	}
	return &ConsistentHashBalancer{
		replicas: replicas,
		nodes:    make(map[uint32]*registry.Instance),
	}
}

// Pick rebuilds the ring when the instance set changed since the last call,
// then walks clockwise from hash(key) to the first virtual node.
func (b *ConsistentHashBalancer) Pick(key string, instances []registry.Instance) (*registry.Instance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if fp := fingerprint(instances); fp != b.members {
		b.rebuild(instances)
		b.members = fp
	}

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}

	picked := *b.nodes[b.ring[idx]]
	return &picked, nil
}

func (b *ConsistentHashBalancer) rebuild(instances []registry.Instance) {
	b.ring = b.ring[:0]
	b.nodes = make(map[uint32]*registry.Instance, len(instances)*b.replicas)
	for i := range instances {
		inst := instances[i]
		for r := 0; r < b.replicas; r++ {
			hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", inst.Addr, r)))
			b.ring = append(b.ring, hash)
			b.nodes[hash] = &inst
		}
	}
	sort.Slice(b.ring, func(i, j int) bool {
		return b.ring[i] < b.ring[j]
	})
}

func fingerprint(instances []registry.Instance) string {
	addrs := make([]string, len(instances))
	for i, inst := range instances {
		addrs[i] = inst.Addr
	}
	sort.Strings(addrs)
	return strings.Join(addrs, ",")
}

func (b *ConsistentHashBalancer) Name() string {
	return "consistent_hash"
}
