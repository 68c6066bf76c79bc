package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"remote-module/codec"
)

// Dialer opens a connection to addr.
type Dialer func(ctx context.Context, addr string) (net.Conn, error)

// Pool keeps up to size multiplexed transports to one worker address and hands
// them out round-robin. Slots are dialed lazily and redialed once broken.
//
// Transports are shared, not borrowed: multiplexing lets every caller use any
// of them concurrently, so there is no Put.
type Pool struct {
	addr      string
	codec     codec.CodecType
	heartbeat time.Duration
	dial      Dialer

	mu     sync.Mutex
	slots  []*ClientTransport
	next   int
	closed bool
}

// NewPool creates an empty pool. dial may be nil to use a plain TCP dialer.
func NewPool(addr string, size int, codecType codec.CodecType, heartbeat time.Duration, dial Dialer) *Pool {
	if size <= 0 {
		size = 1
	}
	if dial == nil {
		var d net.Dialer
		dial = func(ctx context.Context, addr string) (net.Conn, error) {
			return d.DialContext(ctx, "tcp", addr)
		}
	}
	return &Pool{
		addr:      addr,
		codec:     codecType,
		heartbeat: heartbeat,
		dial:      dial,
		slots:     make([]*ClientTransport, size),
	}
}

// Get returns the next healthy transport, dialing its slot if needed.
func (p *Pool) Get(ctx context.Context) (*ClientTransport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	i := p.next
	p.next = (p.next + 1) % len(p.slots)

	if t := p.slots[i]; t != nil && t.Err() == nil {
		return t, nil
	}

	// Dialing under the lock keeps a burst of callers from opening extra connections.
	conn, err := p.dial(ctx, p.addr)
	if err != nil {
		return nil, err
	}
	t, err := NewClientTransport(conn, p.codec, p.heartbeat)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.slots[i] = t
	return t, nil
}

// Addr returns the worker address this pool dials.
func (p *Pool) Addr() string {
	return p.addr
}

// Close shuts every transport down. Further Gets fail with ErrClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	for i, t := range p.slots {
		if t != nil {
			t.Close()
			p.slots[i] = nil
		}
	}
	return nil
}
