// Package client issues RPC calls to workers: destination resolution through the
// registry and balancer, a transport pool per worker address, and sync/async calls.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"remote-module/codec"
	"remote-module/loadbalance"
	"remote-module/logging"
	"remote-module/registry"
	"remote-module/transport"
)

// ErrShutdown is returned for calls made after Close.
var ErrShutdown = errors.New("client: shut down")

// ServerError is an error string reported by the worker.
type ServerError string

func (e ServerError) Error() string {
	return string(e)
}

// Options tunes a Client. Zero values select defaults.
type Options struct {
	Codec       codec.CodecType
	PoolSize    int           // multiplexed connections per worker address
	Heartbeat   time.Duration // transport heartbeat period
	DialTimeout time.Duration
	Logger      *logrus.Logger
}

type Client struct {
	registry registry.Registry
	balancer loadbalance.Balancer
	opts     Options
	logger   *logrus.Logger

	mu     sync.Mutex
	pools  map[string]*transport.Pool // worker address → pool
	closed bool
}

func NewClient(reg registry.Registry, bal loadbalance.Balancer, opts Options) *Client {
	if bal == nil {
		bal = &loadbalance.RoundRobinBalancer{}
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 2
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		registry: reg,
		balancer: bal,
		opts:     opts,
		logger:   logger,
		pools:    make(map[string]*transport.Pool),
	}
}

// Resolve picks the instance serving dest. key is passed to the balancer
// (the module name, for consistent hashing).
func (c *Client) Resolve(ctx context.Context, dest, key string) (*registry.Instance, error) {
	instances, err := c.registry.Discover(ctx, dest)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", dest, err)
	}
	inst, err := c.balancer.Pick(key, instances)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", dest, err)
	}
	return inst, nil
}

func (c *Client) pool(addr string) (*transport.Pool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrShutdown
	}
	p, ok := c.pools[addr]
	if !ok {
		p = transport.NewPool(addr, c.opts.PoolSize, c.opts.Codec, c.opts.Heartbeat, nil)
		c.pools[addr] = p
	}
	return p, nil
}

// Call invokes serviceMethod on the worker at addr and waits for the reply.
func (c *Client) Call(ctx context.Context, addr, serviceMethod string, args, reply any) error {
	call := <-c.Go(ctx, addr, serviceMethod, args, reply, make(chan *Call, 1)).Done
	return call.Error
}

// Go invokes serviceMethod asynchronously. The call is delivered on done once
// finished; done must be buffered (nil allocates one).
func (c *Client) Go(ctx context.Context, addr, serviceMethod string, args, reply any, done chan *Call) *Call {
	if done == nil {
		done = make(chan *Call, 1)
	} else if cap(done) == 0 {
		panic("client: done channel is unbuffered")
	}

	ctx, requestID := logging.EnsureRequestID(ctx)
	call := &Call{
		ServiceMethod: serviceMethod,
		Addr:          addr,
		RequestID:     requestID,
		Args:          args,
		Reply:         reply,
		Done:          done,
	}
	go c.send(ctx, call)
	return call
}

func (c *Client) send(ctx context.Context, call *Call) {
	entry := c.logger.WithFields(logging.CallFields("", call.Addr, call.ServiceMethod)).WithField(logging.FieldRequestID, call.RequestID)

	pool, err := c.pool(call.Addr)
	if err != nil {
		call.finish(err)
		return
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	t, err := pool.Get(dialCtx)
	cancel()
	if err != nil {
		entry.WithError(err).Warn("dial worker failed")
		call.finish(fmt.Errorf("dial %s: %w", call.Addr, err))
		return
	}

	seq, ch, err := t.Send(call.ServiceMethod, call.RequestID, call.Args)
	if err != nil {
		call.finish(err)
		return
	}

	select {
	case resp := <-ch:
		switch {
		case resp.Err != nil:
			call.finish(resp.Err)
		case resp.Msg.Error != "":
			call.finish(ServerError(resp.Msg.Error))
		case call.Reply != nil && len(resp.Msg.Payload) > 0:
			call.finish(json.Unmarshal(resp.Msg.Payload, call.Reply))
		default:
			call.finish(nil)
		}
	case <-ctx.Done():
		t.Cancel(seq)
		call.finish(ctx.Err())
	}
	entry.WithError(call.Error).Debug("call finished")
}

// Close shuts every pool down. In-flight calls fail.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for addr, p := range c.pools {
		p.Close()
		delete(c.pools, addr)
	}
	return nil
}
