// Package remote creates modules on remote workers and calls them through local handles.
//
//	h, err := remote.New(ctx, cli, "worker1", "reverse", module.Args(1))
//	out, err := h.Forward(ctx, module.Args(tensor.Ones(1), 2, "3"))
//	fut := h.ForwardAsync(ctx, module.Args(tensor.Ones(1), 2).Kw("word", "3"))
//	out, err = fut.Wait()
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sync"
	"time"

	"remote-module/client"
	"remote-module/logging"
	"remote-module/message"
	"remote-module/module"
	"remote-module/tensor"
	"remote-module/uniquename"
)

// cleanupTimeout bounds the best-effort delete issued for an unreachable handle.
const cleanupTimeout = 5 * time.Second

// Handle is a local proxy for a module living on a worker.
// Its identity never changes after New; it is safe for concurrent use.
type Handle struct {
	cli         *client.Client
	dest        string
	addr        string
	name        string
	constructor string
	iface       string
	typeName    string

	closeOnce sync.Once
	closed    chan struct{}
	closeMu   sync.Mutex
	deleted   bool
	cleanup   runtime.Cleanup
}

type orphan struct {
	cli  *client.Client
	addr string
	name string
}

// New validates constructor locally, then creates the module on dest.
// Validation failures are returned before any network traffic.
func New(ctx context.Context, cli *client.Client, dest, constructor string, input *module.Input, opts ...Option) (*Handle, error) {
	o := options{catalog: module.Default}
	for _, opt := range opts {
		opt(&o)
	}

	ctor, err := o.catalog.Lookup(constructor)
	if err != nil {
		return nil, err
	}
	if err := ctor.Validate(o.iface); err != nil {
		return nil, err
	}
	if err := input.Err(); err != nil {
		return nil, err
	}

	name := o.name
	if name == "" {
		name = uniquename.Next()
	}
	inst, err := cli.Resolve(ctx, dest, name)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		cli:         cli,
		dest:        dest,
		addr:        inst.Addr,
		name:        name,
		constructor: constructor,
		closed:      make(chan struct{}),
	}
	if o.iface != nil {
		h.iface = o.iface.String()
	}

	args := &message.CreateArgs{Name: name, Constructor: constructor, Interface: h.iface, Input: input.Message()}
	var reply message.CreateReply
	if err := cli.Call(ctx, h.addr, message.MethodCreate, args, &reply); err != nil {
		return nil, h.wrap(message.MethodCreate, err)
	}
	h.typeName = reply.TypeName

	h.cleanup = runtime.AddCleanup(h, deleteOrphan, orphan{cli: cli, addr: h.addr, name: name})
	logging.L(ctx).WithFields(logging.ModuleFields(dest, name, constructor)).Debug("remote module created")
	return h, nil
}

func deleteOrphan(o orphan) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		o.cli.Call(ctx, o.addr, message.MethodDelete, &message.DeleteArgs{Name: o.name}, &message.DeleteReply{})
	}()
}

// Dest is the destination worker name.
func (h *Handle) Dest() string { return h.dest }

// Addr is the address of the worker hosting the module.
func (h *Handle) Addr() string { return h.addr }

// Name is the module's unique name on its worker.
func (h *Handle) Name() string { return h.name }

// Constructor is the catalog name the module was built with.
func (h *Handle) Constructor() string { return h.constructor }

// Interface names the interface the constructor was checked against, if any.
func (h *Handle) Interface() string { return h.iface }

// TypeName is the concrete module type reported by the worker.
func (h *Handle) TypeName() string { return h.typeName }

func (h *Handle) String() string {
	return fmt.Sprintf("%s/%s(%s)", h.dest, h.name, h.constructor)
}

func (h *Handle) isClosed() bool {
	select {
	case <-h.closed:
		return true
	default:
		return false
	}
}

func (h *Handle) forwardArgs(input *module.Input) (*message.ForwardArgs, error) {
	if h.isClosed() {
		return nil, ErrClosed
	}
	if err := input.Err(); err != nil {
		return nil, err
	}
	return &message.ForwardArgs{Name: h.name, Input: input.Message()}, nil
}

// Forward calls the module and blocks for its output.
func (h *Handle) Forward(ctx context.Context, input *module.Input) (*module.Output, error) {
	args, err := h.forwardArgs(input)
	if err != nil {
		return nil, err
	}
	var reply message.ForwardReply
	if err := h.cli.Call(ctx, h.addr, message.MethodForward, args, &reply); err != nil {
		return nil, h.wrap(message.MethodForward, err)
	}
	runtime.KeepAlive(h)
	return module.RawOutput(reply.Values...), nil
}

// ForwardAsync sends the call and returns at once. ctx bounds the call itself.
func (h *Handle) ForwardAsync(ctx context.Context, input *module.Input) *Future {
	args, err := h.forwardArgs(input)
	if err != nil {
		return resolved(nil, err)
	}

	f := newFuture()
	reply := &message.ForwardReply{}
	call := h.cli.Go(ctx, h.addr, message.MethodForward, args, reply, nil)
	go func() {
		<-call.Done
		if call.Error != nil {
			f.resolve(nil, h.wrap(message.MethodForward, call.Error))
			return
		}
		f.resolve(module.RawOutput(reply.Values...), nil)
	}()
	return f
}

// Parameters fetches the module's parameter tensors.
func (h *Handle) Parameters(ctx context.Context) ([]*tensor.Tensor, error) {
	if h.isClosed() {
		return nil, ErrClosed
	}
	var reply message.ParametersReply
	if err := h.cli.Call(ctx, h.addr, message.MethodParameters, &message.ParametersArgs{Name: h.name}, &reply); err != nil {
		return nil, h.wrap(message.MethodParameters, err)
	}
	params := make([]*tensor.Tensor, 0, len(reply.Tensors))
	for i, raw := range reply.Tensors {
		var t tensor.Tensor
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("decode parameter %d: %w", i, err)
		}
		params = append(params, &t)
	}
	return params, nil
}

// Close deletes the module on the worker. The handle refuses new calls from
// the first Close on. The delete runs detached from ctx's cancellation,
// bounded by cleanupTimeout; if it fails, the unreachable-handle cleanup stays
// armed and Close may be called again.
func (h *Handle) Close(ctx context.Context) error {
	h.closeMu.Lock()
	defer h.closeMu.Unlock()
	if h.deleted {
		return nil
	}
	h.closeOnce.Do(func() { close(h.closed) })

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	var reply message.DeleteReply
	if err := h.cli.Call(ctx, h.addr, message.MethodDelete, &message.DeleteArgs{Name: h.name}, &reply); err != nil {
		return h.wrap(message.MethodDelete, err)
	}
	h.deleted = true
	h.cleanup.Stop()
	return nil
}
