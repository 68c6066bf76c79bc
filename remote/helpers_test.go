package remote

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"remote-module/client"
	"remote-module/codec"
	"remote-module/loadbalance"
	"remote-module/module"
	"remote-module/modules"
	"remote-module/registry"
	"remote-module/worker"
)

// NonModule has no Forward.
type NonModule struct{}

func newNonModule(*module.Input) *NonModule { return &NonModule{} }

// sleeper sleeps for the duration given as its first argument, in milliseconds.
type sleeper struct{}

func (sleeper) Forward(ctx context.Context, in *module.Input) (*module.Output, error) {
	var ms int
	if err := in.Require(0, "ms", &ms); err != nil {
		return nil, err
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return module.NewOutput(ms)
}

// failer always fails.
type failer struct{}

func (failer) Forward(context.Context, *module.Input) (*module.Output, error) {
	return nil, errors.New("forward exploded")
}

// blob returns a string of the requested length.
type blob struct{}

func (blob) Forward(_ context.Context, in *module.Input) (*module.Output, error) {
	var n int
	if err := in.Require(0, "n", &n); err != nil {
		return nil, err
	}
	return module.NewOutput(strings.Repeat("x", n))
}

func testCatalog(t testing.TB) *module.Catalog {
	t.Helper()
	c := module.NewCatalog()
	require.NoError(t, modules.Register(c))
	c.MustRegister("non_module", newNonModule)
	c.MustRegister("sleeper", func(*module.Input) sleeper { return sleeper{} })
	c.MustRegister("failer", func(*module.Input) failer { return failer{} })
	c.MustRegister("blob", func(*module.Input) blob { return blob{} })
	return c
}

type cluster struct {
	reg     *registry.StaticRegistry
	catalog *module.Catalog
	cli     *client.Client
	nodes   map[string]*worker.Node
}

// newCluster starts one node per name, all advertised in a shared static registry.
func newCluster(t testing.TB, bal loadbalance.Balancer, names ...string) *cluster {
	t.Helper()
	c := &cluster{
		reg:     registry.NewStaticRegistry(),
		catalog: testCatalog(t),
		nodes:   make(map[string]*worker.Node),
	}
	for _, name := range names {
		node, err := worker.NewNode(worker.Config{Name: name}, c.reg, c.catalog, nil)
		require.NoError(t, err)
		require.NoError(t, node.Start(context.Background()))
		t.Cleanup(func() { node.Stop(context.Background()) })
		c.nodes[node.Addr()] = node
	}
	c.cli = client.NewClient(c.reg, bal, client.Options{Codec: codec.CodecTypeJSON, PoolSize: 2})
	t.Cleanup(func() { c.cli.Close() })
	return c
}

func (c *cluster) new(t testing.TB, dest, constructor string, in *module.Input, opts ...Option) *Handle {
	t.Helper()
	opts = append([]Option{WithCatalog(c.catalog)}, opts...)
	h, err := New(context.Background(), c.cli, dest, constructor, in, opts...)
	require.NoError(t, err)
	return h
}

func (c *cluster) hosted() int {
	n := 0
	for _, node := range c.nodes {
		n += node.Service().Len()
	}
	return n
}
