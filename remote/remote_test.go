package remote

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remote-module/client"
	"remote-module/loadbalance"
	"remote-module/module"
	"remote-module/modules"
	"remote-module/tensor"
	"remote-module/uniquename"
)

const dest = "worker1"

func scanReversed(t *testing.T, out *module.Output) (string, int, tensor.Tensor) {
	t.Helper()
	var (
		word   string
		number int
		got    tensor.Tensor
	)
	require.NoError(t, out.Scan(&word, &number, &got))
	return word, number, got
}

// handles yields one plain handle and one created with an interface check.
func handles(t *testing.T, c *cluster) []*Handle {
	return []*Handle{
		c.new(t, dest, modules.ReverseName, module.Args(1).Kw("first_kwarg", 2)),
		c.new(t, dest, modules.ReverseName, module.Args(1).Kw("first_kwarg", 2),
			WithInterface(module.InterfaceOf[modules.Describer]())),
	}
}

func TestForwardSync(t *testing.T) {
	c := newCluster(t, nil, dest)
	for _, h := range handles(t, c) {
		out, err := h.Forward(context.Background(), module.Args(tensor.Ones(1), 2, "3"))
		require.NoError(t, err)

		word, number, got := scanReversed(t, out)
		assert.Equal(t, "3", word)
		assert.Equal(t, 2, number)
		assert.True(t, got.Equal(tensor.Ones(1)))
	}
}

func TestForwardAsync(t *testing.T) {
	c := newCluster(t, nil, dest)
	for _, h := range handles(t, c) {
		fut := h.ForwardAsync(context.Background(), module.Args(tensor.Ones(1), 2, "3"))
		out, err := fut.Wait()
		require.NoError(t, err)
		assert.True(t, fut.Ready())

		word, number, got := scanReversed(t, out)
		assert.Equal(t, "3", word)
		assert.Equal(t, 2, number)
		assert.True(t, got.Equal(tensor.Ones(1)))

		again, err := fut.Wait()
		require.NoError(t, err)
		assert.Same(t, out, again)
	}
}

func TestForwardWithKwargs(t *testing.T) {
	c := newCluster(t, nil, dest)
	h := c.new(t, dest, modules.ReverseName, module.Args(1))

	positional, err := h.Forward(context.Background(), module.Args(tensor.Ones(1), 2, "3"))
	require.NoError(t, err)
	keyword, err := h.Forward(context.Background(), module.Args(tensor.Ones(1), 2).Kw("word", "3"))
	require.NoError(t, err)
	async, err := h.ForwardAsync(context.Background(), module.Args(tensor.Ones(1), 2).Kw("word", "3")).Wait()
	require.NoError(t, err)

	assert.Equal(t, positional.Raw(), keyword.Raw())
	assert.Equal(t, positional.Raw(), async.Raw())
}

func TestBadModuleCreator(t *testing.T) {
	c := newCluster(t, nil, dest)
	calls := func() float64 {
		total := 0.0
		for _, n := range c.nodes {
			total += testutilCalls(n)
		}
		return total
	}
	before := calls()

	_, err := New(context.Background(), c.cli, dest, "non_module", module.Args(), WithCatalog(c.catalog))
	require.ErrorIs(t, err, module.ErrNotModule)
	assert.Contains(t, err.Error(), "NonModule")

	_, err = New(context.Background(), c.cli, dest, modules.ScaleName, module.Args([]int{1}),
		WithCatalog(c.catalog), WithInterface(module.InterfaceOf[modules.Describer]()))
	require.ErrorIs(t, err, module.ErrInterfaceMismatch)

	_, err = New(context.Background(), c.cli, dest, "missing", module.Args(), WithCatalog(c.catalog))
	require.ErrorIs(t, err, module.ErrUnknownConstructor)

	_, err = New(context.Background(), c.cli, dest, modules.ReverseName, module.Args(make(chan int)), WithCatalog(c.catalog))
	require.Error(t, err)

	assert.Equal(t, before, calls(), "validation must not reach the worker")
	assert.Equal(t, 0, c.hosted())
}

func TestBadModuleCreatorNeedsNoWorker(t *testing.T) {
	cli := client.NewClient(newCluster(t, nil).reg, nil, client.Options{})
	defer cli.Close()
	_, err := New(context.Background(), cli, "nowhere", "non_module", module.Args(), WithCatalog(testCatalog(t)))
	assert.ErrorIs(t, err, module.ErrNotModule)
}

func TestUserProvidedName(t *testing.T) {
	c := newCluster(t, nil, dest)
	h := c.new(t, dest, modules.ReverseName, module.Args(1), WithName("my_module"))
	assert.Equal(t, "my_module", h.Name())
	assert.Equal(t, dest, h.Dest())
	assert.Equal(t, "modules.Reverse", h.TypeName())

	_, err := New(context.Background(), c.cli, dest, modules.ReverseName, module.Args(1),
		WithCatalog(c.catalog), WithName("my_module"))
	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Error(), "already in use")
	assert.Equal(t, 1, c.hosted())
}

func TestGeneratedNamesAreUnique(t *testing.T) {
	c := newCluster(t, nil, dest)
	a := c.new(t, dest, modules.ReverseName, module.Args(1))
	b := c.new(t, dest, modules.ReverseName, module.Args(1))
	assert.NotEqual(t, a.Name(), b.Name())
	assert.True(t, strings.HasPrefix(a.Name(), uniquename.Prefix))
	assert.Equal(t, 2, c.hosted())
}

func TestRemoteErrorPropagates(t *testing.T) {
	c := newCluster(t, nil, dest)
	h := c.new(t, dest, "failer", module.Args())

	_, err := h.Forward(context.Background(), module.Args())
	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, h.Name(), rerr.Module)
	assert.Contains(t, err.Error(), "forward exploded")
	var serr client.ServerError
	assert.ErrorAs(t, err, &serr)

	_, err = h.ForwardAsync(context.Background(), module.Args()).Wait()
	require.ErrorAs(t, err, &rerr)

	s := c.new(t, dest, modules.ScaleName, module.Args([]int{2}))
	_, err = s.Forward(context.Background(), module.Args(tensor.Ones(3)))
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, err.Error(), "shape mismatch")

	_, err = New(context.Background(), c.cli, dest, modules.ReverseName, module.Args(), WithCatalog(c.catalog))
	require.ErrorAs(t, err, &rerr, "constructor errors are raised by the worker")
}

func TestParameters(t *testing.T) {
	c := newCluster(t, nil, dest)
	s := c.new(t, dest, modules.ScaleName, module.Args([]int{2, 2}, 0.5))

	params, err := s.Parameters(context.Background())
	require.NoError(t, err)
	require.Len(t, params, 1)
	assert.True(t, params[0].Equal(tensor.Full(0.5, 2, 2)))

	out, err := s.Forward(context.Background(), module.Args(tensor.Ones(2, 2)))
	require.NoError(t, err)
	var y tensor.Tensor
	require.NoError(t, out.Scan(&y))
	assert.True(t, y.Equal(params[0]))

	r := c.new(t, dest, modules.ReverseName, module.Args(1))
	_, err = r.Parameters(context.Background())
	var rerr *RemoteError
	assert.ErrorAs(t, err, &rerr)
}

func TestClose(t *testing.T) {
	c := newCluster(t, nil, dest)
	h := c.new(t, dest, modules.ReverseName, module.Args(1))
	require.Equal(t, 1, c.hosted())

	require.NoError(t, h.Close(context.Background()))
	require.NoError(t, h.Close(context.Background()))
	assert.Equal(t, 0, c.hosted())

	_, err := h.Forward(context.Background(), module.Args(tensor.Ones(1), 2))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = h.ForwardAsync(context.Background(), module.Args(tensor.Ones(1), 2)).Wait()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = h.Parameters(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConcurrentForwardAsync(t *testing.T) {
	c := newCluster(t, nil, dest)
	h := c.new(t, dest, modules.ReverseName, module.Args(1))

	const n = 50
	futures := make([]*Future, n)
	for i := range futures {
		futures[i] = h.ForwardAsync(context.Background(), module.Args(tensor.Ones(1), i, fmt.Sprint(i)))
	}
	outs, err := WaitAll(futures...)
	require.NoError(t, err)
	require.Len(t, outs, n)
	for i, out := range outs {
		word, number, _ := scanReversed(t, out)
		assert.Equal(t, fmt.Sprint(i), word)
		assert.Equal(t, i, number)
	}
}

func TestForwardAsyncDoesNotBlock(t *testing.T) {
	c := newCluster(t, nil, dest)
	h := c.new(t, dest, "sleeper", module.Args())

	start := time.Now()
	fut := h.ForwardAsync(context.Background(), module.Args(300))
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.False(t, fut.Ready())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := fut.WaitContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-fut.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("future never resolved")
	}
	out, err := fut.Wait()
	require.NoError(t, err)
	var ms int
	require.NoError(t, out.Scan(&ms))
	assert.Equal(t, 300, ms)
}

func TestForwardContextCanceled(t *testing.T) {
	c := newCluster(t, nil, dest)
	h := c.new(t, dest, "sleeper", module.Args())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := h.Forward(ctx, module.Args(1000))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitAllJoinsErrors(t *testing.T) {
	c := newCluster(t, nil, dest)
	good := c.new(t, dest, modules.ReverseName, module.Args(1))
	bad := c.new(t, dest, "failer", module.Args())

	outs, err := WaitAll(
		good.ForwardAsync(context.Background(), module.Args(tensor.Ones(1), 2)),
		bad.ForwardAsync(context.Background(), module.Args()),
	)
	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	require.Len(t, outs, 2)
	assert.NotNil(t, outs[0])
	assert.Nil(t, outs[1])
}

func TestPlacementAcrossWorkers(t *testing.T) {
	c := newCluster(t, loadbalance.NewConsistentHashBalancer(0), "pool", "pool", "pool")

	placed := make(map[string]int)
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("m%02d", i)
		h := c.new(t, "pool", modules.ReverseName, module.Args(1), WithName(name))

		inst, err := c.cli.Resolve(context.Background(), "pool", name)
		require.NoError(t, err)
		assert.Equal(t, inst.Addr, h.Addr(), "placement follows the module name")
		placed[h.Addr()]++

		out, err := h.Forward(context.Background(), module.Args(tensor.Ones(1), i))
		require.NoError(t, err)
		_, number, _ := scanReversed(t, out)
		assert.Equal(t, i, number)
	}
	assert.Equal(t, 12, c.hosted())
	for addr, n := range placed {
		assert.Equal(t, n, c.nodes[addr].Service().Len())
	}
}

func TestOversizedOutputIsRemoteError(t *testing.T) {
	c := newCluster(t, nil, dest)
	h := c.new(t, dest, "blob", module.Args())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err := h.Forward(ctx, module.Args(65<<20))
	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, err.Error(), "reply too large")

	out, err := h.Forward(ctx, module.Args(3))
	require.NoError(t, err)
	var s string
	require.NoError(t, out.Scan(&s))
	assert.Equal(t, "xxx", s)
}

func TestCloseWithCanceledContext(t *testing.T) {
	c := newCluster(t, nil, dest)
	h := c.new(t, dest, modules.ReverseName, module.Args(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.Close(ctx))
	assert.Equal(t, 0, c.hosted())
	require.NoError(t, h.Close(context.Background()))

	_, err := h.Forward(context.Background(), module.Args(tensor.Ones(1), 2))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestUnreachableHandleIsDeleted(t *testing.T) {
	c := newCluster(t, nil, dest)
	func() {
		c.new(t, dest, modules.ReverseName, module.Args(1))
	}()
	require.Equal(t, 1, c.hosted())

	require.Eventually(t, func() bool {
		runtime.GC()
		return c.hosted() == 0
	}, 5*time.Second, 20*time.Millisecond)
}
