package remote

import (
	"context"
	"testing"

	"remote-module/module"
	"remote-module/modules"
	"remote-module/tensor"
)

func BenchmarkForward(b *testing.B) {
	c := newCluster(b, nil, dest)
	h := c.new(b, dest, modules.ReverseName, module.Args(1))
	in := module.Args(tensor.Ones(8), 2, "3")
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := h.Forward(context.Background(), in); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkForwardAsyncParallel(b *testing.B) {
	c := newCluster(b, nil, dest)
	h := c.new(b, dest, modules.ReverseName, module.Args(1))
	in := module.Args(tensor.Ones(8), 2, "3")
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := h.ForwardAsync(context.Background(), in).Wait(); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
