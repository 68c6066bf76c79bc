package registry

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

// etcdEndpoints returns the endpoints from RMOD_TEST_ETCD, skipping the test when unset.
func etcdEndpoints(t *testing.T) []string {
	t.Helper()
	v := os.Getenv("RMOD_TEST_ETCD")
	if v == "" {
		t.Skip("RMOD_TEST_ETCD not set; skipping etcd test")
	}
	return strings.Split(v, ",")
}

func TestEtcdRegisterAndDiscover(t *testing.T) {
	reg, err := NewEtcdRegistry(etcdEndpoints(t), 3*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	ctx := context.Background()
	inst1 := Instance{Name: "trainer", Addr: "127.0.0.1:8001", Weight: 10, Version: "1.0"}
	inst2 := Instance{Name: "trainer", Addr: "127.0.0.1:8002", Weight: 5, Version: "1.0"}

	if err := reg.Register(ctx, inst1, 10); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(ctx, inst2, 10); err != nil {
		t.Fatal(err)
	}

	instances, err := reg.Discover(ctx, "trainer")
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 2 {
		t.Fatalf("expect 2 instances, got %d", len(instances))
	}

	if err := reg.Deregister(ctx, "trainer", inst1.Addr); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	instances, err = reg.Discover(ctx, "trainer")
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 1 || instances[0].Addr != inst2.Addr {
		t.Fatalf("expect only %s after deregister, got %v", inst2.Addr, instances)
	}

	reg.Deregister(ctx, "trainer", inst2.Addr)
	if _, err := reg.Discover(ctx, "trainer"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expect ErrNotFound after cleanup, got %v", err)
	}
}
