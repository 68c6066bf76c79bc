package remote

import (
	"github.com/prometheus/client_golang/prometheus/testutil"

	"remote-module/message"
	"remote-module/worker"
)

// testutilCalls counts the Worker.Create calls a node has served.
func testutilCalls(n *worker.Node) float64 {
	m := n.Metrics()
	return testutil.ToFloat64(m.Calls.WithLabelValues(message.MethodCreate, "ok")) +
		testutil.ToFloat64(m.Calls.WithLabelValues(message.MethodCreate, "error"))
}
