// Package metrics exposes worker-side Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "remote_module"

// Metrics holds the collectors a worker updates.
type Metrics struct {
	registry *prometheus.Registry

	Calls        *prometheus.CounterVec   // by method and status
	CallDuration *prometheus.HistogramVec // by method
	LiveModules  prometheus.Gauge
	Created      prometheus.Counter
	Deleted      prometheus.Counter
}

// New registers all collectors on a fresh registry, together with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "RPC calls handled by the worker.",
		}, []string{"method", "status"}),
		CallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_call_duration_seconds",
			Help:      "Time spent handling an RPC call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		LiveModules: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_modules",
			Help:      "Module instances currently hosted by the worker.",
		}),
		Created: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "modules_created_total",
			Help:      "Module instances created.",
		}),
		Deleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "modules_deleted_total",
			Help:      "Module instances deleted.",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
