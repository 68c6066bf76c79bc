package middleware

import (
	"context"
	"time"

	"remote-module/message"
	"remote-module/metrics"
)

// MetricsMiddleware counts calls by method and outcome and observes their latency.
func MetricsMiddleware(m *metrics.Metrics) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			start := time.Now()
			resp := next(ctx, req)
			m.CallDuration.WithLabelValues(req.ServiceMethod).Observe(time.Since(start).Seconds())

			status := "ok"
			if resp.Error != "" {
				status = "error"
			}
			m.Calls.WithLabelValues(req.ServiceMethod, status).Inc()
			return resp
		}
	}
}
