package middleware

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"remote-module/logging"
	"remote-module/message"
)

// LoggingMiddleware logs every call with its duration and error.
// It also places a request-scoped entry in the context for handlers further down.
func LoggingMiddleware(logger *logrus.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			entry := logger.WithFields(logrus.Fields{
				logging.FieldMethod:    req.ServiceMethod,
				logging.FieldRequestID: req.RequestID,
			})
			ctx = logging.WithLogger(ctx, entry)

			start := time.Now()
			resp := next(ctx, req)
			entry = entry.WithField("duration", time.Since(start).String())

			if resp.Error != "" {
				entry.WithField("error", resp.Error).Warn("call failed")
			} else {
				entry.Debug("call served")
			}
			return resp
		}
	}
}
