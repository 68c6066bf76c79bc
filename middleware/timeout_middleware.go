package middleware

import (
	"context"
	"remote-module/message"
	"slices"
	"time"
)

// TimeOutMiddleware bounds the time a handler may take. The handler keeps the
// derived context, so module code that honors ctx stops early. Methods listed
// in exempt pass through untouched; they must bound themselves.
func TimeOutMiddleware(timeout time.Duration, exempt ...string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			if slices.Contains(exempt, req.ServiceMethod) {
				return next(ctx, req)
			}

			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *message.RPCMessage, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				// a result that raced the deadline still wins
				select {
				case resp := <-done:
					return resp
				default:
				}
				return errorReply(req, "request timed out")
			}
		}
	}
}
