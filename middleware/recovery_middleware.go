package middleware

import (
	"context"
	"fmt"
	"runtime/debug"

	"remote-module/logging"
	"remote-module/message"
)

// RecoveryMiddleware turns a panic inside a module into an error reply so one
// faulty Forward does not take the worker down.
func RecoveryMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) (resp *message.RPCMessage) {
			defer func() {
				if r := recover(); r != nil {
					logging.L(ctx).WithField("stack", string(debug.Stack())).Errorf("panic in %s: %v", req.ServiceMethod, r)
					resp = errorReply(req, fmt.Sprintf("panic: %v", r))
				}
			}()
			return next(ctx, req)
		}
	}
}
