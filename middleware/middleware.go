// Package middleware wraps the worker's request handler in an onion of cross-cutting concerns.
package middleware

import (
	"context"
	"remote-module/message"
)

type HandlerFunc func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares so that Chain(A, B, C)(h) == A(B(C(h))).
// A sees the request first and the response last.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

func errorReply(req *message.RPCMessage, msg string) *message.RPCMessage {
	return &message.RPCMessage{
		ServiceMethod: req.ServiceMethod,
		RequestID:     req.RequestID,
		Error:         msg,
	}
}
