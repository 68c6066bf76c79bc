package middleware

import (
	"context"
	"remote-module/message"

	"golang.org/x/time/rate"
)

// RateLimitMiddleware rejects calls beyond r per second with the given burst (token bucket).
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
			if !limiter.Allow() {
				return errorReply(req, "rate limit exceeded")
			}
			return next(ctx, req)
		}
	}
}
