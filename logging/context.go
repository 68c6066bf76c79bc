package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	loggerKey    contextKey = "remote-module.logger"
	requestIDKey contextKey = "remote-module.request_id"
)

var std = logrus.StandardLogger()

// WithLogger stores entry in ctx.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey, entry)
}

// FromContext returns the entry stored in ctx, or one built on the standard logger.
func FromContext(ctx context.Context) *logrus.Entry {
	if e, ok := ctx.Value(loggerKey).(*logrus.Entry); ok {
		return e
	}
	return logrus.NewEntry(std)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// EnsureRequestID returns the request id carried by ctx, generating one if absent.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id := RequestIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithRequestID(ctx, id), id
}

// L returns the context logger enriched with the request id.
func L(ctx context.Context) *logrus.Entry {
	e := FromContext(ctx)
	if id := RequestIDFromContext(ctx); id != "" {
		e = e.WithField(FieldRequestID, id)
	}
	return e
}
