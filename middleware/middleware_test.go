package middleware

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"remote-module/logging"
	"remote-module/message"
	"remote-module/metrics"
)

// echoHandler answers immediately.
func echoHandler(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
	return &message.RPCMessage{
		ServiceMethod: req.ServiceMethod,
		RequestID:     req.RequestID,
		Payload:       []byte("ok"),
	}
}

// slowHandler sleeps 200ms.
func slowHandler(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
	time.Sleep(200 * time.Millisecond)
	return echoHandler(ctx, req)
}

func failingHandler(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
	return &message.RPCMessage{ServiceMethod: req.ServiceMethod, Error: "boom"}
}

func panickingHandler(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
	panic("forward exploded")
}

func forwardRequest() *message.RPCMessage {
	return &message.RPCMessage{ServiceMethod: message.MethodForward, RequestID: "req-7"}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Config{Level: "debug", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}

	handler := LoggingMiddleware(logger)(echoHandler)
	resp := handler(context.Background(), forwardRequest())

	if string(resp.Payload) != "ok" {
		t.Fatalf("expect payload 'ok', got '%s'", string(resp.Payload))
	}
	if !strings.Contains(buf.String(), "req-7") {
		t.Fatalf("expect request id in log output, got %q", buf.String())
	}
}

func TestLoggingSetsContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := logging.New(logging.Config{Output: &buf})

	handler := LoggingMiddleware(logger)(func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
		logging.FromContext(ctx).Info("inside handler")
		return echoHandler(ctx, req)
	})
	handler(context.Background(), forwardRequest())

	if !strings.Contains(buf.String(), "inside handler") || !strings.Contains(buf.String(), message.MethodForward) {
		t.Fatalf("handler log line should carry the method, got %q", buf.String())
	}
}

func TestTimeoutPass(t *testing.T) {
	handler := TimeOutMiddleware(500 * time.Millisecond)(echoHandler)

	resp := handler(context.Background(), forwardRequest())
	if resp.Error != "" {
		t.Fatalf("expect no error, got '%s'", resp.Error)
	}
}

func TestTimeoutExceeded(t *testing.T) {
	handler := TimeOutMiddleware(50 * time.Millisecond)(slowHandler)

	resp := handler(context.Background(), forwardRequest())
	if resp.Error != "request timed out" {
		t.Fatalf("expect timeout error, got '%s'", resp.Error)
	}
	if resp.RequestID != "req-7" {
		t.Fatalf("timeout reply should keep the request id, got %q", resp.RequestID)
	}
}

func TestTimeoutExemptMethod(t *testing.T) {
	handler := TimeOutMiddleware(50*time.Millisecond, message.MethodCreate)(slowHandler)

	resp := handler(context.Background(), &message.RPCMessage{ServiceMethod: message.MethodCreate})
	if resp.Error != "" {
		t.Fatalf("exempt method should not time out, got '%s'", resp.Error)
	}

	resp = handler(context.Background(), forwardRequest())
	if resp.Error != "request timed out" {
		t.Fatalf("expect timeout error, got '%s'", resp.Error)
	}
}

func TestRateLimit(t *testing.T) {
	// rate=1/s, burst=2: the first two pass, the third is rejected
	handler := RateLimitMiddleware(1, 2)(echoHandler)
	req := forwardRequest()

	for i := 0; i < 2; i++ {
		resp := handler(context.Background(), req)
		if resp.Error != "" {
			t.Fatalf("request %d should pass, got error: %s", i, resp.Error)
		}
	}

	resp := handler(context.Background(), req)
	if resp.Error != "rate limit exceeded" {
		t.Fatalf("request 3 should be rate limited, got: '%s'", resp.Error)
	}
}

func TestRecovery(t *testing.T) {
	handler := RecoveryMiddleware()(panickingHandler)

	resp := handler(context.Background(), forwardRequest())
	if !strings.Contains(resp.Error, "forward exploded") {
		t.Fatalf("expect panic turned into error, got '%s'", resp.Error)
	}
}

func TestMetrics(t *testing.T) {
	m := metrics.New()

	MetricsMiddleware(m)(echoHandler)(context.Background(), forwardRequest())
	MetricsMiddleware(m)(failingHandler)(context.Background(), forwardRequest())

	if got := testutil.ToFloat64(m.Calls.WithLabelValues(message.MethodForward, "ok")); got != 1 {
		t.Fatalf("expect 1 ok call, got %v", got)
	}
	if got := testutil.ToFloat64(m.Calls.WithLabelValues(message.MethodForward, "error")); got != 1 {
		t.Fatalf("expect 1 failed call, got %v", got)
	}
}

func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	handler := Chain(mark("a"), mark("b"), TimeOutMiddleware(500*time.Millisecond))(echoHandler)
	resp := handler(context.Background(), forwardRequest())

	if resp.Error != "" {
		t.Fatalf("expect no error, got '%s'", resp.Error)
	}
	if strings.Join(order, ",") != "a,b" {
		t.Fatalf("expect outer-to-inner order a,b, got %v", order)
	}
}
