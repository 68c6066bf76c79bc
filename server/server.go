// Package server implements the worker's RPC server: service registration, middleware chain,
// parallel request processing, and graceful shutdown.
//
// Request processing pipeline:
//
//	Accept conn → handleConn (single goroutine reads frames)
//	  → for each request: go handleRequest (parallel processing)
//	    → Codec.Decode → Middleware Chain → businessHandler (reflect.Call) → Codec.Encode → write response
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"remote-module/codec"
	"remote-module/logging"
	"remote-module/message"
	"remote-module/middleware"
	"remote-module/protocol"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("server: closed")

// Server dispatches framed RPC requests to registered services.
type Server struct {
	mu          sync.RWMutex
	serviceMap  map[string]*service
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc
	logger      *logrus.Logger

	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup // in-flight requests
	shutdown atomic.Bool
}

// NewServer creates a server with no services. A nil logger discards output.
func NewServer(logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		serviceMap: make(map[string]*service),
		conns:      make(map[net.Conn]struct{}),
		logger:     logger,
	}
}

// Register exposes rcvr's RPC-shaped methods under its type name.
func (svr *Server) Register(rcvr any) error {
	return svr.RegisterName("", rcvr)
}

// RegisterName exposes rcvr's methods under name.
func (svr *Server) RegisterName(name string, rcvr any) error {
	svc, err := newService(rcvr, name)
	if err != nil {
		return err
	}

	svr.mu.Lock()
	defer svr.mu.Unlock()
	if _, dup := svr.serviceMap[svc.name]; dup {
		return fmt.Errorf("rpc: service already defined: %s", svc.name)
	}
	svr.serviceMap[svc.name] = svc
	return nil
}

// Use appends a middleware. Middlewares run in the order they were added.
// Must be called before Serve.
func (svr *Server) Use(mw middleware.Middleware) {
	svr.middlewares = append(svr.middlewares, mw)
}

// ListenAndServe listens on address and serves until Shutdown.
func (svr *Server) ListenAndServe(network, address string) error {
	lis, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	return svr.Serve(lis)
}

// Serve accepts connections on lis, one goroutine per connection.
// It returns ErrServerClosed after Shutdown.
func (svr *Server) Serve(lis net.Listener) error {
	// Build the chain once: Chain(A, B, C)(h) → A(B(C(h))).
	svr.handler = middleware.Chain(svr.middlewares...)(svr.businessHandler)

	svr.mu.Lock()
	svr.listener = lis
	svr.mu.Unlock()
	if svr.shutdown.Load() {
		lis.Close()
		return ErrServerClosed
	}

	for {
		conn, err := lis.Accept()
		if err != nil {
			if svr.shutdown.Load() {
				return ErrServerClosed
			}
			return err
		}
		svr.trackConn(conn, true)
		go svr.handleConn(conn)
	}
}

func (svr *Server) trackConn(conn net.Conn, add bool) {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if add {
		svr.conns[conn] = struct{}{}
	} else {
		delete(svr.conns, conn)
	}
}

// handleConn reads frames sequentially and dispatches each request to its own goroutine.
// All request goroutines of a connection share writeMu so response frames never interleave.
func (svr *Server) handleConn(conn net.Conn) {
	defer func() {
		svr.trackConn(conn, false)
		conn.Close()
	}()

	writeMu := &sync.Mutex{}
	for {
		header, body, err := protocol.Decode(conn)
		if err != nil {
			if !svr.shutdown.Load() && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
				svr.logger.WithField(logging.FieldAddr, conn.RemoteAddr().String()).WithError(err).Debug("connection closed")
			}
			return
		}
		if header.MsgType == protocol.MsgTypeHeartbeat {
			continue
		}
		if !svr.beginRequest() {
			return
		}
		go svr.handleRequest(header, body, conn, writeMu)
	}
}

// beginRequest counts a request in flight unless Shutdown has started. The flag
// is read under mu, which Shutdown holds while setting it, so no Add can race
// with the Wait that follows.
func (svr *Server) beginRequest() bool {
	svr.mu.RLock()
	defer svr.mu.RUnlock()
	if svr.shutdown.Load() {
		return false
	}
	svr.wg.Add(1)
	return true
}

// handleRequest runs one request: decode → middleware → business logic → encode → write.
func (svr *Server) handleRequest(header *protocol.Header, body []byte, conn net.Conn, writeMu *sync.Mutex) {
	defer svr.wg.Done()

	c, err := codec.GetCodec(codec.CodecType(header.CodecType))
	if err != nil {
		svr.logger.WithError(err).Warn("dropping request with unknown codec")
		return
	}

	var resp *message.RPCMessage
	msg := message.RPCMessage{}
	if err := c.Decode(body, &msg); err != nil {
		resp = &message.RPCMessage{Error: fmt.Sprintf("decode request: %v", err)}
	} else {
		ctx := logging.WithRequestID(context.Background(), msg.RequestID)
		resp = svr.handler(ctx, &msg)
		resp.RequestID = msg.RequestID
	}

	result, err := c.Encode(resp)
	if err == nil && uint32(len(result)) > protocol.MaxBodyLen {
		err = fmt.Errorf("rpc: reply too large: %d bytes", len(result))
	}
	if err != nil {
		// The caller still gets an answer for its seq.
		svr.logger.WithField(logging.FieldMethod, resp.ServiceMethod).WithError(err).Error("failed to encode response")
		result, err = c.Encode(&message.RPCMessage{
			ServiceMethod: resp.ServiceMethod,
			RequestID:     resp.RequestID,
			Error:         err.Error(),
		})
		if err != nil {
			svr.logger.WithError(err).Error("failed to encode error response")
			return
		}
	}

	replyHeader := protocol.Header{
		CodecType: header.CodecType,
		MsgType:   protocol.MsgTypeResponse,
		Seq:       header.Seq, // same seq as the request: this is how multiplexing works
		BodyLen:   uint32(len(result)),
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	if err := protocol.Encode(conn, &replyHeader, result); err != nil {
		svr.logger.WithError(err).Warn("failed to write response")
	}
}

// Addr returns the listening address, or nil before Serve.
func (svr *Server) Addr() net.Addr {
	svr.mu.RLock()
	defer svr.mu.RUnlock()
	if svr.listener == nil {
		return nil
	}
	return svr.listener.Addr()
}

// Shutdown stops accepting, waits up to timeout for in-flight requests, then closes all connections.
func (svr *Server) Shutdown(timeout time.Duration) error {
	// Set the flag before closing so Serve sees the Accept error as intentional.
	svr.mu.Lock()
	svr.shutdown.Store(true)
	lis := svr.listener
	svr.mu.Unlock()
	if lis != nil {
		lis.Close()
	}

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		err = fmt.Errorf("timeout waiting for ongoing requests to finish")
	}

	svr.mu.Lock()
	for conn := range svr.conns {
		conn.Close()
	}
	svr.mu.Unlock()
	return err
}

// businessHandler resolves "Service.Method", decodes the JSON payload into the
// method's argument type, calls it and encodes the reply.
func (svr *Server) businessHandler(ctx context.Context, req *message.RPCMessage) *message.RPCMessage {
	resp := &message.RPCMessage{ServiceMethod: req.ServiceMethod}

	serviceName, methodName, ok := strings.Cut(req.ServiceMethod, ".")
	if !ok || strings.Contains(methodName, ".") {
		resp.Error = fmt.Sprintf("rpc: invalid service method %q", req.ServiceMethod)
		return resp
	}

	svr.mu.RLock()
	svc := svr.serviceMap[serviceName]
	svr.mu.RUnlock()
	if svc == nil {
		resp.Error = fmt.Sprintf("rpc: can't find service %q", serviceName)
		return resp
	}
	method := svc.method[methodName]
	if method == nil {
		resp.Error = fmt.Sprintf("rpc: can't find method %q", req.ServiceMethod)
		return resp
	}

	argv := reflect.New(method.ArgType)
	replyv := reflect.New(method.ReplyType)

	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, argv.Interface()); err != nil {
			resp.Error = fmt.Sprintf("rpc: decode args: %v", err)
			return resp
		}
	}

	if err := svc.call(ctx, method, argv, replyv); err != nil {
		resp.Error = err.Error()
		return resp
	}

	payload, err := json.Marshal(replyv.Interface())
	if err != nil {
		resp.Error = fmt.Sprintf("rpc: encode reply: %v", err)
		return resp
	}
	resp.Payload = payload
	return resp
}
