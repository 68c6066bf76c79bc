// Package transport implements the client side of a worker connection: multiplexing and heartbeat.
//
// ClientTransport lets many concurrent calls share one TCP connection. Every request gets
// a sequence ID, and a background goroutine (recvLoop) reads responses and routes each one
// to the caller waiting on that ID.
//
//	goroutine-1 ──Send(seq=1)──┐
//	goroutine-2 ──Send(seq=2)──┼──→ single TCP conn ──→ Worker
//	goroutine-3 ──Send(seq=3)──┘
//
//	recvLoop:  ←── response(seq=2) → pending[2] chan ← response → goroutine-2 wakes up
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"remote-module/codec"
	"remote-module/message"
	"remote-module/protocol"
)

// ErrClosed is returned by Send once the connection is closed or broken.
var ErrClosed = errors.New("transport: connection closed")

// DefaultHeartbeat is the heartbeat period used when none is configured.
const DefaultHeartbeat = 30 * time.Second

// Response is what a caller receives for one request: the worker's reply, or
// Err when the connection failed before a reply arrived.
type Response struct {
	Msg *message.RPCMessage
	Err error
}

// ClientTransport manages a single multiplexed TCP connection.
type ClientTransport struct {
	conn    net.Conn
	codec   codec.Codec
	pending sync.Map // map[uint32]chan Response

	sending sync.Mutex // serializes frame writes and guards seq and err
	seq     uint32
	err     error // set once the connection is unusable

	done chan struct{}
}

// NewClientTransport wraps conn and starts the receive and heartbeat goroutines.
// heartbeat <= 0 selects DefaultHeartbeat.
func NewClientTransport(conn net.Conn, codecType codec.CodecType, heartbeat time.Duration) (*ClientTransport, error) {
	cdc, err := codec.GetCodec(codecType)
	if err != nil {
		return nil, err
	}
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}

	t := &ClientTransport{
		conn:  conn,
		codec: cdc,
		done:  make(chan struct{}),
	}
	go t.recvLoop()
	go t.heartbeatLoop(heartbeat)
	return t, nil
}

// Send serializes args as JSON and writes one request frame.
// It returns the sequence number and a channel that receives exactly one response.
func (t *ClientTransport) Send(serviceMethod, requestID string, args any) (uint32, <-chan Response, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal args: %w", err)
	}

	t.sending.Lock()
	defer t.sending.Unlock()

	if t.err != nil {
		return 0, nil, t.err
	}

	t.seq++
	seq := t.seq

	body, err := t.codec.Encode(&message.RPCMessage{
		ServiceMethod: serviceMethod,
		RequestID:     requestID,
		Payload:       payload,
	})
	if err != nil {
		return 0, nil, err
	}

	header := protocol.Header{
		CodecType: byte(t.codec.Type()),
		MsgType:   protocol.MsgTypeRequest,
		Seq:       seq,
		BodyLen:   uint32(len(body)),
	}

	// Register before writing so recvLoop cannot see the response first.
	respChan := make(chan Response, 1)
	t.pending.Store(seq, respChan)

	if err := protocol.Encode(t.conn, &header, body); err != nil {
		t.pending.Delete(seq)
		return 0, nil, err
	}
	return seq, respChan, nil
}

// Cancel forgets a pending call; a late response for seq is dropped.
func (t *ClientTransport) Cancel(seq uint32) {
	t.pending.Delete(seq)
}

// recvLoop is the only reader of the connection; frame boundaries require sequential reads.
func (t *ClientTransport) recvLoop() {
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			t.fail(err)
			return
		}
		if header.MsgType != protocol.MsgTypeResponse {
			continue
		}

		resp := Response{Msg: &message.RPCMessage{}}
		cdc, err := codec.GetCodec(codec.CodecType(header.CodecType))
		if err == nil {
			err = cdc.Decode(body, resp.Msg)
		}
		if err != nil {
			resp = Response{Err: fmt.Errorf("decode response: %w", err)}
		}

		if channel, ok := t.pending.LoadAndDelete(header.Seq); ok {
			channel.(chan Response) <- resp
		}
	}
}

// fail marks the transport unusable and answers every pending caller with err.
func (t *ClientTransport) fail(err error) {
	t.sending.Lock()
	if t.err == nil {
		t.err = fmt.Errorf("%w: %v", ErrClosed, err)
		close(t.done)
	}
	t.sending.Unlock()

	t.conn.Close()
	cause := t.Err()
	t.pending.Range(func(key, value any) bool {
		if _, ok := t.pending.LoadAndDelete(key); ok {
			value.(chan Response) <- Response{Err: cause}
		}
		return true
	})
}

// Err reports why the transport stopped, or nil while it is healthy.
func (t *ClientTransport) Err() error {
	t.sending.Lock()
	defer t.sending.Unlock()
	return t.err
}

// Close shuts the connection down; pending callers receive an error.
func (t *ClientTransport) Close() error {
	t.fail(errors.New("closed by client"))
	return nil
}

// Conn returns the underlying TCP connection.
func (t *ClientTransport) Conn() net.Conn {
	return t.conn
}

// heartbeatLoop keeps idle connections alive. Heartbeat frames carry no body.
func (t *ClientTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}

		header := &protocol.Header{
			CodecType: byte(t.codec.Type()),
			MsgType:   protocol.MsgTypeHeartbeat,
		}
		t.sending.Lock()
		err := t.err
		if err == nil {
			err = protocol.Encode(t.conn, header, nil)
		}
		t.sending.Unlock()
		if err != nil {
			return
		}
	}
}
