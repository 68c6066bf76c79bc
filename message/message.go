// Package message defines the structures exchanged between a remote-module client and a worker.
//
// RPCMessage is the "envelope" for every RPC call. It gets serialized by the codec layer
// and wrapped in a protocol frame for transmission over TCP. The module-level request and
// reply types in module.go travel inside RPCMessage.Payload as JSON.
package message

// RPCMessage carries the data for a single RPC request or response.
//
//   - On request:  ServiceMethod is set, Payload contains the serialized args, Error is empty.
//   - On response: Payload contains the serialized reply, Error is non-empty if the call failed.
type RPCMessage struct {
	ServiceMethod string // Format: "ServiceName.MethodName", e.g., "Worker.Forward"
	RequestID     string // Correlates client and worker log lines, echoed back on the response
	Error         string // Non-empty if the server-side handler returned an error
	Payload       []byte // Serialized args (request) or reply (response) as JSON bytes
}
