package message

import "encoding/json"

// Service and method names exposed by a worker.
const (
	WorkerService = "Worker"

	MethodCreate     = WorkerService + ".Create"
	MethodForward    = WorkerService + ".Forward"
	MethodDelete     = WorkerService + ".Delete"
	MethodParameters = WorkerService + ".Parameters"
	MethodList       = WorkerService + ".List"
)

// Input is the wire form of a module call's arguments.
type Input struct {
	Args   []json.RawMessage          `json:"args,omitempty"`
	Kwargs map[string]json.RawMessage `json:"kwargs,omitempty"`
}

// CreateArgs asks a worker to build a module with a registered constructor.
type CreateArgs struct {
	Name        string `json:"name"`
	Constructor string `json:"constructor"`
	Interface   string `json:"interface,omitempty"`
	Input       Input  `json:"input"`
}

type CreateReply struct {
	Name     string `json:"name"`
	TypeName string `json:"type_name"`
}

type ForwardArgs struct {
	Name  string `json:"name"`
	Input Input  `json:"input"`
}

type ForwardReply struct {
	Values []json.RawMessage `json:"values"`
}

type DeleteArgs struct {
	Name string `json:"name"`
}

type DeleteReply struct {
	Deleted bool `json:"deleted"`
}

type ParametersArgs struct {
	Name string `json:"name"`
}

// ParametersReply holds one JSON-encoded tensor per parameter.
type ParametersReply struct {
	Tensors []json.RawMessage `json:"tensors"`
}

type ListArgs struct{}

// ModuleInfo describes one module hosted by a worker.
type ModuleInfo struct {
	Name        string `json:"name"`
	Constructor string `json:"constructor"`
	TypeName    string `json:"type_name"`
	Interface   string `json:"interface,omitempty"`
}

type ListReply struct {
	Worker  string       `json:"worker"`
	Modules []ModuleInfo `json:"modules"`
}
