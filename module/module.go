// Package module defines what can be hosted remotely: the Module capability,
// call inputs and outputs, and the constructor catalog.
package module

import (
	"context"
	"errors"

	"remote-module/tensor"
)

// Validation errors, raised before any remote call.
var (
	ErrNotModule          = errors.New("module: constructor does not produce a Module")
	ErrUnknownConstructor = errors.New("module: unknown constructor")
	ErrInterfaceMismatch  = errors.New("module: constructor result does not implement interface")
	ErrBadConstructor     = errors.New("module: invalid constructor signature")
)

// Call errors.
var (
	ErrMissingArgument   = errors.New("module: missing argument")
	ErrDuplicateArgument = errors.New("module: argument given both positionally and by keyword")
)

// Module is a unit of computation that can be created on a worker and called remotely.
type Module interface {
	Forward(ctx context.Context, in *Input) (*Output, error)
}

// Parameterized modules expose their parameter tensors.
type Parameterized interface {
	Parameters() []*tensor.Tensor
}
