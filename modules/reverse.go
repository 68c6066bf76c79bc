package modules

import (
	"context"
	"fmt"

	"remote-module/module"
	"remote-module/tensor"
)

// Reverse returns its (tensor, number, word) arguments in reverse order.
type Reverse struct {
	FirstArg   int
	FirstKwarg int
}

// NewReverse takes first_arg and an optional first_kwarg (default -1).
func NewReverse(in *module.Input) (*Reverse, error) {
	r := &Reverse{FirstKwarg: -1}
	if err := in.Require(0, "first_arg", &r.FirstArg); err != nil {
		return nil, err
	}
	if _, err := in.Arg(1, "first_kwarg", &r.FirstKwarg); err != nil {
		return nil, err
	}
	return r, nil
}

// Forward(tensor, number, word="default") returns (word, number, tensor).
func (r *Reverse) Forward(_ context.Context, in *module.Input) (*module.Output, error) {
	var (
		t      tensor.Tensor
		number int
		word   = "default"
	)
	if err := in.Require(0, "tensor", &t); err != nil {
		return nil, err
	}
	if err := in.Require(1, "number", &number); err != nil {
		return nil, err
	}
	if _, err := in.Arg(2, "word", &word); err != nil {
		return nil, err
	}
	return module.NewOutput(word, number, &t)
}

func (r *Reverse) Describe() string {
	return fmt.Sprintf("reverse(first_arg=%d, first_kwarg=%d)", r.FirstArg, r.FirstKwarg)
}
