package modules

import (
	"context"

	"remote-module/module"
	"remote-module/tensor"
)

// Scale multiplies its input element-wise by a constant weight tensor.
type Scale struct {
	weight *tensor.Tensor
}

// NewScale takes shape and an optional factor (default 1).
func NewScale(in *module.Input) (*Scale, error) {
	var (
		shape  []int
		factor = 1.0
	)
	if err := in.Require(0, "shape", &shape); err != nil {
		return nil, err
	}
	if _, err := in.Arg(1, "factor", &factor); err != nil {
		return nil, err
	}
	return &Scale{weight: tensor.Full(factor, shape...)}, nil
}

func (s *Scale) Forward(_ context.Context, in *module.Input) (*module.Output, error) {
	var x tensor.Tensor
	if err := in.Require(0, "x", &x); err != nil {
		return nil, err
	}
	y, err := x.Mul(s.weight)
	if err != nil {
		return nil, err
	}
	return module.NewOutput(y)
}

func (s *Scale) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{s.weight}
}
