// Package tensor holds a plain dense float64 tensor that can be shipped over the wire.
package tensor

import (
	"errors"
	"fmt"
	"math"
)

var ErrShape = errors.New("tensor: shape mismatch")

// Tensor is a row-major dense tensor.
type Tensor struct {
	Shape []int     `json:"shape" msgpack:"shape"`
	Data  []float64 `json:"data" msgpack:"data"`
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Full returns a tensor of the given shape filled with v.
func Full(v float64, shape ...int) *Tensor {
	data := make([]float64, numel(shape))
	for i := range data {
		data[i] = v
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: data}
}

func Ones(shape ...int) *Tensor  { return Full(1, shape...) }
func Zeros(shape ...int) *Tensor { return Full(0, shape...) }

// New wraps data, checking it matches shape.
func New(data []float64, shape ...int) (*Tensor, error) {
	if len(data) != numel(shape) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShape, len(data), shape)
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: append([]float64(nil), data...)}, nil
}

func (t *Tensor) sameShape(o *Tensor) bool {
	if len(t.Shape) != len(o.Shape) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

// Equal reports whether both tensors have the same shape and values.
func (t *Tensor) Equal(o *Tensor) bool {
	if t == nil || o == nil {
		return t == o
	}
	if !t.sameShape(o) || len(t.Data) != len(o.Data) {
		return false
	}
	for i := range t.Data {
		if t.Data[i] != o.Data[i] && !(math.IsNaN(t.Data[i]) && math.IsNaN(o.Data[i])) {
			return false
		}
	}
	return true
}

// Mul multiplies element-wise.
func (t *Tensor) Mul(o *Tensor) (*Tensor, error) {
	if !t.sameShape(o) {
		return nil, fmt.Errorf("%w: %v * %v", ErrShape, t.Shape, o.Shape)
	}
	out := &Tensor{Shape: append([]int(nil), t.Shape...), Data: make([]float64, len(t.Data))}
	for i := range t.Data {
		out.Data[i] = t.Data[i] * o.Data[i]
	}
	return out, nil
}

// Scale multiplies every element by s.
func (t *Tensor) Scale(s float64) *Tensor {
	out := &Tensor{Shape: append([]int(nil), t.Shape...), Data: make([]float64, len(t.Data))}
	for i, v := range t.Data {
		out.Data[i] = v * s
	}
	return out
}

// Add adds element-wise.
func (t *Tensor) Add(o *Tensor) (*Tensor, error) {
	if !t.sameShape(o) {
		return nil, fmt.Errorf("%w: %v + %v", ErrShape, t.Shape, o.Shape)
	}
	out := &Tensor{Shape: append([]int(nil), t.Shape...), Data: make([]float64, len(t.Data))}
	for i := range t.Data {
		out.Data[i] = t.Data[i] + o.Data[i]
	}
	return out, nil
}

func (t *Tensor) String() string {
	return fmt.Sprintf("tensor(shape=%v, data=%v)", t.Shape, t.Data)
}
