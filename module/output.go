package module

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Output is the ordered tuple a Forward call returns.
type Output struct {
	values []json.RawMessage
}

// NewOutput encodes vals as an output tuple.
func NewOutput(vals ...any) (*Output, error) {
	out := &Output{values: make([]json.RawMessage, 0, len(vals))}
	for i, v := range vals {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode result %d: %w", i, err)
		}
		out.values = append(out.values, raw)
	}
	return out, nil
}

// RawOutput wraps already-encoded values.
func RawOutput(values ...json.RawMessage) *Output {
	return &Output{values: values}
}

func (o *Output) Len() int {
	if o == nil {
		return 0
	}
	return len(o.values)
}

func (o *Output) Raw() []json.RawMessage {
	if o == nil {
		return nil
	}
	return slices.Clone(o.values)
}

// Scan decodes the tuple into dst, one target per value. A nil target skips its value.
func (o *Output) Scan(dst ...any) error {
	if len(dst) != o.Len() {
		return fmt.Errorf("module: scan %d values into %d targets", o.Len(), len(dst))
	}
	for i, d := range dst {
		if d == nil {
			continue
		}
		if err := json.Unmarshal(o.values[i], d); err != nil {
			return fmt.Errorf("decode result %d: %w", i, err)
		}
	}
	return nil
}

// Value decodes the i-th value into dst.
func (o *Output) Value(i int, dst any) error {
	if i < 0 || i >= o.Len() {
		return fmt.Errorf("module: result %d out of range [0,%d)", i, o.Len())
	}
	return json.Unmarshal(o.values[i], dst)
}
