package module

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"remote-module/message"
)

// Input carries positional and keyword arguments, each JSON-encoded.
//
// Builder methods record the first encoding error and skip the rest; check Err
// before sending.
type Input struct {
	args   []json.RawMessage
	kwargs map[string]json.RawMessage
	err    error
}

// Args builds an Input from positional values.
func Args(vals ...any) *Input {
	in := &Input{}
	for i, v := range vals {
		raw, err := json.Marshal(v)
		if err != nil {
			in.err = fmt.Errorf("encode argument %d: %w", i, err)
			return in
		}
		in.args = append(in.args, raw)
	}
	return in
}

// Kw adds a keyword argument.
func (in *Input) Kw(name string, v any) *Input {
	if in.err != nil {
		return in
	}
	raw, err := json.Marshal(v)
	if err != nil {
		in.err = fmt.Errorf("encode argument %q: %w", name, err)
		return in
	}
	if in.kwargs == nil {
		in.kwargs = make(map[string]json.RawMessage)
	}
	in.kwargs[name] = raw
	return in
}

func (in *Input) Err() error {
	if in == nil {
		return nil
	}
	return in.err
}

func (in *Input) NumArgs() int {
	if in == nil {
		return 0
	}
	return len(in.args)
}

// Raw returns the positional arguments.
func (in *Input) Raw() []json.RawMessage {
	if in == nil {
		return nil
	}
	return slices.Clone(in.args)
}

// Keywords returns the keyword argument names in sorted order.
func (in *Input) Keywords() []string {
	if in == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(in.kwargs))
}

// Arg decodes the parameter at position i, also reachable by keyword name,
// into v. It reports false when the caller supplied neither.
func (in *Input) Arg(i int, name string, v any) (bool, error) {
	if in == nil {
		return false, nil
	}
	kw, byName := in.kwargs[name]
	byPos := i >= 0 && i < len(in.args)
	switch {
	case byName && byPos:
		return false, fmt.Errorf("%w: %q", ErrDuplicateArgument, name)
	case byName:
		if err := json.Unmarshal(kw, v); err != nil {
			return false, fmt.Errorf("decode argument %q: %w", name, err)
		}
		return true, nil
	case byPos:
		if err := json.Unmarshal(in.args[i], v); err != nil {
			return false, fmt.Errorf("decode argument %d (%s): %w", i, name, err)
		}
		return true, nil
	}
	return false, nil
}

// Require is Arg for parameters without a default.
func (in *Input) Require(i int, name string, v any) error {
	ok, err := in.Arg(i, name, v)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrMissingArgument, name)
	}
	return nil
}

// Message converts the input to its wire form.
func (in *Input) Message() message.Input {
	if in == nil {
		return message.Input{}
	}
	return message.Input{Args: slices.Clone(in.args), Kwargs: maps.Clone(in.kwargs)}
}

// FromMessage is the inverse of Message.
func FromMessage(m message.Input) *Input {
	return &Input{args: m.Args, kwargs: m.Kwargs}
}
