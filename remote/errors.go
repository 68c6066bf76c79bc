package remote

import (
	"errors"
	"fmt"

	"remote-module/client"
)

// ErrClosed is returned by calls on a closed handle.
var ErrClosed = errors.New("remote: handle closed")

// RemoteError is an error raised by the worker while serving a call.
type RemoteError struct {
	Worker string
	Module string
	Method string
	Err    error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s on %s/%s: %v", e.Method, e.Worker, e.Module, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (h *Handle) wrap(method string, err error) error {
	var serr client.ServerError
	if errors.As(err, &serr) {
		return &RemoteError{Worker: h.dest, Module: h.name, Method: method, Err: serr}
	}
	return err
}
