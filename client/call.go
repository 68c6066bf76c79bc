package client

// Call is one in-flight RPC. Error and Reply are valid once the Call has been sent on Done.
type Call struct {
	ServiceMethod string
	Addr          string
	RequestID     string
	Args          any
	Reply         any
	Error         error
	Done          chan *Call
}

func (call *Call) finish(err error) {
	call.Error = err
	call.Done <- call
}
