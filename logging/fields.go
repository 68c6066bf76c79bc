package logging

import "github.com/sirupsen/logrus"

// Field names shared by client and worker log lines.
const (
	FieldRequestID = "request_id"
	FieldWorker    = "worker"
	FieldModule    = "module"
	FieldMethod    = "method"
	FieldAddr      = "addr"
)

// CallFields describes one RPC call.
func CallFields(worker, addr, method string) logrus.Fields {
	return logrus.Fields{
		FieldWorker: worker,
		FieldAddr:   addr,
		FieldMethod: method,
	}
}

// ModuleFields describes one module instance.
func ModuleFields(worker, name, constructor string) logrus.Fields {
	return logrus.Fields{
		FieldWorker:   worker,
		FieldModule:   name,
		"constructor": constructor,
	}
}
