// Package modules contains modules a worker ships with.
package modules

import "remote-module/module"

// Constructor names.
const (
	ReverseName = "reverse"
	ScaleName   = "scale"
)

// Register adds every built-in module to c.
func Register(c *module.Catalog) error {
	if err := c.Register(ReverseName, NewReverse); err != nil {
		return err
	}
	return c.Register(ScaleName, NewScale)
}

// Describer is implemented by modules that can describe their configuration.
type Describer interface {
	module.Module
	Describe() string
}
