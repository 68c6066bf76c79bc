package remote

import (
	"reflect"

	"remote-module/module"
)

type options struct {
	name    string
	iface   reflect.Type
	catalog *module.Catalog
}

type Option func(*options)

// WithName uses n instead of a generated unique name.
func WithName(n string) Option {
	return func(o *options) { o.name = n }
}

// WithInterface also requires the constructor's result to implement iface,
// typically module.InterfaceOf[T]().
func WithInterface(iface reflect.Type) Option {
	return func(o *options) { o.iface = iface }
}

// WithCatalog validates the constructor against c instead of module.Default.
// The worker resolves the constructor by name in its own catalog.
func WithCatalog(c *module.Catalog) Option {
	return func(o *options) { o.catalog = c }
}
