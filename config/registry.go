package config

import (
	"time"

	"remote-module/registry"
)

// StaticInstance is one entry of a static registry.
type StaticInstance struct {
	Name   string `koanf:"name"`
	Addr   string `koanf:"addr"`
	Weight int    `koanf:"weight"`
}

type RegistryConfig struct {
	Kind        string           `koanf:"kind"` // "static" or "etcd"
	Endpoints   []string         `koanf:"endpoints"`
	DialTimeout time.Duration    `koanf:"dial_timeout"`
	Static      []StaticInstance `koanf:"static"`
}

// Open builds the configured registry. The returned close func releases it.
func (c RegistryConfig) Open() (registry.Registry, func() error, error) {
	if c.Kind == "etcd" {
		reg, err := registry.NewEtcdRegistry(c.Endpoints, c.DialTimeout)
		if err != nil {
			return nil, nil, err
		}
		return reg, reg.Close, nil
	}

	insts := make([]registry.Instance, 0, len(c.Static))
	for _, s := range c.Static {
		insts = append(insts, registry.Instance{Name: s.Name, Addr: s.Addr, Weight: s.Weight})
	}
	return registry.NewStaticRegistry(insts...), func() error { return nil }, nil
}
