package config

import (
	"time"

	"github.com/sirupsen/logrus"

	"remote-module/client"
	"remote-module/codec"
	"remote-module/loadbalance"
	"remote-module/registry"
)

type ClientConfig struct {
	Codec       string        `koanf:"codec"`
	PoolSize    int           `koanf:"pool_size"`
	Heartbeat   time.Duration `koanf:"heartbeat"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
	CallTimeout time.Duration `koanf:"call_timeout"`
	Balancer    string        `koanf:"balancer"`
}

// NewClient builds a client over reg.
func (c ClientConfig) NewClient(reg registry.Registry, logger *logrus.Logger) (*client.Client, error) {
	ct, err := codec.ParseCodecType(c.Codec)
	if err != nil {
		return nil, err
	}
	bal, err := loadbalance.New(c.Balancer)
	if err != nil {
		return nil, err
	}
	return client.NewClient(reg, bal, client.Options{
		Codec:       ct,
		PoolSize:    c.PoolSize,
		Heartbeat:   c.Heartbeat,
		DialTimeout: c.DialTimeout,
		Logger:      logger,
	}), nil
}
